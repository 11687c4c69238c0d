package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/pkg/iojson"
)

type StopCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewStopCmd creates a new stop command
func NewStopCmd(flags *Flags) *StopCmd {
	return &StopCmd{flags: flags}
}

// Register adds the stop command to the application
func (cmd *StopCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "stop",
		Usage:     "Pause the timer and record the elapsed segment",
		UsageText: "tempo stop [--json]",
		Description: `Stops the running timer and appends the active segment as a time block.
The task stays saved so a later start resumes it. Stopping an idle timer
is a no-op.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *StopCmd) run(ctx context.Context, c *cli.Command) error {
	if err := cmd.flags.App.Stop(ctx); err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	snap, err := cmd.flags.App.Status(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	human := styles.Muted.Render("Timer is idle")
	if !snap.Runtime.Idle() {
		human = fmt.Sprintf("%s %s (%s)", styles.Warning.Render("Timer paused:"), snap.Runtime.SavedTaskName, snap.Display)
	}
	return emit(cmd.jsonOutput, iojson.OK("stopped", snap), human)
}
