package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/pkg/iojson"
	"github.com/colonyops/tempo/pkg/timeutil"
)

type FinishCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewFinishCmd creates a new finish command
func NewFinishCmd(flags *Flags) *FinishCmd {
	return &FinishCmd{flags: flags}
}

// Register adds the finish command to the application
func (cmd *FinishCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "finish",
		Usage:     "Finish the current task and reset the timer",
		UsageText: "tempo finish [--json]",
		Description: `Records the active segment if the timer is running, then clears the
saved task so the next start begins fresh. Recorded blocks are kept.`,
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

func (cmd *FinishCmd) run(ctx context.Context, c *cli.Command) error {
	elapsedMs, err := cmd.flags.App.Finish(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	data := map[string]any{"elapsedMs": elapsedMs, "display": timeutil.FormatHMS(elapsedMs)}
	return emit(cmd.jsonOutput,
		iojson.OK("finished", data),
		fmt.Sprintf("%s %s recorded", styles.Success.Render("Task finished:"), timeutil.FormatHMS(elapsedMs)))
}
