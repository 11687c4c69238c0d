package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/pkg/iojson"
)

type StartCmd struct {
	flags *Flags

	// flags
	asgn       assignmentFlags
	jsonOutput bool
}

// NewStartCmd creates a new start command
func NewStartCmd(flags *Flags) *StartCmd {
	return &StartCmd{flags: flags}
}

// Register adds the start command to the application
func (cmd *StartCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "start",
		Usage:     "Start the timer for a task",
		UsageText: "tempo start [task] [--sn-task id | --sn-category value] [--sn-code id] [--comment text]",
		Description: `Starts the timer. With no task argument the previously saved task is
resumed. Starting while already running is a no-op.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "sn-task",
				Usage:       "link the entry to a ServiceNow task sys_id",
				Destination: &cmd.asgn.TaskSysID,
			},
			&cli.StringFlag{
				Name:        "sn-category",
				Usage:       "link the entry to a time-card category value",
				Destination: &cmd.asgn.CategoryValue,
			},
			&cli.StringFlag{
				Name:        "sn-code",
				Usage:       "time-card code sys_id for the entry",
				Destination: &cmd.asgn.CodeSysID,
			},
			&cli.StringFlag{
				Name:        "comment",
				Usage:       "work notes attached to the entry",
				Destination: &cmd.asgn.Comment,
			},
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

func (cmd *StartCmd) run(ctx context.Context, c *cli.Command) error {
	asgn, err := cmd.asgn.assignment()
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if err := cmd.flags.App.Start(ctx, c.Args().First(), asgn); err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	snap, err := cmd.flags.App.Status(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	return emit(cmd.jsonOutput,
		iojson.OK("started", snap),
		fmt.Sprintf("%s %s (%s)", styles.Success.Render("Timer running:"), snap.Runtime.SavedTaskName, snap.Display))
}
