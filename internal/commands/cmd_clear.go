package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/pkg/iojson"
)

type ClearCmd struct {
	flags *Flags

	// flags
	force      bool
	jsonOutput bool
}

// NewClearCmd creates a new clear command
func NewClearCmd(flags *Flags) *ClearCmd {
	return &ClearCmd{flags: flags}
}

// Register adds the clear command to the application
func (cmd *ClearCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "clear",
		Usage:     "Delete all recorded time blocks",
		UsageText: "tempo clear [--force]",
		Description: `Removes every stored time block and legacy session. The timer state is
untouched. Asks for confirmation unless --force is given.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "skip the confirmation prompt",
				Destination: &cmd.force,
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

func (cmd *ClearCmd) run(ctx context.Context, c *cli.Command) error {
	if !cmd.force {
		ok, err := HuhPrompter{}.Confirm("Delete all recorded time?", "This removes every time block and cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println(styles.Muted.Render("Aborted"))
			return nil
		}
	}

	if err := cmd.flags.App.ClearSessions(ctx); err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	return emit(cmd.jsonOutput,
		iojson.OK("cleared", nil),
		styles.Success.Render("All time blocks deleted"))
}
