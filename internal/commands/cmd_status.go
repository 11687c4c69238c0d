package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags

	// flags
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show the current timer state",
		UsageText: "tempo status [--json]",
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

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	snap, err := cmd.flags.App.Status(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("ok", snap))
	}

	rt := snap.Runtime
	switch {
	case rt.Idle():
		fmt.Println(styles.Muted.Render("No task saved"))
	case rt.IsRunning:
		fmt.Printf("%s %s\n", styles.Success.Render("Running:"), rt.SavedTaskName)
		fmt.Printf("  elapsed  %s\n", snap.Display)
	default:
		fmt.Printf("%s %s\n", styles.Warning.Render("Paused: "), rt.SavedTaskName)
		fmt.Printf("  elapsed  %s\n", snap.Display)
		if rt.LastSavedDisplay != "" {
			fmt.Printf("  saved    %s\n", rt.LastSavedDisplay)
		}
	}

	if rt.Assignment.Linked() {
		fmt.Printf("  linked   %s\n", describeAssignment(rt.Assignment))
	}
	return nil
}

func describeAssignment(a timeblock.Assignment) string {
	switch a.SelectionType {
	case timeblock.SelectionTask:
		if a.TaskNumber != "" {
			return fmt.Sprintf("task %s", a.TaskNumber)
		}
		return fmt.Sprintf("task %s", a.TaskSysID)
	case timeblock.SelectionCategory:
		if a.CategoryLabel != "" {
			return fmt.Sprintf("category %s", a.CategoryLabel)
		}
		return fmt.Sprintf("category %s", a.CategoryValue)
	default:
		return "unlinked"
	}
}
