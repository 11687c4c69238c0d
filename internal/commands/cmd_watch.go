package commands

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/tui"
)

type WatchCmd struct {
	flags *Flags
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags) *WatchCmd {
	return &WatchCmd{flags: flags}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Live timer dashboard",
		UsageText: "tempo watch",
		Description: `Opens a full-screen view of the running timer that updates every
second. Space pauses or resumes the saved task, f finishes it, q quits.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	return tui.Run(ctx, cmd.flags.App)
}
