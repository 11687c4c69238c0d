package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/internal/core/timeblock"
	"github.com/colonyops/tempo/internal/tempo"
	"github.com/colonyops/tempo/pkg/iojson"
	"github.com/colonyops/tempo/pkg/timeutil"
)

type BlockCmd struct {
	flags *Flags

	// flags
	start      string
	end        string
	asgn       assignmentFlags
	rng        rangeFlags
	taskGlob   string
	jsonOutput bool
}

// NewBlockCmd creates a new block command
func NewBlockCmd(flags *Flags) *BlockCmd {
	return &BlockCmd{flags: flags}
}

// Register adds the block command and its subcommands to the application
func (cmd *BlockCmd) Register(app *cli.Command) *cli.Command {
	asgnFlags := []cli.Flag{
		&cli.StringFlag{
			Name:        "sn-task",
			Usage:       "link the block to a ServiceNow task sys_id",
			Destination: &cmd.asgn.TaskSysID,
		},
		&cli.StringFlag{
			Name:        "sn-category",
			Usage:       "link the block to a time-card category value",
			Destination: &cmd.asgn.CategoryValue,
		},
		&cli.StringFlag{
			Name:        "sn-code",
			Usage:       "time-card code sys_id for the block",
			Destination: &cmd.asgn.CodeSysID,
		},
		&cli.StringFlag{
			Name:        "comment",
			Usage:       "work notes attached to the block",
			Destination: &cmd.asgn.Comment,
		},
	}
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "block",
		Usage:     "Manage recorded time blocks",
		UsageText: "tempo block <add|edit|rm|ls> [options]",
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Record a manual time block",
				UsageText: `tempo block add <task> --start "2024-03-11 09:00" --end "2024-03-11 10:30"`,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:        "start",
						Usage:       "start time (YYYY-MM-DD HH:MM, local)",
						Required:    true,
						Destination: &cmd.start,
					},
					&cli.StringFlag{
						Name:        "end",
						Usage:       "end time (YYYY-MM-DD HH:MM, local)",
						Required:    true,
						Destination: &cmd.end,
					},
					jsonFlag,
				}, asgnFlags...),
				Action: cmd.runAdd,
			},
			{
				Name:      "edit",
				Usage:     "Edit an existing time block",
				UsageText: "tempo block edit <id> [--task name] [--start t] [--end t] [linkage flags]",
				Flags: append([]cli.Flag{
					&cli.StringFlag{Name: "task", Usage: "new task name"},
					&cli.StringFlag{
						Name:        "start",
						Usage:       "new start time (YYYY-MM-DD HH:MM, local)",
						Destination: &cmd.start,
					},
					&cli.StringFlag{
						Name:        "end",
						Usage:       "new end time (YYYY-MM-DD HH:MM, local)",
						Destination: &cmd.end,
					},
					jsonFlag,
				}, asgnFlags...),
				Action: cmd.runEdit,
			},
			{
				Name:      "rm",
				Usage:     "Delete a time block",
				UsageText: "tempo block rm <id>",
				Flags:  []cli.Flag{jsonFlag},
				Action: cmd.runRm,
			},
			{
				Name:      "ls",
				Usage:     "List time blocks, newest first",
				UsageText: "tempo block ls [--range preset] [--from d] [--to d] [--task glob] [--json]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "range",
						Usage:       "range preset: today, this-week, this-month, custom, all",
						Destination: &cmd.rng.Preset,
					},
					&cli.StringFlag{
						Name:        "from",
						Usage:       "custom range start (YYYY-MM-DD)",
						Destination: &cmd.rng.From,
					},
					&cli.StringFlag{
						Name:        "to",
						Usage:       "custom range end (YYYY-MM-DD, inclusive)",
						Destination: &cmd.rng.To,
					},
					&cli.StringFlag{
						Name:        "task",
						Usage:       "filter by task name glob",
						Destination: &cmd.taskGlob,
					},
					jsonFlag,
				},
				Action: cmd.runLs,
			},
		},
	})

	return app
}

func (cmd *BlockCmd) runAdd(ctx context.Context, c *cli.Command) error {
	startMs, err := parseLocalTime(cmd.start)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}
	endMs, err := parseLocalTime(cmd.end)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}
	asgn, err := cmd.asgn.assignment()
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	block, err := cmd.flags.App.SaveManualSession(ctx, c.Args().First(), startMs, endMs, asgn)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	return emit(cmd.jsonOutput,
		iojson.OK("created", block),
		fmt.Sprintf("%s %s (%s)", styles.Success.Render("Block recorded:"), block.Task, timeutil.FormatHMS(block.DurationMs)))
}

func (cmd *BlockCmd) runEdit(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return emitError(cmd.jsonOutput, fmt.Errorf("block id is required"))
	}

	current, err := cmd.findBlock(ctx, id)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	// Unset flags keep the current values.
	update := timeblock.Update{
		Task:       current.Task,
		StartMs:    current.StartMs,
		EndMs:      current.EndMs,
		Assignment: current.Assignment,
	}
	if c.IsSet("task") {
		update.Task = c.String("task")
	}
	if cmd.start != "" {
		if update.StartMs, err = parseLocalTime(cmd.start); err != nil {
			return emitError(cmd.jsonOutput, err)
		}
	}
	if cmd.end != "" {
		if update.EndMs, err = parseLocalTime(cmd.end); err != nil {
			return emitError(cmd.jsonOutput, err)
		}
	}
	if cmd.asgn != (assignmentFlags{}) {
		if update.Assignment, err = cmd.asgn.assignment(); err != nil {
			return emitError(cmd.jsonOutput, err)
		}
	}

	block, err := cmd.flags.App.UpdateTimeBlock(ctx, id, update)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	return emit(cmd.jsonOutput,
		iojson.OK("updated", block),
		fmt.Sprintf("%s %s (%s)", styles.Success.Render("Block updated:"), block.Task, timeutil.FormatHMS(block.DurationMs)))
}

func (cmd *BlockCmd) runRm(ctx context.Context, c *cli.Command) error {
	id := c.Args().First()
	if id == "" {
		return emitError(cmd.jsonOutput, fmt.Errorf("block id is required"))
	}

	if err := cmd.flags.App.DeleteTimeBlock(ctx, id); err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	return emit(cmd.jsonOutput,
		iojson.OK("deleted", map[string]string{"id": id}),
		styles.Success.Render("Block deleted"))
}

func (cmd *BlockCmd) runLs(ctx context.Context, c *cli.Command) error {
	window, err := cmd.rng.window()
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	blocks, err := cmd.flags.App.GetTimeBlocks(ctx, window)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}
	if blocks, err = filterByTaskGlob(blocks, cmd.taskGlob); err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("ok", blocks))
	}

	if len(blocks) == 0 {
		fmt.Fprintln(os.Stderr, "No time blocks found")
		return nil
	}

	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTASK\tSTART\tDURATION\tSOURCE\tLINK")
	for _, b := range blocks {
		link := ""
		if b.Linked() {
			link = describeAssignment(b.Assignment)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Task, timeutil.FormatTimestamp(b.StartMs), timeutil.FormatHMS(b.DurationMs), b.Source, link)
	}
	_ = w.Flush()
	return nil
}

// findBlock scans the full store for the block with the given id.
func (cmd *BlockCmd) findBlock(ctx context.Context, id string) (timeblock.TimeBlock, error) {
	blocks, err := cmd.flags.App.GetTimeBlocks(ctx, tempo.Window{})
	if err != nil {
		return timeblock.TimeBlock{}, err
	}
	for _, b := range blocks {
		if b.ID == id {
			return b, nil
		}
	}
	return timeblock.TimeBlock{}, fmt.Errorf("no time block with id %q", id)
}
