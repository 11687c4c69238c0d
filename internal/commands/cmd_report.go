package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/aggregate"
	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/internal/tempo"
	"github.com/colonyops/tempo/pkg/iojson"
	"github.com/colonyops/tempo/pkg/timeutil"
)

type ReportCmd struct {
	flags *Flags

	// flags
	rng        rangeFlags
	period     string
	taskGlob   string
	jsonOutput bool
}

// NewReportCmd creates a new report command
func NewReportCmd(flags *Flags) *ReportCmd {
	return &ReportCmd{flags: flags}
}

// Register adds the report command to the application
func (cmd *ReportCmd) Register(app *cli.Command) *cli.Command {
	rangeFlagDefs := []cli.Flag{
		&cli.StringFlag{
			Name:        "range",
			Usage:       "range preset: today, this-week, this-month, custom, all (default from config)",
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
	}
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "report",
		Usage:     "Aggregate recorded time",
		UsageText: "tempo report [tasks|period] [options]",
		Commands: []*cli.Command{
			{
				Name:      "tasks",
				Usage:     "Totals per task, largest first",
				UsageText: "tempo report tasks [--range preset] [--task glob] [--json]",
				Flags: append(append([]cli.Flag{}, rangeFlagDefs...),
					&cli.StringFlag{
						Name:        "task",
						Usage:       "filter by task name glob",
						Destination: &cmd.taskGlob,
					},
					jsonFlag),
				Action: cmd.runTasks,
			},
			{
				Name:      "period",
				Usage:     "Totals per calendar day or week",
				UsageText: "tempo report period [--period day|week] [--range preset] [--json]",
				Flags: append(append([]cli.Flag{}, rangeFlagDefs...),
					&cli.StringFlag{
						Name:        "period",
						Usage:       "granularity: day or week (default from config)",
						Destination: &cmd.period,
					},
					jsonFlag),
				Action: cmd.runPeriod,
			},
		},
	})

	return app
}

// window applies the configured default range when no flag was given.
func (cmd *ReportCmd) window() (tempo.Window, error) {
	rng := cmd.rng
	if rng.Preset == "" && rng.From == "" && rng.To == "" {
		rng.Preset = cmd.flags.Config.Report.Range
	}
	return rng.window()
}

func (cmd *ReportCmd) runTasks(ctx context.Context, c *cli.Command) error {
	window, err := cmd.window()
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	rows, err := cmd.flags.App.AggregatedSessions(ctx, window)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if cmd.taskGlob != "" {
		if !doublestar.ValidatePattern(cmd.taskGlob) {
			return emitError(cmd.jsonOutput, fmt.Errorf("invalid task pattern %q", cmd.taskGlob))
		}
		kept := rows[:0:0]
		for _, r := range rows {
			if ok, _ := doublestar.Match(cmd.taskGlob, r.Task); ok {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("ok", rows))
	}

	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing recorded in this range")
		return nil
	}

	var totalMs int64
	var totalBlocks int
	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tTOTAL\tBLOCKS\tLAST WORKED")
	for _, r := range rows {
		last := r.LastSaved
		if r.LastEndMs > 0 {
			last = timeutil.FormatTimestamp(r.LastEndMs)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.Task, timeutil.FormatHMS(r.DurationMs), r.BlockCount, last)
		totalMs += r.DurationMs
		totalBlocks += r.BlockCount
	}
	_ = w.Flush()

	avgMs := int64(0)
	if totalBlocks > 0 {
		avgMs = totalMs / int64(totalBlocks)
	}
	fmt.Fprintf(c.Root().Writer, "\n%s %s across %d task(s), %d block(s), avg block %s\n",
		styles.Header.Render("Total:"), timeutil.FormatHMS(totalMs), len(rows), totalBlocks, timeutil.FormatHMS(avgMs))
	return nil
}

func (cmd *ReportCmd) runPeriod(ctx context.Context, c *cli.Command) error {
	window, err := cmd.window()
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	period := cmd.period
	if period == "" {
		period = cmd.flags.Config.Report.Period
	}
	if period != aggregate.PeriodDay && period != aggregate.PeriodWeek {
		return emitError(cmd.jsonOutput, fmt.Errorf("invalid period %q, use day or week", period))
	}

	rows, err := cmd.flags.App.AggregatedByPeriod(ctx, window, period)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("ok", rows))
	}

	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing recorded in this range")
		return nil
	}

	header := "DAY"
	if period == aggregate.PeriodWeek {
		header = "WEEK OF"
	}
	w := tabwriter.NewWriter(c.Root().Writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "%s\tTOTAL\tBLOCKS\n", header)
	for _, r := range rows {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", r.Key, timeutil.FormatHMS(r.DurationMs), r.BlockCount)
	}
	_ = w.Flush()
	return nil
}
