package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/core/styles"
	"github.com/colonyops/tempo/pkg/iojson"
	"github.com/colonyops/tempo/pkg/timeutil"
)

type SNCmd struct {
	flags *Flags

	// flags
	instance   string
	disable    bool
	label      string
	cookieFile string
	refresh    bool
	rng        rangeFlags
	blockIDs   []string
	jsonOutput bool
}

// NewSNCmd creates a new sn command
func NewSNCmd(flags *Flags) *SNCmd {
	return &SNCmd{flags: flags}
}

// Register adds the sn command and its subcommands to the application
func (cmd *SNCmd) Register(app *cli.Command) *cli.Command {
	jsonFlag := &cli.BoolFlag{
		Name:        "json",
		Usage:       "output as JSON",
		Destination: &cmd.jsonOutput,
	}

	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sn",
		Usage:     "ServiceNow time-card integration",
		UsageText: "tempo sn <config|connect|check|lookups|sync> [options]",
		Commands: []*cli.Command{
			{
				Name:      "config",
				Usage:     "Show or set the instance configuration",
				UsageText: "tempo sn config [--instance https://acme.service-now.com] [--disable]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "instance",
						Usage:       "instance origin URL, enables the integration",
						Destination: &cmd.instance,
					},
					&cli.BoolFlag{
						Name:        "disable",
						Usage:       "disable the integration, keeping the stored URL",
						Destination: &cmd.disable,
					},
					jsonFlag,
				},
				Action: cmd.runConfig,
			},
			{
				Name:      "connect",
				Usage:     "Register a browser session for the configured instance",
				UsageText: "tempo sn connect [--label name] [--cookie-file path]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "label",
						Usage:       "human-readable session label",
						Destination: &cmd.label,
					},
					&cli.StringFlag{
						Name:        "cookie-file",
						Usage:       "JSON cookie export to authenticate with",
						Destination: &cmd.cookieFile,
					},
					jsonFlag,
				},
				Action: cmd.runConnect,
			},
			{
				Name:      "check",
				Usage:     "Verify the instance login",
				UsageText: "tempo sn check [--json]",
				Flags:     []cli.Flag{jsonFlag},
				Action:    cmd.runCheck,
			},
			{
				Name:      "lookups",
				Usage:     "Show cached reference data (tasks, categories, codes)",
				UsageText: "tempo sn lookups [--refresh] [--json]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "refresh",
						Usage:       "fetch fresh data from the instance",
						Destination: &cmd.refresh,
					},
					jsonFlag,
				},
				Action: cmd.runLookups,
			},
			{
				Name:      "sync",
				Usage:     "Upload aggregated weekly time cards",
				UsageText: "tempo sn sync [--range preset] [--from d] [--to d] [--block id ...] [--json]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "range",
						Usage:       "range preset: today, this-week, this-month, custom",
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
					&cli.StringSliceFlag{
						Name:        "block",
						Usage:       "sync only the given block ids (repeatable)",
						Destination: &cmd.blockIDs,
					},
					jsonFlag,
				},
				Action: cmd.runSync,
			},
		},
	})

	return app
}

func (cmd *SNCmd) runConfig(ctx context.Context, c *cli.Command) error {
	if cmd.instance != "" || cmd.disable {
		instance := cmd.instance
		if instance == "" {
			// Disabling without a URL keeps the stored one.
			current, err := cmd.flags.App.SNConfig(ctx)
			if err != nil {
				return emitError(cmd.jsonOutput, err)
			}
			instance = current.InstanceURL
		}

		cfg, err := cmd.flags.App.SaveSNConfig(ctx, !cmd.disable, instance)
		if err != nil {
			return emitError(cmd.jsonOutput, err)
		}
		return emit(cmd.jsonOutput,
			iojson.OK("saved", cfg),
			fmt.Sprintf("%s enabled=%t instance=%s", styles.Success.Render("Config saved:"), cfg.Enabled, cfg.InstanceURL))
	}

	cfg, err := cmd.flags.App.SNConfig(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}
	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("ok", cfg))
	}
	if cfg.InstanceURL == "" {
		fmt.Println(styles.Muted.Render("Integration not configured"))
		return nil
	}
	fmt.Printf("enabled   %t\ninstance  %s\n", cfg.Enabled, cfg.InstanceURL)
	return nil
}

func (cmd *SNCmd) runConnect(ctx context.Context, c *cli.Command) error {
	sess, user, err := cmd.flags.App.Connect(ctx, cmd.label, cmd.cookieFile)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	data := map[string]any{"session": sess, "user": user}
	return emit(cmd.jsonOutput,
		iojson.OK("connected", data),
		fmt.Sprintf("%s %s as %s", styles.Success.Render("Connected:"), sess.Origin, user.UserName))
}

func (cmd *SNCmd) runCheck(ctx context.Context, c *cli.Command) error {
	user, err := cmd.flags.App.CheckSession(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	return emit(cmd.jsonOutput,
		iojson.OK("ok", user),
		fmt.Sprintf("%s %s (%s)", styles.Success.Render("Logged in:"), user.UserName, user.UserID))
}

func (cmd *SNCmd) runLookups(ctx context.Context, c *cli.Command) error {
	fetch := cmd.flags.App.CachedLookups
	if cmd.refresh {
		fetch = cmd.flags.App.FetchLookups
	}

	lookups, err := fetch(ctx)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("ok", lookups))
	}

	if lookups.FetchedAtMs == 0 {
		fmt.Fprintln(os.Stderr, "No cached lookups, run with --refresh")
		return nil
	}

	out := c.Root().Writer
	fmt.Fprintf(out, "Fetched %s\n\n", timeutil.FormatTimestamp(lookups.FetchedAtMs))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TASK\tSTATE\tDESCRIPTION")
	for _, t := range lookups.Tasks {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", t.Number, t.State, t.ShortDescription)
	}
	_ = w.Flush()

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CATEGORY\tLABEL")
	for _, cat := range lookups.Categories {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", cat.Value, cat.Label)
	}
	_ = w.Flush()

	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CODE\tDESCRIPTION")
	for _, code := range lookups.TimeCodes {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", code.Code, code.Description)
	}
	_ = w.Flush()
	return nil
}

func (cmd *SNCmd) runSync(ctx context.Context, c *cli.Command) error {
	rng := cmd.rng
	if rng.Preset == "" && rng.From == "" && rng.To == "" {
		rng.Preset = "this-week"
	}
	window, err := rng.window()
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	result, err := cmd.flags.App.SyncVisibleBlocks(ctx, window, cmd.blockIDs)
	if err != nil {
		return emitError(cmd.jsonOutput, err)
	}

	if cmd.jsonOutput {
		return iojson.Write(iojson.OK("synced", result))
	}

	out := c.Root().Writer
	for _, inv := range result.Grouping.InvalidBlocks {
		fmt.Fprintln(os.Stderr, styles.Warning.Render(
			fmt.Sprintf("skipping %s (%s): %s", inv.Block.Task, inv.Block.ID, inv.Reason)))
	}

	if len(result.Grouping.Groups) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to sync in this range")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "GROUP\tOUTCOME\tDETAIL")
	for _, r := range result.Report.Results {
		detail := r.Message
		if r.RecordSysID != "" && detail == "" {
			detail = r.RecordSysID
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.GroupKey, styles.Outcome(r.Outcome).Render(r.Outcome), detail)
	}
	_ = w.Flush()

	if result.Report.Aborted {
		fmt.Fprintln(os.Stderr, styles.Error.Render("Sync aborted: the session is no longer logged in"))
	}
	return nil
}
