package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/colonyops/tempo/internal/commands"
	"github.com/colonyops/tempo/internal/core/config"
	"github.com/colonyops/tempo/internal/core/eventbus"
	"github.com/colonyops/tempo/internal/tempo"
	"github.com/colonyops/tempo/internal/tui"
	"github.com/colonyops/tempo/pkg/logutils"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, build() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		tempoApp  = &tempo.App{}
		busCancel context.CancelFunc
	)

	flags := &commands.Flags{App: tempoApp}

	app := &cli.Command{
		Name:      "tempo",
		Usage:     "Track task time and sync it to ServiceNow time cards",
		UsageText: "tempo [global options] command [command options]",
		Description: `Tempo is a persistent task timer. Start a task, stop and resume it
across process restarts, record manual blocks, and report aggregated
totals. With a configured ServiceNow instance, recorded time rolls up
into weekly time cards and uploads through a browser session.

Run 'tempo' with no arguments to open the live dashboard.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("TEMPO_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to <data-dir>/tempo.log)",
				Sources:     cli.EnvVars("TEMPO_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("TEMPO_CONFIG"),
				Value:       commands.DefaultConfigPath(),
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "data-dir",
				Usage:       "path to data directory",
				Sources:     cli.EnvVars("TEMPO_DATA_DIR"),
				Value:       commands.DefaultDataDir(),
				Destination: &flags.DataDir,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			// Always log to a file; use explicit path or default to <datadir>/tempo.log
			logFile := flags.LogFile
			if logFile == "" {
				logFile = filepath.Join(flags.DataDir, "tempo.log")
			}

			logger, closer, err := logutils.New(flags.LogLevel, logFile)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			cfg, err := config.Load(flags.ConfigPath, flags.DataDir)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			flags.Config = cfg

			bus := eventbus.New(64)
			eventbus.RegisterDebugLogger(bus, logger)
			busCtx, cancel := context.WithCancel(context.Background())
			busCancel = cancel
			bus.Start(busCtx)

			// Populate the pre-allocated App struct (commands already hold a pointer to it)
			*tempoApp = *tempo.New(cfg, commands.HuhPrompter{}, bus, logger)

			if err := tempoApp.Restore(ctx); err != nil {
				return ctx, fmt.Errorf("restore timer: %w", err)
			}

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			// busCancel is only set once the app graph is wired
			if busCancel != nil {
				tempoApp.Close()
				busCancel()
			}

			// Close log file
			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	app = commands.NewStartCmd(flags).Register(app)
	app = commands.NewStopCmd(flags).Register(app)
	app = commands.NewFinishCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)
	app = commands.NewBlockCmd(flags).Register(app)
	app = commands.NewReportCmd(flags).Register(app)
	app = commands.NewClearCmd(flags).Register(app)
	app = commands.NewWatchCmd(flags).Register(app)
	app = commands.NewSNCmd(flags).Register(app)

	// Open the dashboard when no subcommand is provided
	app.Action = func(ctx context.Context, c *cli.Command) error {
		if c.Args().Len() > 0 {
			return fmt.Errorf("unknown command %q. Run 'tempo --help' for usage", c.Args().First())
		}
		return tui.Run(ctx, flags.App)
	}

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
