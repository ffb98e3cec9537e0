package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/output"
	"github.com/panbanda/dbgfidelity/pkg/config"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

// appState is built once in Before and shared by every command.
type appState struct {
	cfg       *config.Config
	cfgSource string
	logger    *slog.Logger
}

const stateKey = "state"

func state(c *cli.Context) *appState {
	s, _ := c.App.Metadata[stateKey].(*appState)
	return s
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "dbgfidelity",
		Usage:    "Measure how compiler optimizations erode debug-information fidelity",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `dbgfidelity runs optimized builds of a project under gdb or lldb,
records which variables the debugger claims are available at every line,
and checks those claims against a static liveness model of the C sources.

Stages:
  trace    collect debugger traces of every build configuration
  polish   reconcile traces with the static model
  metrics  compute availability and line coverage per configuration`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"DBGFIDELITY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Log every skipped line and session",
			},
			&cli.IntFlag{
				Name:    "proc",
				Aliases: []string{"j"},
				Usage:   "Number of concurrent debugger sessions (overrides trace.workers)",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			traceCmd(),
			polishCmd(),
			metricsCmd(),
			linesCmd(),
			astCmd(),
			transcriptCmd(),
			configCmd(),
			mcpCmd(),
		},
	}
}

func setup(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("debug") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, source, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return err
	}
	// config validate reports problems itself.
	if c.Args().First() != "config" {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration %s: %w", source, err)
		}
	}
	if n := c.Int("proc"); n > 0 {
		cfg.Trace.Workers = n
	} else if n < 0 {
		cfg.Trace.Workers = runtime.NumCPU()
	}
	if f := c.String("format"); f != "" {
		cfg.Output.Format = f
	}
	c.App.Metadata[stateKey] = &appState{cfg: cfg, cfgSource: source, logger: logger}
	return nil
}

// formatter opens the formatter selected by --format and --output.
func formatter(c *cli.Context) (*output.Formatter, error) {
	s := state(c)
	colored := s.cfg.Output.Color && !color.NoColor
	return output.NewFormatter(output.ParseFormat(s.cfg.Output.Format), c.String("output"), colored)
}

// status returns a text formatter for progress lines on the app's writer.
func status(c *cli.Context) *output.Formatter {
	colored := state(c).cfg.Output.Color && !color.NoColor
	return output.NewWriterFormatter(output.FormatText, c.App.Writer, colored)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func usageError(c *cli.Context, format string, args ...any) error {
	_ = cli.ShowSubcommandHelp(c)
	return fmt.Errorf(format, args...)
}
