package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/progress"
	"github.com/panbanda/dbgfidelity/internal/vcs"
	"github.com/panbanda/dbgfidelity/pkg/artifact"
	"github.com/panbanda/dbgfidelity/pkg/collect"
	"github.com/panbanda/dbgfidelity/pkg/config"
	"github.com/panbanda/dbgfidelity/pkg/linetable"
	"github.com/panbanda/dbgfidelity/pkg/trace"
)

func traceCmd() *cli.Command {
	return &cli.Command{
		Name:      "trace",
		Usage:     "Run every build configuration of a project under the debugger",
		ArgsUsage: "<project>",
		Description: `Discovers <targets>/<project>/<compiler>/<fuzz>-O<level><pass>/ builds,
sets a breakpoint on every statement line of each binary and runs it on
every corpus input. Builds whose .text section equals their level's
-standard build are recorded as "standard" without tracing.

Results are merged into <targets>/<project>/<compiler>/traces-<fuzz>.json;
configurations already traced there are kept.`,
		Flags:  []cli.Flag{fuzzFlag},
		Action: runTraceCmd,
	}
}

func newTracer(cfg *config.Config, s *appState) (*trace.Tracer, error) {
	backend := trace.BackendFor(cfg.Compiler.Name)
	if cfg.Trace.Debugger != "" {
		b, err := trace.ParseBackend(cfg.Trace.Debugger)
		if err != nil {
			return nil, err
		}
		backend = b
	}
	session := trace.NewExecSession(backend)
	session.Timeout = cfg.Timeout()

	reader := linetable.Reader(cfg.Trace.LineReader)
	return trace.NewTracer(backend,
		trace.WithSession(session),
		trace.WithLineSource(func(ctx context.Context, binary string) (*linetable.LineTable, error) {
			return linetable.Read(ctx, reader, cfg.Trace.Dwarfdump, binary)
		}),
		trace.WithLogger(s.logger),
	), nil
}

func runTraceCmd(c *cli.Context) error {
	s := state(c)
	cfg := s.cfg
	project, err := projectArg(c)
	if err != nil {
		return err
	}
	targets, err := fuzzTargets(c, cfg, project, corpusTargets(cfg, project))
	if err != nil {
		return err
	}
	tracer, err := newTracer(cfg, s)
	if err != nil {
		return err
	}
	revision := vcs.Identify(cfg.ProjectDir(project))
	targetDir := cfg.TargetDir(project)
	st := status(c)

	for _, fz := range targets {
		path := artifact.TracesPath(targetDir, fz)
		existing, err := artifact.LoadTraces(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			existing = nil
		case err != nil:
			return err
		default:
			st.Info("%s: resuming from %s", fz, path)
		}

		tracker := progress.NewSpinner(fmt.Sprintf("Tracing %s...", fz))
		collector := collect.New(tracer,
			collect.WithWorkers(cfg.Trace.Workers),
			collect.WithProgress(tracker.Tick),
			collect.WithLogger(s.logger.With("fuzz", fz)),
		)
		traces, err := collector.Collect(c.Context, collect.Request{
			TargetDir:  targetDir,
			CorpusDir:  cfg.CorpusDir(project, fz),
			FuzzTarget: fz,
			Compiler:   cfg.CompilerID(),
		}, existing)
		if err != nil {
			tracker.FinishError(err)
			return err
		}
		tracker.FinishSuccess()

		if traces.Revision == "" {
			traces.Revision = revision
		}
		if err := artifact.Save(path, traces); err != nil {
			return err
		}
		st.Success("%s: %d sessions, traces written to %s", fz, tracker.Done(), path)
		if failures := collector.Failures(); failures.Len() > 0 {
			st.Warning("%s: %v", fz, failures)
			for _, f := range failures.Errors {
				s.logger.Debug("task failed", "task", f.Task, "error", f.Err)
			}
		}
	}
	return nil
}
