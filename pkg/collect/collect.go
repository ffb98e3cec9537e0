// Package collect runs the debugger over every build configuration of a
// fuzz target and assembles the traces file.
package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/panbanda/dbgfidelity/internal/workpool"
	"github.com/panbanda/dbgfidelity/pkg/artifact"
	"github.com/panbanda/dbgfidelity/pkg/linetable"
	"github.com/panbanda/dbgfidelity/pkg/trace"
)

var (
	// ErrMissingDir is returned when the target or corpus directory is missing.
	ErrMissingDir = errors.New("directory not found")
	// ErrNoInputs is returned when the corpus holds no input.
	ErrNoInputs = errors.New("corpus has no inputs")
	// ErrSessionFailed stands in for a failed session that reported no error.
	ErrSessionFailed = errors.New("debugger session failed")
)

// Tracer runs the sessions of one binary.
type Tracer interface {
	Plan(ctx context.Context, binary string) (*trace.Plan, error)
	Trace(ctx context.Context, binary string, plan *trace.Plan, input string) trace.Result
}

// Request names the directories of one fuzz target.
type Request struct {
	// TargetDir holds the configuration directories.
	TargetDir  string
	CorpusDir  string
	FuzzTarget string
	Compiler   string
}

// Collector traces build configurations.
type Collector struct {
	tracer   Tracer
	workers  int
	textHash func(string) (string, error)
	progress workpool.ProgressFunc
	logger   *slog.Logger
	failures *workpool.Errors
}

// Option configures a Collector.
type Option func(*Collector)

// WithWorkers sets the number of concurrent debugger sessions.
func WithWorkers(n int) Option {
	return func(c *Collector) { c.workers = n }
}

// WithTextHash replaces the .text section hash.
func WithTextHash(fn func(string) (string, error)) Option {
	return func(c *Collector) { c.textHash = fn }
}

// WithProgress is called after every session.
func WithProgress(fn workpool.ProgressFunc) Option {
	return func(c *Collector) { c.progress = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// New creates a collector.
func New(tracer Tracer, opts ...Option) *Collector {
	c := &Collector{
		tracer:   tracer,
		workers:  1,
		textHash: linetable.TextHash,
		logger:   slog.Default(),
		failures: &workpool.Errors{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type task struct {
	build  Build
	cfg    *artifact.Configuration
	plan   *trace.Plan
	input  string
	result trace.Result
}

// Failures returns the planning and session failures of the last Collect.
// Each task is named "<build>/<input>", or "<build>" for planning failures.
func (c *Collector) Failures() *workpool.Errors {
	return c.failures
}

// Collect traces every configuration of req that existing does not already
// hold and returns the updated traces. existing may be nil.
func (c *Collector) Collect(ctx context.Context, req Request, existing *artifact.Traces) (*artifact.Traces, error) {
	if info, err := os.Stat(req.TargetDir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: target %s", ErrMissingDir, req.TargetDir)
	}
	c.failures = &workpool.Errors{}
	inputs, err := Inputs(req.CorpusDir)
	if err != nil {
		return nil, err
	}
	c.logger.Info("found inputs", "count", len(inputs))

	builds, err := Discover(req.TargetDir, req.FuzzTarget)
	if err != nil {
		return nil, err
	}

	out := existing
	if out == nil {
		out = artifact.NewTraces(req.Compiler)
	}
	if out.Compiler == "" {
		out.Compiler = req.Compiler
	}
	out.Inputs = len(inputs)

	var pending []*task
	for _, b := range builds {
		log := c.logger.With("config", "-O"+b.Level+b.Pass)
		if info, err := os.Stat(b.Binary); err != nil || !info.Mode().IsRegular() {
			log.Info("binary not found", "binary", b.Binary)
			continue
		}

		cfg := out.Ensure(b.Level, b.Pass)
		hash, err := c.textHash(b.Binary)
		if err != nil {
			log.Error("hash .text", "error", err)
			continue
		}
		cfg.TextHash = hash

		if base, ok := out.Config(b.Level, artifact.PassStandard); ok && b.comparable() && base.TextHash == hash {
			log.Info("skipped: standard .text")
			cfg.Variables = artifact.Variables{Standard: true}
			continue
		}
		cfg.Variables.Standard = false
		if cfg.Traced() {
			log.Info("trace already computed")
			continue
		}

		tasks := c.tasks(ctx, b, cfg, inputs)
		if b.Baseline() || b.AllDisabled() {
			// Later configurations compare against this hash.
			c.run(ctx, tasks)
			c.merge(tasks)
			continue
		}
		pending = append(pending, tasks...)
	}

	c.run(ctx, pending)
	c.merge(pending)

	out.Functions = MergeFunctions(out.Functions, out, c.logger)
	for _, level := range out.Levels {
		for _, cfg := range level {
			cfg.Functions = nil
		}
	}
	return out, nil
}

// tasks plans binary and returns one task per input. A planning failure
// marks every input failed.
func (c *Collector) tasks(ctx context.Context, b Build, cfg *artifact.Configuration, inputs []string) []*task {
	plan, err := c.tracer.Plan(ctx, b.Binary)
	if err != nil {
		c.logger.Error("plan breakpoints", "binary", b.Binary, "error", err)
		c.failures.Add(b.Name(), err)
		failed := make([]string, len(inputs))
		for i, in := range inputs {
			failed[i] = filepath.Base(in)
		}
		cfg.Failed = failed
		cfg.Variables = artifact.Variables{Lines: trace.Variables{}}
		return nil
	}
	c.logger.Debug("planned breakpoints", "build", b.Name(), "breakpoints", plan.Len(),
		"fingerprint", fmt.Sprintf("%016x", plan.Fingerprint))
	out := make([]*task, len(inputs))
	for i, in := range inputs {
		out[i] = &task{build: b, cfg: cfg, plan: plan, input: in}
	}
	return out
}

// run executes every task and returns once all sessions have finished.
func (c *Collector) run(ctx context.Context, tasks []*task) {
	if len(tasks) == 0 {
		return
	}
	start := time.Now()
	workpool.Map(ctx, tasks, c.workers, func(ctx context.Context, t *task) struct{} {
		t.result = c.tracer.Trace(ctx, t.build.Binary, t.plan, t.input)
		return struct{}{}
	}, c.progress)
	c.logger.Info("sessions completed", "count", len(tasks), "elapsed", time.Since(start).Round(time.Millisecond))
}

// merge folds task results into their configurations. Crashed runs are
// listed and never merged.
func (c *Collector) merge(tasks []*task) {
	records := map[*artifact.Configuration][]*trace.Record{}
	var order []*artifact.Configuration
	for _, t := range tasks {
		if _, ok := records[t.cfg]; !ok {
			order = append(order, t.cfg)
			records[t.cfg] = nil
			t.cfg.Crashes, t.cfg.Failed = nil, nil
		}
		name := filepath.Base(t.input)
		switch t.result.Outcome {
		case trace.OutcomeCrashed:
			t.cfg.Crashes = append(t.cfg.Crashes, name)
			continue
		case trace.OutcomeFailed:
			t.cfg.Failed = append(t.cfg.Failed, name)
			err := t.result.Err
			if err == nil {
				err = ErrSessionFailed
			}
			c.failures.Add(t.build.Name()+"/"+name, err)
		}
		records[t.cfg] = append(records[t.cfg], t.result.Record)
	}
	for _, cfg := range order {
		merged := trace.Merge(records[cfg]...)
		cfg.Variables = artifact.Variables{Lines: merged.Variables}
		cfg.Functions = merged.Functions
		sort.Strings(cfg.Crashes)
		sort.Strings(cfg.Failed)
	}
}
