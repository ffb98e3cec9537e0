// Package trace drives debugger sessions over a binary's statement lines
// and parses their transcripts into per-line variable availability.
//
// Transcript parsing is a pure function of the captured text, so the two
// debugger grammars can be tested without running a debugger.
package trace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/panbanda/dbgfidelity/pkg/linetable"
)

// LineSource reads the line table of a binary.
type LineSource func(ctx context.Context, binary string) (*linetable.LineTable, error)

// Tracer plans breakpoints and runs sessions for one backend.
type Tracer struct {
	backend Backend
	session Session
	lines   LineSource
	logger  *slog.Logger
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithSession replaces the out-of-process session.
func WithSession(s Session) Option {
	return func(t *Tracer) {
		t.session = s
	}
}

// WithLineSource replaces the llvm-dwarfdump line reader.
func WithLineSource(src LineSource) Option {
	return func(t *Tracer) {
		t.lines = src
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = l
	}
}

// NewTracer creates a tracer for backend.
func NewTracer(backend Backend, opts ...Option) *Tracer {
	t := &Tracer{
		backend: backend,
		session: NewExecSession(backend),
		lines: func(ctx context.Context, binary string) (*linetable.LineTable, error) {
			return linetable.ReadDump(ctx, "", binary)
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Backend returns the debugger backend.
func (t *Tracer) Backend() Backend {
	return t.backend
}

// Plan reads the line table of binary and places its breakpoints.
func (t *Tracer) Plan(ctx context.Context, binary string) (*Plan, error) {
	table, err := t.lines(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("read line table: %w", err)
	}
	plan := NewPlan(table)
	t.logger.Debug("breakpoints planned", "binary", binary, "files", table.Len(), "breakpoints", plan.Len())
	return plan, nil
}

// Trace runs one session of binary on input. A crash marker in the
// transcript wins over any session error; otherwise a session error yields
// OutcomeFailed with an empty record.
func (t *Tracer) Trace(ctx context.Context, binary string, plan *Plan, input string) Result {
	transcript, err := t.session.Run(ctx, binary, plan, input)
	res := Parse(t.backend, transcript)

	log := t.logger.With("binary", binary, "input", filepath.Base(input))
	switch {
	case res.Outcome == OutcomeCrashed:
		log.Info("target crashed")
	case err != nil:
		log.Info("session failed", "error", err)
		return Result{Outcome: OutcomeFailed, Record: NewRecord(), Err: err}
	default:
		log.Debug("session recorded", "lines", res.Record.Lines())
	}
	return res
}
