// Package reconcile compares the variables debuggers report available with
// the variables the source says are live, for every traced configuration.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/dbgfidelity/pkg/artifact"
	"github.com/panbanda/dbgfidelity/pkg/trace"
)

// DefaultHarnessMarkers identify fuzzing harness sources by file name.
var DefaultHarnessMarkers = []string{"fuzz"}

// Pass reconciles the traces of one fuzz target. Its seen-sets make every
// (configuration, source, line) count once, so feeding the same records
// again leaves the result unchanged.
type Pass struct {
	root     string
	models   ModelSource
	harness  []string
	excluded []string
	workers  int
	logger   *slog.Logger

	mu     sync.Mutex
	levels map[string]*levelState
	loaded map[string]*loadedModel
}

type loadedModel struct {
	once  sync.Once
	model *Model
	err   error
}

type passState struct {
	mu      sync.Mutex
	vars    map[string]struct{}
	notlive map[string]struct{}
	lines   map[string]struct{}
	seen    map[string]struct{}
	reused  bool
}

type levelState struct {
	mu     sync.Mutex
	passes map[string]*passState
}

func (l *levelState) pass(name string) *passState {
	l.mu.Lock()
	defer l.mu.Unlock()
	ps, ok := l.passes[name]
	if !ok {
		ps = &passState{
			vars:    map[string]struct{}{},
			notlive: map[string]struct{}{},
			lines:   map[string]struct{}{},
			seen:    map[string]struct{}{},
		}
		l.passes[name] = ps
	}
	return ps
}

// Option configures a Pass.
type Option func(*Pass)

// WithHarnessMarkers overrides the name fragments of harness sources.
func WithHarnessMarkers(markers ...string) Option {
	return func(p *Pass) { p.harness = markers }
}

// WithExcludedSources skips sources whose base name matches one of the
// glob patterns.
func WithExcludedSources(patterns ...string) Option {
	return func(p *Pass) { p.excluded = append(p.excluded, patterns...) }
}

// WithWorkers bounds how many levels are reconciled at once.
func WithWorkers(n int) Option {
	return func(p *Pass) { p.workers = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pass) { p.logger = l }
}

// NewPass creates a pass over the sources of the project at root.
func NewPass(root string, models ModelSource, opts ...Option) *Pass {
	p := &Pass{
		root:    filepath.Clean(root),
		models:  models,
		harness: DefaultHarnessMarkers,
		logger:  slog.Default(),
		levels:  map[string]*levelState{},
		loaded:  map[string]*loadedModel{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pass) level(name string) *levelState {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.levels[name]
	if !ok {
		l = &levelState{passes: map[string]*passState{}}
		p.levels[name] = l
	}
	return l
}

// model loads the model of source once per pass.
func (p *Pass) model(ctx context.Context, source string) (*Model, error) {
	p.mu.Lock()
	lm, ok := p.loaded[source]
	if !ok {
		lm = &loadedModel{}
		p.loaded[source] = lm
	}
	p.mu.Unlock()

	lm.once.Do(func() {
		lm.model, lm.err = p.models.Model(ctx, source)
	})
	return lm.model, lm.err
}

// Admit reports whether source takes part in reconciliation: it lies in the
// project, is not a harness source and is not excluded.
func (p *Pass) Admit(source string) bool {
	if filepath.IsAbs(source) {
		rel, err := filepath.Rel(p.root, filepath.Clean(source))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return false
		}
	}
	base := filepath.Base(source)
	lower := strings.ToLower(base)
	for _, m := range p.harness {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return false
		}
	}
	for _, pattern := range p.excluded {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}
	return true
}

// Run reconciles every configuration of traces. Levels are processed
// concurrently and merged once all of them are done.
func (p *Pass) Run(ctx context.Context, traces *artifact.Traces) (*artifact.Polished, error) {
	workers := p.workers
	if workers <= 0 {
		workers = len(traces.Levels)
	}
	if workers <= 0 {
		workers = 1
	}

	wp := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError().WithFirstError()
	for _, level := range traces.SortedLevels() {
		wp.Go(func(ctx context.Context) error {
			baseline, _ := traces.Config(level, artifact.PassStandard)
			if baseline == nil {
				p.logger.Warn("level has no baseline", "level", level)
			}
			for _, pass := range traces.SortedPasses(level) {
				cfg, _ := traces.Config(level, pass)
				if err := p.Reconcile(ctx, level, pass, baseline, cfg); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := wp.Wait(); err != nil {
		return nil, err
	}

	out := p.Result()
	out.Revision = traces.Revision
	return out, nil
}

// Reconcile classifies the variables and lines of one configuration against
// the level baseline. Configurations carrying the standard marker are
// flagged as reused and not recomputed.
func (p *Pass) Reconcile(ctx context.Context, level, pass string, baseline, cfg *artifact.Configuration) error {
	ps := p.level(level).pass(pass)
	ps.mu.Lock()
	defer ps.mu.Unlock()
	log := p.logger.With("level", level, "pass", pass)

	if cfg == nil {
		return nil
	}
	if cfg.Variables.Standard {
		ps.reused = true
		log.Info("configuration reuses baseline code")
		return nil
	}
	log.Info("reconciling", "sources", len(cfg.Variables.Lines))

	for _, source := range sortedSources(cfg.Variables) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !p.Admit(source) {
			continue
		}
		if baseline == nil || baseline.Variables.Lines[source] == nil {
			log.Debug("source not in baseline", "source", source)
			continue
		}

		m, err := p.model(ctx, source)
		if errors.Is(err, ErrSourceNotFound) {
			log.Info("source not found", "source", source)
			continue
		}
		if err != nil {
			return err
		}
		p.reconcileSource(log, ps, source, m, cfg.Variables.Lines[source])
	}
	return nil
}

func (p *Pass) reconcileSource(log *slog.Logger, ps *passState, source string, m *Model, lines map[int]*trace.LineRecord) {
	nums := make([]int, 0, len(lines))
	for n := range lines {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	a := m.Engine.AST()
	for _, n := range nums {
		key := artifact.LineKey(source, n)
		if _, ok := ps.seen[key]; ok {
			continue
		}
		ps.seen[key] = struct{}{}

		rec := lines[n]
		fn, ok := m.Engine.FunctionAt(n)
		if !ok {
			log.Debug("line not in a function", "line", key, "traced", rec.Function)
			continue
		}
		if name := a.Stmt(fn).Name; name != rec.Function {
			log.Debug("function mismatch", "line", key, "traced", rec.Function, "source", name)
			continue
		}
		live, ok := m.Engine.LiveNamesAt(n)
		if !ok {
			log.Debug("no statement at line", "line", key)
			continue
		}

		text := m.Text.Line(n)
		for _, v := range rec.Available {
			vk := artifact.VarKey(source, n, v)
			if _, ok := live[v]; !ok {
				log.Debug("var not live", "var", vk, "function", rec.Function, "code", text)
				ps.notlive[vk] = struct{}{}
				continue
			}
			log.Debug("var", "var", vk, "function", rec.Function, "code", text)
			ps.vars[vk] = struct{}{}
		}
		log.Debug("line", "line", key, "code", text)
		ps.lines[key] = struct{}{}
	}
}

func sortedSources(v artifact.Variables) []string {
	out := make([]string, 0, len(v.Lines))
	for s := range v.Lines {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Result returns the polished traces accumulated so far. Each level's total
// is the union of its passes' totals.
func (p *Pass) Result() *artifact.Polished {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := artifact.NewPolished()
	for name, l := range p.levels {
		l.mu.Lock()
		vars := &artifact.Level[*artifact.VarBuckets]{Passes: map[string]*artifact.VarBuckets{}}
		lines := &artifact.Level[*artifact.LineBuckets]{Passes: map[string]*artifact.LineBuckets{}}
		varTotal := map[string]struct{}{}
		lineTotal := map[string]struct{}{}
		for pass, ps := range l.passes {
			ps.mu.Lock()
			vars.Passes[pass] = &artifact.VarBuckets{
				Total:   artifact.SortedSet(ps.vars),
				NotLive: artifact.SortedSet(ps.notlive),
				Reused:  ps.reused,
			}
			lines.Passes[pass] = &artifact.LineBuckets{
				Total:  artifact.SortedSet(ps.lines),
				Reused: ps.reused,
			}
			for k := range ps.vars {
				varTotal[k] = struct{}{}
			}
			for k := range ps.lines {
				lineTotal[k] = struct{}{}
			}
			ps.mu.Unlock()
		}
		vars.Total = artifact.SortedSet(varTotal)
		lines.Total = artifact.SortedSet(lineTotal)
		l.mu.Unlock()

		out.Vars[name] = vars
		out.Lines[name] = lines
	}
	return out
}
