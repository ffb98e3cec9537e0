package collect

import (
	"log/slog"
	"sort"

	"github.com/panbanda/dbgfidelity/pkg/artifact"
	"github.com/panbanda/dbgfidelity/pkg/trace"
)

// MergeFunctions folds the per-configuration function types of traces into
// dst. A variable typed differently by two configurations keeps the first
// non-empty type and is reported.
func MergeFunctions(dst trace.Functions, traces *artifact.Traces, logger *slog.Logger) trace.Functions {
	if dst == nil {
		dst = trace.Functions{}
	}
	for _, level := range traces.SortedLevels() {
		for _, pass := range traces.SortedPasses(level) {
			cfg, _ := traces.Config(level, pass)
			fns := make([]string, 0, len(cfg.Functions))
			for fn := range cfg.Functions {
				fns = append(fns, fn)
			}
			sort.Strings(fns)
			for _, fn := range fns {
				mergeTypes(dst, fn, cfg.Functions[fn], logger.With("level", level, "pass", pass))
			}
		}
	}
	return dst
}

func mergeTypes(dst trace.Functions, fn string, types map[string]string, logger *slog.Logger) {
	known, ok := dst[fn]
	if !ok {
		known = make(map[string]string, len(types))
		dst[fn] = known
	}
	for v, typ := range types {
		prev, seen := known[v]
		switch {
		case !seen, prev == "":
			known[v] = typ
		case typ != "" && typ != prev:
			logger.Warn("types inconsistency", "function", fn, "var", v, "kept", prev, "found", typ)
		}
	}
}
