// Package metrics aggregates the polished traces of a project's fuzz
// targets into per-configuration availability and line coverage.
package metrics

import (
	"errors"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/dbgfidelity/pkg/artifact"
)

// BaselineLevel is the optimization level every configuration is compared to.
const BaselineLevel = "0"

type set map[string]struct{}

func (s set) addAll(keys []string) {
	for _, k := range keys {
		s[k] = struct{}{}
	}
}

type passData struct {
	vars  set
	lines set
}

func newPassData() *passData {
	return &passData{vars: set{}, lines: set{}}
}

type levelData struct {
	standard *passData
	passes   map[string]*passData
}

// gather unions the per-target data. A pass reused by a target contributes
// that target's baseline.
func gather(polished []*artifact.Polished) map[string]*levelData {
	levels := map[string]*levelData{}
	get := func(name string) *levelData {
		l, ok := levels[name]
		if !ok {
			l = &levelData{standard: newPassData(), passes: map[string]*passData{}}
			levels[name] = l
		}
		return l
	}

	for _, p := range polished {
		for name, vars := range p.Vars {
			l := get(name)
			lines := p.Lines[name]
			std := vars.Passes[artifact.PassStandard]
			var stdLines *artifact.LineBuckets
			if lines != nil {
				stdLines = lines.Passes[artifact.PassStandard]
			}
			if std != nil {
				l.standard.vars.addAll(std.Total)
			}
			if stdLines != nil {
				l.standard.lines.addAll(stdLines.Total)
			}

			for pass, b := range vars.Passes {
				if pass == artifact.PassStandard {
					continue
				}
				pd, ok := l.passes[pass]
				if !ok {
					pd = newPassData()
					l.passes[pass] = pd
				}
				if b.Reused {
					if std != nil {
						pd.vars.addAll(std.Total)
					}
					if stdLines != nil {
						pd.lines.addAll(stdLines.Total)
					}
					continue
				}
				pd.vars.addAll(b.Total)
				if lines != nil {
					if lb := lines.Passes[pass]; lb != nil {
						pd.lines.addAll(lb.Total)
					}
				}
			}
		}
	}
	return levels
}

// byLine groups the variables of vars that the baseline also holds by
// line, adding an empty entry for every line reached.
func byLine(vars, lines, baseline set) map[string]set {
	out := map[string]set{}
	for key := range vars {
		if _, ok := baseline[key]; !ok {
			continue
		}
		line, v, ok := artifact.SplitVarKey(key)
		if !ok {
			continue
		}
		if out[line] == nil {
			out[line] = set{}
		}
		out[line][v] = struct{}{}
	}
	for line := range lines {
		if out[line] == nil {
			out[line] = set{}
		}
	}
	return out
}

func availability(perLine, baseline map[string]set) float64 {
	keys := make([]string, 0, len(perLine))
	for line := range perLine {
		keys = append(keys, line)
	}
	sort.Strings(keys)

	var data []float64
	for _, line := range keys {
		base := baseline[line]
		if len(base) == 0 {
			continue
		}
		n := 0
		for v := range perLine[line] {
			if _, ok := base[v]; ok {
				n++
			}
		}
		data = append(data, float64(n)/float64(len(base))+1)
	}
	if len(data) == 0 {
		return 0
	}
	return stat.GeometricMean(data, nil) - 1
}

func harnessFree(vars set, markers []string) set {
	out := set{}
	for key := range vars {
		lower := strings.ToLower(key)
		harness := false
		for _, m := range markers {
			if m != "" && strings.Contains(lower, strings.ToLower(m)) {
				harness = true
				break
			}
		}
		if !harness {
			out[key] = struct{}{}
		}
	}
	return out
}

// Availability computes, for every configuration "<level><pass>" above the
// baseline, the geometric mean over baseline lines of the share of the
// line's baseline variables still available. Harness entries are dropped
// from the baseline first.
func Availability(polished []*artifact.Polished, harnessMarkers []string) map[string]float64 {
	levels := gather(polished)
	out := map[string]float64{}
	base, ok := levels[BaselineLevel]
	if !ok {
		return out
	}
	baseVars := harnessFree(base.standard.vars, harnessMarkers)
	baseline := byLine(baseVars, base.standard.lines, baseVars)

	for name, l := range levels {
		if name == BaselineLevel {
			continue
		}
		out[name+artifact.PassStandard] = availability(byLine(l.standard.vars, l.standard.lines, baseVars), baseline)
		for pass, pd := range l.passes {
			out[name+pass] = availability(byLine(pd.vars, pd.lines, baseVars), baseline)
		}
	}
	return out
}

func coverage(lines, baseline set) float64 {
	if len(baseline) == 0 {
		return 0
	}
	n := 0
	for line := range lines {
		if _, ok := baseline[line]; ok {
			n++
		}
	}
	return float64(n) / float64(len(baseline))
}

// LineCoverage computes, for every configuration above the baseline, the
// share of baseline lines the configuration reaches.
func LineCoverage(polished []*artifact.Polished) map[string]float64 {
	levels := gather(polished)
	out := map[string]float64{}
	base, ok := levels[BaselineLevel]
	if !ok {
		return out
	}
	for name, l := range levels {
		if name == BaselineLevel {
			continue
		}
		out[name+artifact.PassStandard] = coverage(l.standard.lines, base.standard.lines)
		for pass, pd := range l.passes {
			out[name+pass] = coverage(pd.lines, base.standard.lines)
		}
	}
	return out
}

// Compute returns both metrics.
func Compute(polished []*artifact.Polished, harnessMarkers []string) *artifact.Metrics {
	m := &artifact.Metrics{
		Availability: Availability(polished, harnessMarkers),
		LineCoverage: LineCoverage(polished),
	}
	for _, p := range polished {
		if p.Revision != "" {
			m.Revision = p.Revision
			break
		}
	}
	return m
}

// Load reads the polished traces of fuzzTargets in dir. Targets without a
// polished file are logged and skipped.
func Load(dir string, fuzzTargets []string, logger *slog.Logger) ([]*artifact.Polished, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var out []*artifact.Polished
	for _, fz := range fuzzTargets {
		path := artifact.PolishedPath(dir, fz)
		p, err := artifact.LoadPolished(path)
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("polished traces not found", "target", fz)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// Keys returns the configuration keys of m in order.
func Keys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
