// Package artifact defines the JSON files exchanged between the trace,
// polish and metrics stages.
package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/panbanda/dbgfidelity/pkg/trace"
)

// StandardMarker replaces the variables of a configuration whose code is
// identical to its level's baseline.
const StandardMarker = "standard"

// Pass names of the two configurations traced first at every level.
const (
	PassStandard = "-standard"
	PassAll      = "-all"
)

// Variables is either a traced record or the StandardMarker.
type Variables struct {
	Standard bool
	Lines    trace.Variables
}

// MarshalJSON implements json.Marshaler.
func (v Variables) MarshalJSON() ([]byte, error) {
	if v.Standard {
		return json.Marshal(StandardMarker)
	}
	if v.Lines == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v.Lines)
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Variables) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != StandardMarker {
			return fmt.Errorf("unexpected variables marker %q", s)
		}
		*v = Variables{Standard: true}
		return nil
	}
	var lines trace.Variables
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	*v = Variables{Lines: lines}
	return nil
}

// Configuration is the trace of one build configuration.
type Configuration struct {
	Variables Variables       `json:"variables"`
	Functions trace.Functions `json:"functions,omitempty"`
	TextHash  string          `json:".text_hash"`
	// Crashes and Failed list the inputs whose sessions crashed or failed.
	Crashes []string `json:"crashes,omitempty"`
	Failed  []string `json:"failed,omitempty"`
}

// Traced reports whether the configuration holds a computed record.
func (c *Configuration) Traced() bool {
	return c != nil && !c.Variables.Standard && len(c.Variables.Lines) > 0
}

// Traces is the traces-<fuzz>.json file of one fuzz target.
type Traces struct {
	Inputs   int    `json:"inputs"`
	Compiler string `json:"compiler,omitempty"`
	Revision string `json:"revision,omitempty"`
	// Levels maps optimization level -> pass -> configuration.
	Levels    map[string]map[string]*Configuration `json:"traces"`
	Functions trace.Functions                      `json:"functions,omitempty"`
}

// NewTraces returns an empty traces file.
func NewTraces(compiler string) *Traces {
	return &Traces{Compiler: compiler, Levels: map[string]map[string]*Configuration{}}
}

// Config returns the configuration of level and pass.
func (t *Traces) Config(level, pass string) (*Configuration, bool) {
	c, ok := t.Levels[level][pass]
	return c, ok
}

// Ensure returns the configuration of level and pass, creating it.
func (t *Traces) Ensure(level, pass string) *Configuration {
	passes, ok := t.Levels[level]
	if !ok {
		passes = map[string]*Configuration{}
		t.Levels[level] = passes
	}
	c, ok := passes[pass]
	if !ok {
		c = &Configuration{}
		passes[pass] = c
	}
	return c
}

// SortedLevels returns the levels in lexical order.
func (t *Traces) SortedLevels() []string {
	return sortedKeys(t.Levels)
}

// SortedPasses returns the passes of level in lexical order.
func (t *Traces) SortedPasses(level string) []string {
	return sortedKeys(t.Levels[level])
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TracesPath returns <dir>/traces-<fuzz>.json.
func TracesPath(dir, fuzzTarget string) string {
	return filepath.Join(dir, "traces-"+fuzzTarget+".json")
}

// LoadTraces reads and validates a traces file.
func LoadTraces(path string) (*Traces, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateTraces(data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	t := &Traces{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if t.Levels == nil {
		t.Levels = map[string]map[string]*Configuration{}
	}
	return t, nil
}

// Save writes v as JSON to path, creating parent directories.
func Save(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
