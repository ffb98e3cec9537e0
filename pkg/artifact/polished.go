package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// VarBuckets classifies the variables a configuration reported available.
// Entries are "source:line:variable".
type VarBuckets struct {
	Total   []string `json:"total"`
	NotLive []string `json:"notlive"`
	Reused  bool     `json:"reused,omitempty"`
}

// LineBuckets lists the lines a configuration reached, as "source:line".
type LineBuckets struct {
	Total  []string `json:"total"`
	Reused bool     `json:"reused,omitempty"`
}

// Level holds the passes of one optimization level and the union of their
// totals. It is encoded as one object whose "total" key holds the union.
type Level[B any] struct {
	Total  []string
	Passes map[string]B
}

const totalKey = "total"

// MarshalJSON implements json.Marshaler.
func (l Level[B]) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Passes)+1)
	for pass, b := range l.Passes {
		out[pass] = b
	}
	total := l.Total
	if total == nil {
		total = []string{}
	}
	out[totalKey] = total
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Level[B]) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	l.Passes = make(map[string]B, len(raw))
	for key, msg := range raw {
		if key == totalKey {
			if err := json.Unmarshal(msg, &l.Total); err != nil {
				return fmt.Errorf("level total: %w", err)
			}
			continue
		}
		var b B
		if err := json.Unmarshal(msg, &b); err != nil {
			return fmt.Errorf("pass %s: %w", key, err)
		}
		l.Passes[key] = b
	}
	return nil
}

// Polished is the traces-polished-<fuzz>.json file.
type Polished struct {
	Vars     map[string]*Level[*VarBuckets]  `json:"vars"`
	Lines    map[string]*Level[*LineBuckets] `json:"lines"`
	Revision string                          `json:"revision,omitempty"`
}

// NewPolished returns an empty polished trace.
func NewPolished() *Polished {
	return &Polished{
		Vars:  map[string]*Level[*VarBuckets]{},
		Lines: map[string]*Level[*LineBuckets]{},
	}
}

// PolishedPath returns <dir>/traces-polished-<fuzz>.json.
func PolishedPath(dir, fuzzTarget string) string {
	return filepath.Join(dir, "traces-polished-"+fuzzTarget+".json")
}

// LoadPolished reads a polished trace file.
func LoadPolished(path string) (*Polished, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := NewPolished()
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return p, nil
}

// VarKey formats a variable entry.
func VarKey(source string, line int, variable string) string {
	return source + ":" + strconv.Itoa(line) + ":" + variable
}

// LineKey formats a line entry.
func LineKey(source string, line int) string {
	return source + ":" + strconv.Itoa(line)
}

// SplitVarKey splits "source:line:variable" into its line key and variable.
func SplitVarKey(key string) (lineKey, variable string, ok bool) {
	idx := strings.LastIndex(key, ":")
	if idx <= 0 {
		return "", "", false
	}
	return key[:idx], key[idx+1:], true
}

// SortedSet returns the members of set in order.
func SortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Metrics is the metrics.json file of one project.
type Metrics struct {
	Availability map[string]float64 `json:"availability-variables"`
	LineCoverage map[string]float64 `json:"line-coverage"`
	Revision     string             `json:"revision,omitempty"`
}

// MetricsPath returns <dir>/metrics.json.
func MetricsPath(dir string) string {
	return filepath.Join(dir, "metrics.json")
}
