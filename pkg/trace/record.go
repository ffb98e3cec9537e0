package trace

import "sort"

// LineRecord is what one breakpoint line reported across all its stops.
type LineRecord struct {
	Function     string   `json:"function"`
	Available    []string `json:"available"`
	OptimizedOut []string `json:"optimized_out"`
	NotAvailable []string `json:"not_available,omitempty"`
}

// Variables maps source path -> line -> record.
type Variables map[string]map[int]*LineRecord

// Functions maps function name -> variable name -> type.
type Functions map[string]map[string]string

// Record is the parsed result of one or more debugger sessions.
type Record struct {
	Variables Variables `json:"variables"`
	Functions Functions `json:"functions"`
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{Variables: Variables{}, Functions: Functions{}}
}

// Empty reports whether no line was recorded.
func (r *Record) Empty() bool {
	return r == nil || len(r.Variables) == 0
}

// Line returns the record of source:line, if any.
func (r *Record) Line(source string, line int) (*LineRecord, bool) {
	if r == nil {
		return nil, false
	}
	lr, ok := r.Variables[source][line]
	return lr, ok
}

// Lines returns the number of recorded (source, line) pairs.
func (r *Record) Lines() int {
	n := 0
	for _, lines := range r.Variables {
		n += len(lines)
	}
	return n
}

// Merge unions many records into one. Merging is idempotent and independent
// of argument order, and a variable available in any record is never kept
// as optimized out or not available.
func Merge(records ...*Record) *Record {
	acc := newAccumulator()
	for _, r := range records {
		if r == nil {
			continue
		}
		for source, lines := range r.Variables {
			for line, lr := range lines {
				e := acc.line(source, line)
				if e.function == "" {
					e.function = lr.Function
				}
				e.add(bucketAvailable, lr.Available...)
				e.add(bucketOptimizedOut, lr.OptimizedOut...)
				e.add(bucketNotAvailable, lr.NotAvailable...)
			}
		}
		for fn, vars := range r.Functions {
			for name, typ := range vars {
				acc.setType(fn, name, typ)
			}
		}
	}
	return acc.record()
}

type bucket int

const (
	bucketAvailable bucket = iota
	bucketOptimizedOut
	bucketNotAvailable
)

type lineSets struct {
	function string
	sets     [3]map[string]struct{}
}

func (l *lineSets) add(b bucket, names ...string) {
	if len(names) == 0 {
		return
	}
	if l.sets[b] == nil {
		l.sets[b] = make(map[string]struct{})
	}
	for _, n := range names {
		l.sets[b][n] = struct{}{}
	}
}

// accumulator collects sets while a transcript or merge is in progress.
type accumulator struct {
	lines     map[string]map[int]*lineSets
	functions Functions
}

func newAccumulator() *accumulator {
	return &accumulator{
		lines:     make(map[string]map[int]*lineSets),
		functions: Functions{},
	}
}

func (a *accumulator) line(source string, line int) *lineSets {
	lines, ok := a.lines[source]
	if !ok {
		lines = make(map[int]*lineSets)
		a.lines[source] = lines
	}
	l, ok := lines[line]
	if !ok {
		l = &lineSets{}
		lines[line] = l
	}
	return l
}

// setType records the type of a variable, keeping the first non-empty one.
func (a *accumulator) setType(function, name, typ string) {
	vars, ok := a.functions[function]
	if !ok {
		vars = make(map[string]string)
		a.functions[function] = vars
	}
	if cur, ok := vars[name]; !ok || cur == "" {
		vars[name] = typ
	}
}

func (a *accumulator) record() *Record {
	r := NewRecord()
	for source, lines := range a.lines {
		out := make(map[int]*LineRecord, len(lines))
		for line, l := range lines {
			available := l.sets[bucketAvailable]
			out[line] = &LineRecord{
				Function:     l.function,
				Available:    sorted(available, nil),
				OptimizedOut: sorted(l.sets[bucketOptimizedOut], available),
				NotAvailable: sorted(l.sets[bucketNotAvailable], available),
			}
			if out[line].Available == nil {
				out[line].Available = []string{}
			}
			if out[line].OptimizedOut == nil {
				out[line].OptimizedOut = []string{}
			}
		}
		r.Variables[source] = out
	}
	for fn, vars := range a.functions {
		r.Functions[fn] = vars
	}
	return r
}

// sorted returns the members of set not in exclude, sorted.
func sorted(set, exclude map[string]struct{}) []string {
	var out []string
	for name := range set {
		if _, skip := exclude[name]; skip {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
