package trace

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Outcome classifies how a session ended.
type Outcome int

const (
	// OutcomeRecorded means the transcript was parsed into a record.
	OutcomeRecorded Outcome = iota
	// OutcomeCrashed means the target crashed. No record is produced even
	// if breakpoints were hit before the crash.
	OutcomeCrashed
	// OutcomeFailed means the session timed out or the debugger failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeCrashed:
		return "crashed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one session with its record. Record is empty
// unless Outcome is OutcomeRecorded.
type Result struct {
	Outcome Outcome
	Record  *Record
	Err     error
}

const (
	gdbCrash  = "Program received signal SIGSEGV, Segmentation fault."
	lldbCrash = "stop reason = signal SIGSEGV"
)

var (
	lldbFrame    = regexp.MustCompile(`^frame #\d+:`)
	lldbLocation = regexp.MustCompile(`^(.+):(\d+)(?::\d+)?$`)
)

// Parse reduces a debugger transcript to a record. It never fails: lines
// that fit neither grammar are ignored.
func Parse(backend Backend, transcript string) Result {
	lines := strings.Split(transcript, "\n")
	var (
		rec     *Record
		crashed bool
	)
	if backend == LLDB {
		rec, crashed = parseLLDB(lines)
	} else {
		rec, crashed = parseGDB(lines)
	}
	if crashed {
		return Result{Outcome: OutcomeCrashed, Record: NewRecord()}
	}
	return Result{Outcome: OutcomeRecorded, Record: rec}
}

// stop is the breakpoint line variables are currently attributed to.
type stop struct {
	source string
	line   int
	sets   *lineSets
}

func (c *stop) set(acc *accumulator, source string, line int, function string) {
	c.source, c.line = source, line
	c.sets = acc.line(source, line)
	c.sets.function = function
}

func (c *stop) clear() {
	*c = stop{}
}

func isBrace(instruction string) bool {
	return instruction == "{" || instruction == "}"
}

var gdbNoise = []string{"No locals", "Inferior", "Temporary", "Reading"}

// parseGDB reads the output of `info locals` at temporary breakpoints. A
// stop is announced by a frame line naming the function and source:line,
// followed by "<line> <source text>" and then "<name> = <value>" locals.
func parseGDB(lines []string) (*Record, bool) {
	acc := newAccumulator()
	var cur stop

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == gdbCrash {
			return nil, true
		}
		if line == "" || containsAny(line, gdbNoise) {
			continue
		}

		fields := strings.Fields(line)
		if isDigits(fields[0]) {
			if len(fields) == 1 {
				continue
			}
			lineNo, _ := strconv.Atoi(fields[0])
			instruction := strings.TrimSpace(line[len(fields[0]):])
			if isBrace(instruction) || i == 0 {
				cur.clear()
				continue
			}
			source, function := gdbFrame(lines[i-1])
			cur.set(acc, source, lineNo, function)
			continue
		}

		if cur.sets == nil {
			continue
		}
		name, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		if value == "<optimized out>" {
			cur.sets.add(bucketOptimizedOut, name)
		} else {
			cur.sets.add(bucketAvailable, name)
		}
	}
	return acc.record(), false
}

// gdbFrame extracts source and function from a line such as
// "Temporary breakpoint 3, main (argc=2, argv=0x7ffe) at /src/a.c:12".
func gdbFrame(raw string) (source, function string) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return "", ""
	}
	loc := fields[len(fields)-1]
	if idx := strings.Index(loc, ":"); idx >= 0 {
		loc = loc[:idx]
	}
	source = filepath.ToSlash(loc)

	if _, rest, ok := strings.Cut(raw, ", "); ok {
		if f := strings.Fields(rest); len(f) > 0 {
			function = f[0]
		}
	}
	return source, function
}

var lldbNoise = []string{"lldb", "Current", "Breakpoint", "Process", "Command"}

// parseLLDB reads `frame select` / `frame var` output. A stop is a frame
// line "frame #0: <pc> <module>`<function> at <source>:<line>" and locals
// are "(<type>) <name> = <value>".
func parseLLDB(lines []string) (*Record, bool) {
	acc := newAccumulator()
	var (
		cur      stop
		function string
	)

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if strings.Contains(line, lldbCrash) {
			return nil, true
		}
		if line == "" || containsAny(line, lldbNoise) {
			continue
		}
		if strings.HasPrefix(line, "[") || strings.HasPrefix(line, "*") {
			continue
		}

		if lldbFrame.MatchString(line) {
			source, lineNo, fn, ok := lldbFrameLine(line)
			if !ok {
				cur.clear()
				continue
			}
			if instruction, ok := lldbCurrentLine(lines, i+1); ok && isBrace(instruction) {
				cur.clear()
				continue
			}
			function = fn
			cur.set(acc, source, lineNo, fn)
			continue
		}

		if cur.sets == nil || !strings.HasPrefix(line, "(") {
			continue
		}
		head, value, ok := strings.Cut(line, " = ")
		if !ok {
			continue
		}
		typ, name := lldbVar(head)
		if name == "" {
			continue
		}
		value = strings.TrimSpace(value)
		switch {
		case strings.Contains(value, "optimized out"):
			cur.sets.add(bucketOptimizedOut, name)
		case strings.Contains(value, "not available"),
			strings.Contains(value, "empty constant data"),
			strings.Contains(value, "could not evaluate"):
			cur.sets.add(bucketNotAvailable, name)
		default:
			cur.sets.add(bucketAvailable, name)
		}
		if function != "" {
			acc.setType(function, name, typ)
		}
	}
	return acc.record(), false
}

// lldbFrameLine parses a frame line. "[inlined]" frames carry extra fields
// before the location, which is always the token after the last "at".
func lldbFrameLine(line string) (source string, lineNo int, function string, ok bool) {
	fields := strings.Fields(line)
	loc := ""
	for i := len(fields) - 2; i >= 0; i-- {
		if fields[i] == "at" {
			loc = fields[i+1]
			break
		}
	}
	m := lldbLocation.FindStringSubmatch(loc)
	if m == nil {
		return "", 0, "", false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, "", false
	}
	for _, f := range fields {
		if _, fn, found := strings.Cut(f, "`"); found {
			function = fn
			break
		}
	}
	return filepath.ToSlash(m[1]), n, function, true
}

// lldbCurrentLine returns the source text of the "-> <line> <text>" marker
// printed after a frame line, looking at most two lines ahead.
func lldbCurrentLine(lines []string, from int) (string, bool) {
	for i := from; i < len(lines) && i < from+2; i++ {
		if !strings.HasPrefix(lines[i], "-> ") {
			continue
		}
		fields := strings.Fields(lines[i])
		if len(fields) < 2 {
			return "", true
		}
		return strings.Join(fields[2:], " "), true
	}
	return "", false
}

// lldbVar splits "(<type>) <name>" into its parts.
func lldbVar(head string) (typ, name string) {
	idx := strings.LastIndex(head, ")")
	if idx < 0 {
		fields := strings.Fields(head)
		if len(fields) == 0 {
			return "", ""
		}
		return "", fields[len(fields)-1]
	}
	return strings.TrimSpace(head[1:idx]), strings.TrimSpace(head[idx+1:])
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
