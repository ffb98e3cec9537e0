package trace

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/dbgfidelity/pkg/linetable"
)

// Backend identifies a debugger and its transcript grammar.
type Backend string

const (
	GDB  Backend = "gdb"
	LLDB Backend = "lldb"
)

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(name))); b {
	case GDB, LLDB:
		return b, nil
	default:
		return "", fmt.Errorf("unknown debugger %q (want gdb or lldb)", name)
	}
}

// BackendFor returns the debugger matching binaries built by compiler:
// LLDB for clang, GDB otherwise.
func BackendFor(compiler string) Backend {
	if strings.Contains(compiler, "clang") {
		return LLDB
	}
	return GDB
}

// Breakpoint is one source line to stop at.
type Breakpoint struct {
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// Plan is the ordered set of breakpoints for one binary.
type Plan struct {
	Breakpoints []Breakpoint `json:"breakpoints"`
	Fingerprint uint64       `json:"fingerprint"`
}

// NewPlan places one breakpoint on every statement boundary of table,
// ordered by source then line.
func NewPlan(table *linetable.LineTable) *Plan {
	p := &Plan{Fingerprint: table.Fingerprint()}
	for _, source := range table.Files() {
		for _, line := range table.Lines(source) {
			p.Breakpoints = append(p.Breakpoints, Breakpoint{Source: source, Line: line})
		}
	}
	sort.SliceStable(p.Breakpoints, func(i, j int) bool {
		a, b := p.Breakpoints[i], p.Breakpoints[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Line < b.Line
	})
	return p
}

// Len returns the number of breakpoints.
func (p *Plan) Len() int {
	return len(p.Breakpoints)
}

const gdbPrologue = `python gdb.events.exited.connect(lambda x : gdb.execute("quit"))
set pagination off
set style enabled off
set filename-display absolute

`

const gdbBreakpoint = `tbreak %s:%d
commands
    info locals
    continue
end
`

const lldbPrologue = "settings set frame-format \"frame #${frame.index}: ${frame.pc}" +
	"{ ${module.file.basename}{`${function.name}}}{ at ${line.file.fullpath}:${line.number}}\\n\"\n" +
	`settings set target.disable-aslr false
settings set stop-line-count-before 1
settings set stop-line-count-after 0

`

// LLDB breakpoints are not one-shot, so each deletes itself by id.
const lldbBreakpoint = `break set --file %s --line %d
break command add %d
    frame select
    frame var
    break delete %d
    continue
DONE
`

// Script renders the debugger script that stops once at every breakpoint
// of plan, prints the locals and runs the target on input.
func Script(backend Backend, plan *Plan, input string) string {
	var b strings.Builder
	switch backend {
	case LLDB:
		b.WriteString(lldbPrologue)
		for i, bp := range plan.Breakpoints {
			fmt.Fprintf(&b, lldbBreakpoint, bp.Source, bp.Line, i+1, i+1)
		}
		fmt.Fprintf(&b, "\nrun %s\n\nquit\n", quoteArg(input))
	default:
		b.WriteString(gdbPrologue)
		for _, bp := range plan.Breakpoints {
			fmt.Fprintf(&b, gdbBreakpoint, bp.Source, bp.Line)
		}
		fmt.Fprintf(&b, "\nset width unlimited\nrun %s\nquit\n", quoteArg(input))
	}
	return b.String()
}

func quoteArg(s string) string {
	if s == "" || !strings.ContainsAny(s, " \t'\"\\$") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
