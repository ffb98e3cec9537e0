package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeLiveVariables() string {
	return `Answers which variables are statically live at source lines of a C file, from its clang JSON AST dump.

USE WHEN:
- Checking whether a debugger was right to show a variable at a line
- Explaining why a variable was classified notlive
- Inspecting which function and statement own a line

INTERPRETING RESULTS:
- live: locals and parameters initialized strictly before the line, on the path from the line's statement to its function
- used: variables referenced by the outermost statement that starts on the line
- found=false: no function or statement covers the line, so the line is skipped during reconciliation
- Globals are never live; a variable is never live on its own initialization line

METRICS RETURNED:
- Per line: function, statement kind, live names, used names, found flag`
}

func describeLineTable() string {
	return `Lists the statement-boundary lines of every source file in a binary's DWARF line table.

USE WHEN:
- Checking which lines receive breakpoints during tracing
- Comparing the lines two optimization configurations still describe
- Debugging a source that never shows up in traces

INTERPRETING RESULTS:
- Only rows flagged is_stmt are kept
- <built-in> entries and files without lines are dropped
- Tables of all compilation units are unioned per source path

METRICS RETURNED:
- Per source: absolute path and sorted unique line numbers`
}

func describeParseTranscript() string {
	return `Parses a saved gdb or lldb session transcript into per-line variable availability.

USE WHEN:
- Verifying what a debugger reported at each breakpoint
- Investigating a crashed or empty session
- Comparing gdb and lldb behavior on the same binary

INTERPRETING RESULTS:
- outcome=crashed: a segmentation fault was seen; no lines are recorded
- available wins: a variable printed with a value at any stop of a line is available there
- optimized_out and not_available hold variables never seen available at the line

METRICS RETURNED:
- outcome: recorded, crashed, or failed
- Per line: source, line, function, available, optimized_out, not_available`
}

func describeFidelityMetrics() string {
	return `Computes debug-info fidelity metrics of a project from its polished traces.

USE WHEN:
- Ranking optimization passes by the debug information they destroy
- Comparing optimization levels against the -O0 baseline
- Summarizing a project after the polish stage

INTERPRETING RESULTS:
- Keys are <level><pass>, e.g. 2-standard or 2-licm
- availability-variables: geometric mean of per-line ratio+1 of baseline variables still available, minus 1; 1.0 is perfect
- line-coverage: share of baseline lines still reached; 1.0 is perfect
- Passes marked reused produced code identical to their level's -standard build

METRICS RETURNED:
- availability-variables and line-coverage per configuration, and the project revision`
}
