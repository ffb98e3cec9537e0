package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	toon "github.com/toon-format/toon-go"

	"github.com/panbanda/dbgfidelity/internal/output"
	"github.com/panbanda/dbgfidelity/pkg/linetable"
	"github.com/panbanda/dbgfidelity/pkg/liveness"
	"github.com/panbanda/dbgfidelity/pkg/metrics"
	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
	"github.com/panbanda/dbgfidelity/pkg/trace"
)

// FormatInput selects how a tool renders its result.
type FormatInput struct {
	Format string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, or markdown."`
}

// LiveVariablesInput queries the static model of one source file.
type LiveVariablesInput struct {
	FormatInput
	AST   string `json:"ast" jsonschema:"Path to the clang -ast-dump=json output of the source file."`
	Lines []int  `json:"lines" jsonschema:"Source lines to query."`
}

// LineTableInput selects a line table.
type LineTableInput struct {
	FormatInput
	Dump   string `json:"dump,omitempty" jsonschema:"Path to saved llvm-dwarfdump --debug-line output."`
	Binary string `json:"binary,omitempty" jsonschema:"Path to an ELF binary with DWARF line info, read natively."`
}

// TranscriptInput names a saved debugger transcript.
type TranscriptInput struct {
	FormatInput
	Backend    string `json:"backend" jsonschema:"Debugger that produced the transcript: gdb or lldb."`
	Transcript string `json:"transcript" jsonschema:"Path to the transcript file."`
}

// MetricsInput names the polished traces of one project.
type MetricsInput struct {
	FormatInput
	Dir         string   `json:"dir" jsonschema:"Directory holding traces-polished-<fuzz>.json files."`
	FuzzTargets []string `json:"fuzz_targets" jsonschema:"Fuzz targets whose polished traces are combined."`
}

// LineFacts is the static answer for one line.
type LineFacts struct {
	Line      int      `json:"line"`
	Function  string   `json:"function,omitempty"`
	Statement string   `json:"statement,omitempty"`
	Live      []string `json:"live"`
	Used      []string `json:"used"`
	Found     bool     `json:"found"`
}

// SourceLines is one file of a line table.
type SourceLines struct {
	Source string `json:"source"`
	Lines  []int  `json:"lines"`
}

// TranscriptLine is one recorded breakpoint line.
type TranscriptLine struct {
	Source       string   `json:"source"`
	Line         int      `json:"line"`
	Function     string   `json:"function"`
	Available    []string `json:"available"`
	OptimizedOut []string `json:"optimized_out"`
	NotAvailable []string `json:"not_available,omitempty"`
}

// TranscriptResult summarizes a parsed transcript.
type TranscriptResult struct {
	Outcome string           `json:"outcome"`
	Lines   []TranscriptLine `json:"lines"`
}

func getFormat(input FormatInput) output.Format {
	switch input.Format {
	case "json":
		return output.FormatJSON
	case "markdown", "md":
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	switch format {
	case output.FormatJSON:
		out, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", err
		}
		return string(out), nil
	case output.FormatMarkdown:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	default:
		out, err := toon.Marshal(data, toon.WithIndent(2))
		if err != nil {
			return "", err
		}
		return string(out), nil
	}
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleLiveVariables(ctx context.Context, req *mcp.CallToolRequest, input LiveVariablesInput) (*mcp.CallToolResult, any, error) {
	if input.AST == "" {
		return toolError("ast is required")
	}
	if len(input.Lines) == 0 {
		return toolError("at least one line is required")
	}
	data, err := os.ReadFile(input.AST)
	if err != nil {
		return toolError(err.Error())
	}
	tree, err := sourcemodel.Parse(data)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(lineFacts(liveness.New(tree), input.Lines), getFormat(input.FormatInput))
}

func lineFacts(engine *liveness.Engine, lines []int) []LineFacts {
	tree := engine.AST()
	out := make([]LineFacts, 0, len(lines))
	for _, line := range lines {
		facts := LineFacts{Line: line, Live: []string{}, Used: []string{}}
		if fn, ok := engine.FunctionAt(line); ok {
			facts.Function = tree.Stmt(fn).Name
		}
		if stmt, ok := engine.StatementAt(line); ok {
			facts.Statement = tree.Stmt(stmt).Kind.String()
		}
		if live, ok := engine.LiveVarsAt(line); ok {
			facts.Found = true
			facts.Live = append(facts.Live, engine.Names(live)...)
		}
		if used, ok := engine.UsedVarsAt(line); ok {
			facts.Used = append(facts.Used, engine.Names(used)...)
		}
		out = append(out, facts)
	}
	return out
}

func (s *Server) handleLineTable(ctx context.Context, req *mcp.CallToolRequest, input LineTableInput) (*mcp.CallToolResult, any, error) {
	var table *linetable.LineTable
	switch {
	case input.Dump != "":
		data, err := os.ReadFile(input.Dump)
		if err != nil {
			return toolError(err.Error())
		}
		table = linetable.ParseDump(string(data))
	case input.Binary != "":
		t, err := linetable.ReadELF(input.Binary)
		if err != nil {
			return toolError(err.Error())
		}
		table = t
	default:
		return toolError("dump or binary is required")
	}

	files := table.Files()
	out := make([]SourceLines, 0, len(files))
	for _, f := range files {
		out = append(out, SourceLines{Source: f, Lines: table.Lines(f)})
	}
	return toolResult(out, getFormat(input.FormatInput))
}

func (s *Server) handleParseTranscript(ctx context.Context, req *mcp.CallToolRequest, input TranscriptInput) (*mcp.CallToolResult, any, error) {
	backend, err := trace.ParseBackend(input.Backend)
	if err != nil {
		return toolError(err.Error())
	}
	data, err := os.ReadFile(input.Transcript)
	if err != nil {
		return toolError(err.Error())
	}
	return toolResult(transcriptResult(trace.Parse(backend, string(data))), getFormat(input.FormatInput))
}

func transcriptResult(res trace.Result) TranscriptResult {
	out := TranscriptResult{Outcome: res.Outcome.String(), Lines: []TranscriptLine{}}
	if res.Record == nil {
		return out
	}
	for source, lines := range res.Record.Variables {
		for line, lr := range lines {
			out.Lines = append(out.Lines, TranscriptLine{
				Source:       source,
				Line:         line,
				Function:     lr.Function,
				Available:    lr.Available,
				OptimizedOut: lr.OptimizedOut,
				NotAvailable: lr.NotAvailable,
			})
		}
	}
	sort.Slice(out.Lines, func(i, j int) bool {
		a, b := out.Lines[i], out.Lines[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		return a.Line < b.Line
	})
	return out
}

func (s *Server) handleFidelityMetrics(ctx context.Context, req *mcp.CallToolRequest, input MetricsInput) (*mcp.CallToolResult, any, error) {
	if input.Dir == "" || len(input.FuzzTargets) == 0 {
		return toolError("dir and fuzz_targets are required")
	}
	polished, err := metrics.Load(input.Dir, input.FuzzTargets, s.logger)
	if err != nil {
		return toolError(err.Error())
	}
	if len(polished) == 0 {
		return toolError(fmt.Sprintf("no polished traces in %s", input.Dir))
	}
	return toolResult(metrics.Compute(polished, s.harnessMarkers), getFormat(input.FormatInput))
}
