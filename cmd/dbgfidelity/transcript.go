package main

import (
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/output"
	"github.com/panbanda/dbgfidelity/pkg/trace"
)

func transcriptCmd() *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Parse a saved gdb or lldb session transcript",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Debugger that wrote the transcript: gdb or lldb (default: from compiler.name)",
			},
		},
		Action: runTranscriptCmd,
	}
}

func runTranscriptCmd(c *cli.Context) error {
	cfg := state(c).cfg
	if c.Args().Len() != 1 {
		return usageError(c, "transcript expects one file")
	}
	backend := trace.BackendFor(cfg.Compiler.Name)
	if name := c.String("backend"); name != "" {
		b, err := trace.ParseBackend(name)
		if err != nil {
			return err
		}
		backend = b
	}
	data, err := os.ReadFile(c.Args().First())
	if err != nil {
		return err
	}
	res := trace.Parse(backend, string(data))

	f, err := formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()
	if res.Outcome != trace.OutcomeRecorded {
		f.Warning("session %s: no lines recorded", res.Outcome)
		return nil
	}
	return f.Output(transcriptTable(res.Record))
}

func transcriptTable(rec *trace.Record) *output.Table {
	var rows [][]string
	sources := make([]string, 0, len(rec.Variables))
	for s := range rec.Variables {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		lines := make([]int, 0, len(rec.Variables[s]))
		for l := range rec.Variables[s] {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		for _, l := range lines {
			lr := rec.Variables[s][l]
			rows = append(rows, []string{
				s + ":" + strconv.Itoa(l),
				lr.Function,
				strings.Join(lr.Available, " "),
				strings.Join(append(append([]string{}, lr.OptimizedOut...), lr.NotAvailable...), " "),
			})
		}
	}
	return output.NewTable("Transcript", []string{"Line", "Function", "Available", "Unavailable"}, rows, nil, rec)
}
