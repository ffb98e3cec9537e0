package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/output"
	"github.com/panbanda/dbgfidelity/pkg/linetable"
)

func linesCmd() *cli.Command {
	return &cli.Command{
		Name:      "lines",
		Usage:     "Show the statement lines of a binary's DWARF line table",
		ArgsUsage: "<binary>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "reader",
				Usage: "Line table reader: dwarfdump or native (default: trace.line_reader)",
			},
			&cli.StringFlag{
				Name:  "dump",
				Usage: "Parse saved llvm-dwarfdump --debug-line output instead of a binary",
			},
		},
		Action: runLinesCmd,
	}
}

type lineSummary struct {
	Binary      string           `json:"binary,omitempty"`
	TextHash    string           `json:"text_hash,omitempty"`
	Fingerprint string           `json:"fingerprint"`
	Lines       map[string][]int `json:"lines"`
}

func runLinesCmd(c *cli.Context) error {
	cfg := state(c).cfg
	summary := lineSummary{}

	var table *linetable.LineTable
	if dump := c.String("dump"); dump != "" {
		data, err := os.ReadFile(dump)
		if err != nil {
			return err
		}
		table = linetable.ParseDump(string(data))
	} else {
		if c.Args().Len() != 1 {
			return usageError(c, "lines expects a binary or --dump")
		}
		binary := c.Args().First()
		reader := cfg.Trace.LineReader
		if r := c.String("reader"); r != "" {
			reader = r
		}
		t, err := linetable.Read(c.Context, linetable.Reader(reader), cfg.Trace.Dwarfdump, binary)
		if err != nil {
			return err
		}
		table = t
		summary.Binary = binary
		if hash, err := linetable.TextHash(binary); err == nil {
			summary.TextHash = hash
		}
	}
	summary.Fingerprint = fmt.Sprintf("%016x", table.Fingerprint())
	summary.Lines = table.Map()

	files := table.Files()
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		lines := table.Lines(f)
		if len(lines) == 0 {
			continue
		}
		rows = append(rows, []string{f, strconv.Itoa(len(lines)), strconv.Itoa(lines[0]), strconv.Itoa(lines[len(lines)-1])})
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()
	footer := []string{"fingerprint " + summary.Fingerprint, strconv.FormatUint(table.Count(), 10), "", ""}
	return f.Output(output.NewTable("Line table", []string{"Source", "Lines", "First", "Last"}, rows, footer, summary))
}
