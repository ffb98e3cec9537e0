package main

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/astgen"
	"github.com/panbanda/dbgfidelity/internal/output"
	"github.com/panbanda/dbgfidelity/internal/srctext"
	"github.com/panbanda/dbgfidelity/pkg/liveness"
	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

func astCmd() *cli.Command {
	return &cli.Command{
		Name:      "ast",
		Usage:     "Inspect the static model of a C source file",
		ArgsUsage: "<source.c>",
		Description: `Parses a source with clang -ast-dump=json (or a saved dump given with
--json) and prints its functions. With --line, prints the function,
statement and live variables the reconciler sees at each line.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "json",
				Usage: "Read a saved clang JSON AST dump instead of running clang",
			},
			&cli.StringFlag{
				Name:  "project",
				Usage: "Project root searched for included headers (default: the source's directory)",
			},
			&cli.StringFlag{
				Name:  "function",
				Usage: "Print the full tree of one function",
			},
			&cli.IntSliceFlag{
				Name:  "line",
				Usage: "Query live variables at a line (repeatable)",
			},
		},
		Action: runASTCmd,
	}
}

func loadAST(c *cli.Context, source string) (*sourcemodel.AST, error) {
	if path := c.String("json"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return sourcemodel.Parse(data)
	}
	s := state(c)
	projectDir := c.String("project")
	if projectDir == "" {
		projectDir = filepath.Dir(source)
	}
	gen := astgen.New(
		astgen.WithClang(s.cfg.AST.Clang),
		astgen.WithIncludes(s.cfg.AST.Includes...),
		astgen.WithDefines(s.cfg.AST.Defines...),
		astgen.WithIgnoredHeaders(s.cfg.AST.IgnoreHeaders...),
		astgen.WithLogger(s.logger),
	)
	return gen.Generate(c.Context, source, projectDir)
}

func runASTCmd(c *cli.Context) error {
	if c.Args().Len() != 1 && c.String("json") == "" {
		return usageError(c, "ast expects one source file or --json")
	}
	source := c.Args().First()
	tree, err := loadAST(c, source)
	if err != nil {
		return err
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()

	if name := c.String("function"); name != "" {
		fn, ok := tree.FunctionByName(name)
		if !ok {
			f.Warning("function %s not found", name)
			return nil
		}
		return f.Output(tree.Dump(fn))
	}
	if lines := c.IntSlice("line"); len(lines) > 0 {
		var text *srctext.Source
		if source != "" {
			if t, err := srctext.Load(c.Context, source); err == nil {
				text = t
			}
		}
		return f.Output(liveTable(liveness.New(tree), text, lines))
	}
	return f.Output(functionTable(tree))
}

func functionTable(tree *sourcemodel.AST) *output.Table {
	rows := make([][]string, 0, len(tree.Functions))
	dumps := make([]sourcemodel.Node, 0, len(tree.Functions))
	for _, fn := range tree.Functions {
		s := tree.Stmt(fn)
		rows = append(rows, []string{s.Name, strconv.Itoa(s.Loc.Start), strconv.Itoa(s.Loc.End), s.Type})
		dumps = append(dumps, tree.Dump(fn))
	}
	data := map[string]any{"functions": dumps, "globals": tree.DumpGlobals()}
	return output.NewTable("Functions", []string{"Name", "Start", "End", "Type"}, rows, nil, data)
}

func liveTable(engine *liveness.Engine, text *srctext.Source, lines []int) *output.Table {
	tree := engine.AST()
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		row := []string{strconv.Itoa(line), "", "", "", strings.TrimSpace(text.Line(line))}
		if fn, ok := engine.FunctionAt(line); ok {
			row[1] = tree.Stmt(fn).Name
		}
		if stmt, ok := engine.StatementAt(line); ok {
			row[2] = tree.Stmt(stmt).Kind.String()
		}
		if live, ok := engine.LiveVarsAt(line); ok {
			row[3] = strings.Join(engine.Names(live), " ")
		} else {
			row[3] = "-"
		}
		rows = append(rows, row)
	}
	return output.NewTable("Live variables", []string{"Line", "Function", "Statement", "Live", "Code"}, rows, nil, nil)
}
