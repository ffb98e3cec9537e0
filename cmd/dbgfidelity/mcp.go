package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport exposing the static model,
line tables, transcript parsing and metrics as tools.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "dbgfidelity": {
        "command": "dbgfidelity",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - live_variables     Live variables at source lines from a clang AST dump
  - line_table         Statement lines of a DWARF line table
  - parse_transcript   Per-line availability from a gdb or lldb transcript
  - fidelity_metrics   Availability and line coverage of polished traces`,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the server.json manifest",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					fmt.Println(string(data))
					return nil
				},
			},
		},
		Action: runMCPCmd,
	}
}

func runMCPCmd(c *cli.Context) error {
	s := state(c)
	server := mcpserver.NewServer(version,
		mcpserver.WithHarnessMarkers(s.cfg.Exclude.HarnessMarkers...),
		mcpserver.WithLogger(s.logger),
	)
	return server.Run(c.Context)
}
