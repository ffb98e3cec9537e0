package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a dbgfidelity configuration file for syntax errors and invalid values.

Examples:
  dbgfidelity config validate                        # default config locations
  dbgfidelity -c dbgfidelity.toml config validate    # specific file`,
				Action: runConfigValidate,
			},
			{
				Name:   "show",
				Usage:  "Show the effective configuration",
				Action: runConfigShow,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	s := state(c)
	if err := s.cfg.Validate(); err != nil {
		color.Red("Configuration validation failed:")
		fmt.Printf("  - %s\n", err)
		return err
	}
	if s.cfgSource != "" {
		color.Green("Configuration valid: %s", s.cfgSource)
	} else {
		color.Yellow("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	s := state(c)
	if s.cfgSource != "" {
		fmt.Printf("# Configuration from: %s\n\n", s.cfgSource)
	} else {
		fmt.Println("# Default configuration (no config file found)")
	}
	content, err := s.cfg.TOML()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Print(string(content))
	return nil
}

