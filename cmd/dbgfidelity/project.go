package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/pkg/config"
)

var fuzzFlag = &cli.StringSliceFlag{
	Name:  "fuzz",
	Usage: "Fuzz targets to process (default: projects.<name>.fuzz_targets, then discovered)",
}

// projectArg returns the single positional project name.
func projectArg(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", usageError(c, "%s expects exactly one project name", c.Command.Name)
	}
	return c.Args().First(), nil
}

// fuzzTargets resolves the fuzz targets of project: --fuzz, then the
// configured list, then discover.
func fuzzTargets(c *cli.Context, cfg *config.Config, project string, discover func() ([]string, error)) ([]string, error) {
	if targets := c.StringSlice("fuzz"); len(targets) > 0 {
		return targets, nil
	}
	if targets := cfg.Project(project).FuzzTargets; len(targets) > 0 {
		return targets, nil
	}
	targets, err := discover()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, fmt.Errorf("no fuzz targets found for %s", project)
	}
	return targets, nil
}

// corpusTargets lists the corpus subdirectories of project.
func corpusTargets(cfg *config.Config, project string) func() ([]string, error) {
	return func() ([]string, error) {
		entries, err := os.ReadDir(filepath.Join(cfg.Paths.Corpus, project))
		if err != nil {
			return nil, err
		}
		var out []string
		for _, e := range entries {
			if e.IsDir() {
				out = append(out, e.Name())
			}
		}
		return out, nil
	}
}

// artifactTargets lists the fuzz targets of files named <prefix><fuzz>.json
// in dir.
func artifactTargets(dir, prefix string) func() ([]string, error) {
	return func() ([]string, error) {
		matches, err := filepath.Glob(filepath.Join(dir, prefix+"*.json"))
		if err != nil {
			return nil, err
		}
		var out []string
		for _, m := range matches {
			name := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix), ".json")
			if prefix == "traces-" && strings.HasPrefix(name, "polished-") {
				continue
			}
			out = append(out, name)
		}
		sort.Strings(out)
		return out, nil
	}
}
