package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/astcache"
	"github.com/panbanda/dbgfidelity/internal/astgen"
	"github.com/panbanda/dbgfidelity/internal/progress"
	"github.com/panbanda/dbgfidelity/pkg/artifact"
	"github.com/panbanda/dbgfidelity/pkg/config"
	"github.com/panbanda/dbgfidelity/pkg/reconcile"
)

func polishCmd() *cli.Command {
	return &cli.Command{
		Name:      "polish",
		Usage:     "Classify traced variables as live or falsely reported",
		ArgsUsage: "<project>",
		Description: `Compares every configuration of traces-<fuzz>.json with the static
liveness model of the project's sources. Sources are parsed with
clang -ast-dump=json once and cached under <targets>/<project>/pickles/.

Writes traces-polished-<fuzz>.json next to the traces.`,
		Flags:  []cli.Flag{fuzzFlag},
		Action: runPolishCmd,
	}
}

// projectModels builds the static-model source of project.
func projectModels(cfg *config.Config, s *appState, project string) (*reconcile.ProjectModels, error) {
	cache, err := astcache.New(cfg.PicklesDir(project))
	if err != nil {
		return nil, err
	}
	p := cfg.Project(project)
	gen := astgen.New(
		astgen.WithClang(cfg.AST.Clang),
		astgen.WithIncludes(p.Includes...),
		astgen.WithDefines(p.Defines...),
		astgen.WithIgnoredHeaders(cfg.AST.IgnoreHeaders...),
		astgen.WithLogger(s.logger),
	)
	return reconcile.NewProjectModels(cfg.ProjectDir(project), cache, gen, s.logger), nil
}

func runPolishCmd(c *cli.Context) error {
	s := state(c)
	cfg := s.cfg
	project, err := projectArg(c)
	if err != nil {
		return err
	}
	targetDir := cfg.TargetDir(project)
	targets, err := fuzzTargets(c, cfg, project, artifactTargets(targetDir, "traces-"))
	if err != nil {
		return err
	}
	models, err := projectModels(cfg, s, project)
	if err != nil {
		return err
	}
	p := cfg.Project(project)

	for _, fz := range targets {
		traces, err := artifact.LoadTraces(artifact.TracesPath(targetDir, fz))
		if err != nil {
			return err
		}

		spinner := progress.NewSpinner(fmt.Sprintf("Polishing %s...", fz))
		pass := reconcile.NewPass(cfg.ProjectDir(project), models,
			reconcile.WithHarnessMarkers(cfg.Exclude.HarnessMarkers...),
			reconcile.WithExcludedSources(p.Exclude...),
			reconcile.WithLogger(s.logger.With("fuzz", fz)),
		)
		polished, err := pass.Run(c.Context, traces)
		if err != nil {
			spinner.FinishError(err)
			return err
		}
		spinner.FinishSuccess()

		path := artifact.PolishedPath(targetDir, fz)
		if err := artifact.Save(path, polished); err != nil {
			return err
		}
		status(c).Success("%s: %d levels polished into %s", fz, len(polished.Vars), path)
	}
	return nil
}
