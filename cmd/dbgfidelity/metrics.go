package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/dbgfidelity/internal/output"
	"github.com/panbanda/dbgfidelity/internal/vcs"
	"github.com/panbanda/dbgfidelity/pkg/artifact"
	"github.com/panbanda/dbgfidelity/pkg/metrics"
)

func metricsCmd() *cli.Command {
	return &cli.Command{
		Name:      "metrics",
		Usage:     "Compute availability of variables and line coverage per configuration",
		ArgsUsage: "<project>",
		Description: `Combines the polished traces of all fuzz targets of a project and
compares every configuration with the -O0 baseline. Writes metrics.json
next to the traces and prints both tables.`,
		Flags:  []cli.Flag{fuzzFlag},
		Action: runMetricsCmd,
	}
}

func runMetricsCmd(c *cli.Context) error {
	s := state(c)
	cfg := s.cfg
	project, err := projectArg(c)
	if err != nil {
		return err
	}
	targetDir := cfg.TargetDir(project)
	targets, err := fuzzTargets(c, cfg, project, artifactTargets(targetDir, "traces-polished-"))
	if err != nil {
		return err
	}
	polished, err := metrics.Load(targetDir, targets, s.logger)
	if err != nil {
		return err
	}
	if len(polished) == 0 {
		return fmt.Errorf("no polished traces in %s", targetDir)
	}

	m := metrics.Compute(polished, cfg.Exclude.HarnessMarkers)
	if m.Revision == "" {
		m.Revision = vcs.Identify(cfg.ProjectDir(project))
	}
	if err := artifact.Save(artifact.MetricsPath(targetDir), m); err != nil {
		return err
	}

	f, err := formatter(c)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Output(metricsReport(project, m, f.Colored()))
}

func metricsReport(project string, m *artifact.Metrics, colored bool) *output.Report {
	return &output.Report{
		Title: "Debug-info fidelity: " + project,
		Sections: []output.Renderable{
			metricTable("Availability of variables", m.Availability, colored),
			metricTable("Line coverage", m.LineCoverage, colored),
		},
		Data: m,
	}
}

func metricTable(title string, values map[string]float64, colored bool) *output.Table {
	keys := metrics.Keys(values)
	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		v := fmt.Sprintf("%.4f", values[k])
		if colored {
			v = output.RatioColor(values[k], v)
		}
		rows = append(rows, []string{k, v})
	}
	return output.NewTable(title, []string{"Configuration", "Value"}, rows, nil, values)
}
