// Package config loads dbgfidelity settings from TOML, YAML or JSON files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	gotoml "github.com/pelletier/go-toml"
)

// Config holds all configuration options for dbgfidelity.
type Config struct {
	Paths    PathsConfig              `koanf:"paths" toml:"paths"`
	Compiler CompilerConfig           `koanf:"compiler" toml:"compiler"`
	Trace    TraceConfig              `koanf:"trace" toml:"trace"`
	AST      ASTConfig                `koanf:"ast" toml:"ast"`
	Exclude  ExcludeConfig            `koanf:"exclude" toml:"exclude"`
	Output   OutputConfig             `koanf:"output" toml:"output"`
	Projects map[string]ProjectConfig `koanf:"projects" toml:"projects"`
}

// PathsConfig locates the build targets, project sources and corpora.
type PathsConfig struct {
	Targets  string `koanf:"targets" toml:"targets"`
	Projects string `koanf:"projects" toml:"projects"`
	Corpus   string `koanf:"corpus" toml:"corpus"`
}

// CompilerConfig names the compiler the targets were built with.
type CompilerConfig struct {
	Name    string `koanf:"name" toml:"name"`
	Version string `koanf:"version" toml:"version"`
}

// TraceConfig controls debugger sessions.
type TraceConfig struct {
	Debugger       string `koanf:"debugger" toml:"debugger"` // gdb, lldb or empty for the compiler default
	Workers        int    `koanf:"workers" toml:"workers"`
	TimeoutSeconds int    `koanf:"timeout_seconds" toml:"timeout_seconds"`
	LineReader     string `koanf:"line_reader" toml:"line_reader"` // dwarfdump or native
	Dwarfdump      string `koanf:"dwarfdump" toml:"dwarfdump"`
}

// ASTConfig controls clang AST generation.
type ASTConfig struct {
	Clang         string   `koanf:"clang" toml:"clang"`
	Includes      []string `koanf:"includes" toml:"includes"`
	Defines       []string `koanf:"defines" toml:"defines"`
	IgnoreHeaders []string `koanf:"ignore_headers" toml:"ignore_headers"`
}

// ExcludeConfig selects sources left out of reconciliation.
type ExcludeConfig struct {
	HarnessMarkers []string `koanf:"harness_markers" toml:"harness_markers"`
	Sources        []string `koanf:"sources" toml:"sources"` // base name globs
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color  bool   `koanf:"color" toml:"color"`
}

// ProjectConfig holds per-project settings.
type ProjectConfig struct {
	FuzzTargets []string `koanf:"fuzz_targets" toml:"fuzz_targets"`
	Includes    []string `koanf:"includes" toml:"includes"`
	Defines     []string `koanf:"defines" toml:"defines"`
	Exclude     []string `koanf:"exclude" toml:"exclude"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			Targets:  "dt-targets",
			Projects: "dt-projects",
			Corpus:   "dt-corpus-min",
		},
		Compiler: CompilerConfig{Name: "gcc"},
		Trace: TraceConfig{
			Workers:        1,
			TimeoutSeconds: 4000,
			LineReader:     "dwarfdump",
			Dwarfdump:      "llvm-dwarfdump",
		},
		AST: ASTConfig{
			Clang:         "clang",
			IgnoreHeaders: []string{"string.h"},
		},
		Exclude: ExcludeConfig{
			HarnessMarkers: []string{"fuzz"},
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
		Projects: map[string]ProjectConfig{},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if cfg.Projects == nil {
		cfg.Projects = map[string]ProjectConfig{}
	}
	return cfg, nil
}

// Find returns the first config file present in the standard locations.
func Find() (string, bool) {
	names := []string{
		"dbgfidelity.toml",
		"dbgfidelity.yaml",
		"dbgfidelity.yml",
		"dbgfidelity.json",
	}
	for _, dir := range []string{".", ".dbgfidelity"} {
		for _, name := range names {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}
	return "", false
}

// LoadOrDefault loads path, or the first file Find reports, or defaults.
// It returns the file used, empty for defaults.
func LoadOrDefault(path string) (*Config, string, error) {
	if path == "" {
		found, ok := Find()
		if !ok {
			return DefaultConfig(), "", nil
		}
		path = found
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, path, nil
}

var (
	debuggers   = map[string]bool{"": true, "gdb": true, "lldb": true}
	lineReaders = map[string]bool{"dwarfdump": true, "native": true}
	formats     = map[string]bool{"text": true, "json": true, "markdown": true, "toon": true, "yaml": true}
)

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Compiler.Name == "" {
		errs = append(errs, errors.New("compiler.name is required"))
	}
	if !debuggers[c.Trace.Debugger] {
		errs = append(errs, fmt.Errorf("trace.debugger %q: want gdb or lldb", c.Trace.Debugger))
	}
	if c.Trace.Workers < 0 {
		errs = append(errs, fmt.Errorf("trace.workers %d: must not be negative", c.Trace.Workers))
	}
	if c.Trace.TimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("trace.timeout_seconds %d: must be positive", c.Trace.TimeoutSeconds))
	}
	if !lineReaders[c.Trace.LineReader] {
		errs = append(errs, fmt.Errorf("trace.line_reader %q: want dwarfdump or native", c.Trace.LineReader))
	}
	if !formats[c.Output.Format] {
		errs = append(errs, fmt.Errorf("output.format %q: unsupported", c.Output.Format))
	}
	for name, p := range c.Projects {
		for _, pattern := range p.Exclude {
			if _, err := filepath.Match(pattern, ""); err != nil {
				errs = append(errs, fmt.Errorf("projects.%s.exclude %q: %w", name, pattern, err))
			}
		}
	}
	for _, pattern := range c.Exclude.Sources {
		if _, err := filepath.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Errorf("exclude.sources %q: %w", pattern, err))
		}
	}
	return errors.Join(errs...)
}

// CompilerID returns "<name>" or "<name>-<version>", the directory name of
// a project's builds.
func (c *Config) CompilerID() string {
	if c.Compiler.Version == "" {
		return c.Compiler.Name
	}
	return c.Compiler.Name + "-" + c.Compiler.Version
}

// Timeout returns the per-session debugger timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Trace.TimeoutSeconds) * time.Second
}

// Project returns the settings of a project merged over the global ones.
func (c *Config) Project(name string) ProjectConfig {
	p := c.Projects[name]
	return ProjectConfig{
		FuzzTargets: p.FuzzTargets,
		Includes:    concat(c.AST.Includes, p.Includes),
		Defines:     concat(c.AST.Defines, p.Defines),
		Exclude:     concat(c.Exclude.Sources, p.Exclude),
	}
}

func concat(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// TargetDir returns <targets>/<project>/<compiler>.
func (c *Config) TargetDir(project string) string {
	return filepath.Join(c.Paths.Targets, project, c.CompilerID())
}

// PicklesDir returns <targets>/<project>/pickles.
func (c *Config) PicklesDir(project string) string {
	return filepath.Join(c.Paths.Targets, project, "pickles")
}

// ProjectDir returns <projects>/<project>.
func (c *Config) ProjectDir(project string) string {
	return filepath.Join(c.Paths.Projects, project)
}

// CorpusDir returns <corpus>/<project>/<fuzz target>.
func (c *Config) CorpusDir(project, fuzzTarget string) string {
	return filepath.Join(c.Paths.Corpus, project, fuzzTarget)
}

// TOML renders the effective configuration.
func (c *Config) TOML() ([]byte, error) {
	var buf bytes.Buffer
	enc := gotoml.NewEncoder(&buf).Indentation("  ").Order(gotoml.OrderPreserve)
	if err := enc.Encode(c); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}
