package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "gcc", cfg.CompilerID())
	assert.Equal(t, 4000*time.Second, cfg.Timeout())
	assert.Equal(t, 1, cfg.Trace.Workers)
	assert.Equal(t, "dwarfdump", cfg.Trace.LineReader)
	assert.Equal(t, []string{"fuzz"}, cfg.Exclude.HarnessMarkers)
	assert.Equal(t, []string{"string.h"}, cfg.AST.IgnoreHeaders)
	assert.Equal(t, "text", cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "dbgfidelity.toml",
			content: `
[compiler]
name = "clang"
version = "18"

[trace]
workers = 8
timeout_seconds = 60

[projects.libpng]
fuzz_targets = ["libpng_read_fuzzer"]
defines = ["PNG_DEBUG"]
exclude = ["*.h"]
`,
		},
		{
			name: "yaml",
			file: "dbgfidelity.yaml",
			content: `
compiler:
  name: clang
  version: "18"
trace:
  workers: 8
  timeout_seconds: 60
projects:
  libpng:
    fuzz_targets: [libpng_read_fuzzer]
    defines: [PNG_DEBUG]
    exclude: ["*.h"]
`,
		},
		{
			name: "json",
			file: "dbgfidelity.json",
			content: `{
  "compiler": {"name": "clang", "version": "18"},
  "trace": {"workers": 8, "timeout_seconds": 60},
  "projects": {"libpng": {"fuzz_targets": ["libpng_read_fuzzer"], "defines": ["PNG_DEBUG"], "exclude": ["*.h"]}}
}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.file, tt.content))
			require.NoError(t, err)

			assert.Equal(t, "clang-18", cfg.CompilerID())
			assert.Equal(t, 8, cfg.Trace.Workers)
			assert.Equal(t, time.Minute, cfg.Timeout())
			// Unset keys keep their defaults.
			assert.Equal(t, "dwarfdump", cfg.Trace.LineReader)

			p := cfg.Project("libpng")
			assert.Equal(t, []string{"libpng_read_fuzzer"}, p.FuzzTargets)
			assert.Equal(t, []string{"PNG_DEBUG"}, p.Defines)
			assert.Equal(t, []string{"*.h"}, p.Exclude)
		})
	}
}

func TestLoadUnknownExtensionIsTOML(t *testing.T) {
	cfg, err := Load(writeConfig(t, "settings.conf", "[output]\nformat = \"json\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("/nonexistent/path/dbgfidelity.toml")
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "bad.toml", "[trace\n"))
	assert.Error(t, err)

	_, _, err = LoadOrDefault("/nonexistent/dbgfidelity.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Compiler.Name = ""
	cfg.Trace.Debugger = "windbg"
	cfg.Trace.Workers = -1
	cfg.Trace.TimeoutSeconds = 0
	cfg.Trace.LineReader = "objdump"
	cfg.Output.Format = "xml"
	cfg.Exclude.Sources = []string{"["}

	err := cfg.Validate()
	require.Error(t, err)
	for _, key := range []string{"compiler.name", "trace.debugger", "trace.workers", "trace.timeout_seconds", "trace.line_reader", "output.format", "exclude.sources"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestProjectMergesGlobals(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AST.Includes = []string{"/opt/include"}
	cfg.Exclude.Sources = []string{"grammar.c"}
	cfg.Projects["zlib"] = ProjectConfig{Includes: []string{"contrib"}}

	p := cfg.Project("zlib")
	assert.Equal(t, []string{"/opt/include", "contrib"}, p.Includes)
	assert.Equal(t, []string{"grammar.c"}, p.Exclude)
	assert.Empty(t, cfg.Project("unknown").FuzzTargets)
}

func TestPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths = PathsConfig{Targets: "/t", Projects: "/p", Corpus: "/c"}
	cfg.Compiler.Version = "12"

	assert.Equal(t, filepath.Join("/t", "zlib", "gcc-12"), cfg.TargetDir("zlib"))
	assert.Equal(t, filepath.Join("/t", "zlib", "pickles"), cfg.PicklesDir("zlib"))
	assert.Equal(t, filepath.Join("/p", "zlib"), cfg.ProjectDir("zlib"))
	assert.Equal(t, filepath.Join("/c", "zlib", "inflate"), cfg.CorpusDir("zlib", "inflate"))
}

func TestTOMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Projects["zlib"] = ProjectConfig{FuzzTargets: []string{"inflate"}}

	data, err := cfg.TOML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "timeout_seconds = 4000")

	got, err := Load(writeConfig(t, "dbgfidelity.toml", string(data)))
	require.NoError(t, err)
	assert.Equal(t, cfg.Trace, got.Trace)
	assert.Equal(t, []string{"inflate"}, got.Projects["zlib"].FuzzTargets)
}
