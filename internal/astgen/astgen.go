// Package astgen produces source models by running clang's JSON AST dump.
package astgen

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

// DefaultTimeout bounds one clang invocation.
const DefaultTimeout = 1200 * time.Second

// ErrClang is returned when clang cannot dump a translation unit.
var ErrClang = errors.New("clang ast dump failed")

// Runner executes a command and returns its standard output and error.
type Runner func(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Generator dumps C sources belonging to one project.
type Generator struct {
	clang         string
	includes      []string
	defines       []string
	ignoreHeaders map[string]struct{}
	timeout       time.Duration
	run           Runner
	logger        *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClang overrides the clang executable.
func WithClang(path string) Option {
	return func(g *Generator) {
		if path != "" {
			g.clang = path
		}
	}
}

// WithIncludes adds include directories passed with -I.
func WithIncludes(dirs ...string) Option {
	return func(g *Generator) { g.includes = append(g.includes, dirs...) }
}

// WithDefines adds preprocessor definitions passed with -D.
func WithDefines(defs ...string) Option {
	return func(g *Generator) { g.defines = append(g.defines, defs...) }
}

// WithIgnoredHeaders skips headers during include discovery.
func WithIgnoredHeaders(names ...string) Option {
	return func(g *Generator) {
		for _, n := range names {
			g.ignoreHeaders[n] = struct{}{}
		}
	}
}

// WithTimeout bounds each clang run.
func WithTimeout(d time.Duration) Option {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithRunner replaces command execution.
func WithRunner(r Runner) Option {
	return func(g *Generator) { g.run = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// New creates a generator.
func New(opts ...Option) *Generator {
	g := &Generator{
		clang:         "clang",
		ignoreHeaders: map[string]struct{}{},
		timeout:       DefaultTimeout,
		run:           execRunner,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Args returns the clang arguments used for source.
func (g *Generator) Args(source string, includeDirs []string) []string {
	args := []string{"-w"}
	for _, dir := range includeDirs {
		args = append(args, "-I", dir)
	}
	for _, def := range dedupe(g.defines) {
		args = append(args, "-D"+def)
	}
	return append(args, "-fsyntax-only", "-Xclang", "-ast-dump=json", source)
}

// Generate dumps source and parses the result. projectDir, when set, is
// searched for the directories of headers the source includes.
func (g *Generator) Generate(ctx context.Context, source, projectDir string) (*sourcemodel.AST, error) {
	dirs := append([]string(nil), g.includes...)
	if projectDir != "" {
		found, err := g.IncludeDirs(source, projectDir)
		if err != nil {
			return nil, err
		}
		dirs = append(dirs, found...)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := g.run(ctx, g.clang, g.Args(source, dedupe(dirs))...)
	if err != nil {
		missing := ParseIncludes(strings.Split(string(stderr), "\n"))
		return nil, fmt.Errorf("%w for %s (missing %v): %v", ErrClang, filepath.Base(source), missing, err)
	}
	a, err := sourcemodel.Parse(stdout)
	if err != nil {
		return nil, fmt.Errorf("parse ast of %s: %w", filepath.Base(source), err)
	}
	g.logger.Debug("generated ast", "source", source, "functions", len(a.Functions), "elapsed", time.Since(start))
	return a, nil
}

// ParseIncludes extracts the header names of #include directives.
func ParseIncludes(lines []string) []string {
	set := map[string]struct{}{}
	for _, line := range lines {
		if !strings.Contains(strings.ReplaceAll(line, " ", ""), "#include") {
			continue
		}
		open, closing := "\"", "\""
		if strings.Contains(line, ">") {
			open, closing = "<", ">"
		}
		_, rest, ok := strings.Cut(line, open)
		if !ok {
			continue
		}
		header, _, ok := strings.Cut(rest, closing)
		if !ok || header == "" {
			continue
		}
		set[header] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for h := range set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func readIncludes(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.Contains(sc.Text(), "include") {
			lines = append(lines, sc.Text())
		}
	}
	return ParseIncludes(lines), sc.Err()
}

// IncludeDirs resolves the directories that make the transitive includes
// of source visible, by searching projectDir for each header. A header
// "a/b.h" found at dir/a/b.h contributes dir.
func (g *Generator) IncludeDirs(source, projectDir string) ([]string, error) {
	headers, err := indexHeaders(projectDir)
	if err != nil {
		return nil, err
	}
	queue, err := readIncludes(source)
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	dirs := map[string]struct{}{}
	for len(queue) > 0 {
		header := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if _, ok := seen[header]; ok {
			continue
		}
		seen[header] = struct{}{}
		if _, ok := g.ignoreHeaders[header]; ok {
			continue
		}

		for _, found := range headers[filepath.Base(header)] {
			if !strings.HasSuffix(filepath.ToSlash(found), "/"+header) {
				continue
			}
			dir := filepath.Dir(found)
			for range strings.Count(header, "/") {
				dir = filepath.Dir(dir)
			}
			dirs[dir] = struct{}{}

			nested, err := readIncludes(found)
			if err != nil {
				g.logger.Debug("unreadable header", "path", found, "error", err)
				continue
			}
			queue = append(queue, nested...)
		}
	}

	out := make([]string, 0, len(dirs))
	for d := range dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out, nil
}

func indexHeaders(root string) (map[string][]string, error) {
	index := map[string][]string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		index[d.Name()] = append(index[d.Name()], path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("index headers of %s: %w", root, err)
	}
	return index, nil
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
