package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/panbanda/dbgfidelity/internal/astcache"
	"github.com/panbanda/dbgfidelity/internal/srctext"
	"github.com/panbanda/dbgfidelity/pkg/liveness"
	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

var (
	// ErrNameCollision is returned when a relative source matches more than
	// one file of the project.
	ErrNameCollision = errors.New("source file name collision")
	// ErrSourceNotFound is returned when a source cannot be located.
	ErrSourceNotFound = errors.New("source not found")
)

// Model is the static view of one traced source file.
type Model struct {
	Path   string
	Engine *liveness.Engine
	// Text is nil when the file could not be stripped.
	Text *srctext.Source
}

// ModelSource resolves traced source paths to their static models.
// Implementations are called at most once per source by a Pass.
type ModelSource interface {
	Model(ctx context.Context, source string) (*Model, error)
}

// Generator produces the AST of a source inside a project.
type Generator interface {
	Generate(ctx context.Context, source, projectDir string) (*sourcemodel.AST, error)
}

// ProjectModels loads models of a project's sources, reading the AST cache
// first and generating missing ASTs.
type ProjectModels struct {
	root   string
	cache  *astcache.Cache
	gen    Generator
	logger *slog.Logger
}

// NewProjectModels creates a model source rooted at the project directory.
// cache and gen may be nil.
func NewProjectModels(root string, cache *astcache.Cache, gen Generator, logger *slog.Logger) *ProjectModels {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectModels{root: root, cache: cache, gen: gen, logger: logger}
}

// Resolve returns the file a traced source refers to. Absolute sources are
// used as is; relative ones are searched below the project root.
func (m *ProjectModels) Resolve(source string) (string, error) {
	if filepath.IsAbs(source) {
		info, err := os.Stat(source)
		if err != nil || !info.Mode().IsRegular() {
			return "", fmt.Errorf("%w: %s", ErrSourceNotFound, source)
		}
		return source, nil
	}

	suffix := "/" + filepath.ToSlash(filepath.Clean(source))
	var found []string
	err := filepath.WalkDir(m.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(filepath.ToSlash(path), suffix) {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %s: %w", m.root, err)
	}
	switch len(found) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrSourceNotFound, source)
	case 1:
		return found[0], nil
	default:
		return "", fmt.Errorf("%w: %s matches %d files", ErrNameCollision, source, len(found))
	}
}

// AST returns the model of path, from the cache or freshly generated.
func (m *ProjectModels) AST(ctx context.Context, path string) (*sourcemodel.AST, error) {
	if m.cache != nil {
		a, ok, err := m.cache.Get(path)
		if err != nil {
			return nil, err
		}
		if ok {
			return a, nil
		}
	}
	if m.gen == nil {
		return nil, fmt.Errorf("no cached ast for %s", filepath.Base(path))
	}
	a, err := m.gen.Generate(ctx, path, m.root)
	if err != nil {
		return nil, err
	}
	if m.cache != nil {
		if err := m.cache.Set(path, a); err != nil {
			m.logger.Warn("cache ast", "source", path, "error", err)
		}
	}
	return a, nil
}

// Model implements ModelSource.
func (m *ProjectModels) Model(ctx context.Context, source string) (*Model, error) {
	path, err := m.Resolve(source)
	if err != nil {
		return nil, err
	}
	a, err := m.AST(ctx, path)
	if err != nil {
		return nil, err
	}
	text, err := srctext.Load(ctx, path)
	if err != nil {
		m.logger.Debug("source text unavailable", "source", path, "error", err)
		text = nil
	}
	return &Model{Path: path, Engine: liveness.New(a), Text: text}, nil
}
