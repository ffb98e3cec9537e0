// Package astcache persists parsed source models under <targets>/<project>/pickles.
package astcache

import (
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

// Ext is the extension of cached models.
const Ext = ".ast"

// Cache stores one model per source file name. Entries are never
// invalidated automatically; Stale reports a source that changed since.
type Cache struct {
	dir string
}

type entry struct {
	SourceHash string
	AST        *sourcemodel.AST
}

// New creates the cache directory if needed.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns the cache file of a source path. Sources are keyed by base
// name, which the project search guarantees to be unique.
func (c *Cache) Path(source string) string {
	return filepath.Join(c.dir, filepath.Base(source)+Ext)
}

// HashFile computes a BLAKE3 hash of a file's contents.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func (c *Cache) read(source string) (*entry, error) {
	f, err := os.Open(c.Path(source))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var e entry
	if err := gob.NewDecoder(f).Decode(&e); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(f.Name()), err)
	}
	if e.AST == nil || len(e.AST.Stmts) == 0 {
		return nil, sourcemodel.ErrEmptyTree
	}
	return &e, nil
}

// Get returns the cached model of source. A missing entry is (nil, false, nil).
func (c *Cache) Get(source string) (*sourcemodel.AST, bool, error) {
	e, err := c.read(source)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.AST, true, nil
}

// Set stores the model of source together with the hash of its contents.
func (c *Cache) Set(source string, a *sourcemodel.AST) error {
	hash, err := HashFile(source)
	if err != nil {
		return err
	}
	path := c.Path(source)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(entry{SourceHash: hash, AST: a}); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Stale reports whether source changed after its model was cached.
func (c *Cache) Stale(source string) (bool, error) {
	e, err := c.read(source)
	if err != nil {
		return false, err
	}
	hash, err := HashFile(source)
	if err != nil {
		return false, err
	}
	return hash != e.SourceHash, nil
}

// Invalidate removes the entry of source.
func (c *Cache) Invalidate(source string) error {
	err := os.Remove(c.Path(source))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Entries lists the cached source names.
func (c *Cache) Entries() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, filepath.Base(m[:len(m)-len(Ext)]))
	}
	return out, nil
}
