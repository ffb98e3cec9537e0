// Package linetable reads the statement-boundary lines of a binary's DWARF
// line-number program, grouped by absolute source path.
package linetable

import (
	"encoding/binary"
	"encoding/json"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/cespare/xxhash/v2"
)

// builtinFile is the synthetic entry compilers emit for predefined macros.
const builtinFile = "<built-in>"

// LineTable maps absolute source paths to the set of lines a debugger can
// stop at.
type LineTable struct {
	files map[string]*roaring.Bitmap
}

// New returns an empty table.
func New() *LineTable {
	return &LineTable{files: make(map[string]*roaring.Bitmap)}
}

// Add records line as a statement boundary of path.
func (t *LineTable) Add(path string, line int) {
	if line <= 0 {
		return
	}
	bm, ok := t.files[path]
	if !ok {
		bm = roaring.New()
		t.files[path] = bm
	}
	bm.Add(uint32(line))
}

// prune drops the synthetic entry and files without lines.
func (t *LineTable) prune() {
	delete(t.files, builtinFile)
	for path, bm := range t.files {
		if bm.IsEmpty() {
			delete(t.files, path)
		}
	}
}

// Files returns the sorted source paths.
func (t *LineTable) Files() []string {
	out := make([]string, 0, len(t.files))
	for path := range t.files {
		out = append(out, path)
	}
	sort.Strings(out)
	return out
}

// Lines returns the sorted lines of path.
func (t *LineTable) Lines(path string) []int {
	bm, ok := t.files[path]
	if !ok {
		return nil
	}
	out := make([]int, 0, bm.GetCardinality())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

// Has reports whether line of path is a statement boundary.
func (t *LineTable) Has(path string, line int) bool {
	bm, ok := t.files[path]
	return ok && line > 0 && bm.Contains(uint32(line))
}

// Len returns the number of files.
func (t *LineTable) Len() int {
	return len(t.files)
}

// Count returns the number of (file, line) pairs.
func (t *LineTable) Count() uint64 {
	var n uint64
	for _, bm := range t.files {
		n += bm.GetCardinality()
	}
	return n
}

// Equal reports whether both tables hold the same lines for the same files.
func (t *LineTable) Equal(o *LineTable) bool {
	if len(t.files) != len(o.files) {
		return false
	}
	for path, bm := range t.files {
		other, ok := o.files[path]
		if !ok || !bm.Equals(other) {
			return false
		}
	}
	return true
}

// Fingerprint hashes the canonical table content. Tables with equal line
// sets have equal fingerprints.
func (t *LineTable) Fingerprint() uint64 {
	h := xxhash.New()
	var buf [4]byte
	for _, path := range t.Files() {
		_, _ = h.WriteString(path)
		_, _ = h.Write([]byte{0})
		it := t.files[path].Iterator()
		for it.HasNext() {
			binary.LittleEndian.PutUint32(buf[:], it.Next())
			_, _ = h.Write(buf[:])
		}
		_, _ = h.Write([]byte{0xff})
	}
	return h.Sum64()
}

// MarshalJSON encodes the table as path -> sorted lines.
func (t *LineTable) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Map())
}

// Map returns the table as plain path -> sorted lines.
func (t *LineTable) Map() map[string][]int {
	out := make(map[string][]int, len(t.files))
	for path := range t.files {
		out[path] = t.Lines(path)
	}
	return out
}
