package linetable

import (
	"context"
	"debug/dwarf"
	"debug/elf"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// ErrNoText is returned for binaries without a .text section.
var ErrNoText = errors.New("binary has no .text section")

// Reader selects how line tables are obtained.
type Reader string

const (
	// ReaderDwarfdump parses llvm-dwarfdump output.
	ReaderDwarfdump Reader = "dwarfdump"
	// ReaderNative reads DWARF directly from the ELF file.
	ReaderNative Reader = "native"
)

// Read obtains the line table of binary with the selected reader.
func Read(ctx context.Context, reader Reader, tool, binary string) (*LineTable, error) {
	switch reader {
	case ReaderNative:
		return ReadELF(binary)
	case ReaderDwarfdump, "":
		return ReadDump(ctx, tool, binary)
	default:
		return nil, fmt.Errorf("unknown line reader %q", reader)
	}
}

// ReadELF reads the statement rows of every compilation unit's line
// program from an ELF binary.
func ReadELF(binary string) (*LineTable, error) {
	f, err := elf.Open(binary)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", binary, err)
	}
	defer f.Close()

	d, err := f.DWARF()
	if err != nil {
		return nil, fmt.Errorf("read dwarf of %s: %w", binary, err)
	}

	t := New()
	r := d.Reader()
	for {
		entry, err := r.Next()
		if err != nil {
			return nil, fmt.Errorf("read dwarf of %s: %w", binary, err)
		}
		if entry == nil {
			break
		}
		r.SkipChildren()
		if entry.Tag != dwarf.TagCompileUnit {
			continue
		}
		lr, err := d.LineReader(entry)
		if err != nil || lr == nil {
			continue
		}
		readRows(t, lr)
	}
	t.prune()
	return t, nil
}

func readRows(t *LineTable, lr *dwarf.LineReader) {
	var row dwarf.LineEntry
	for {
		// io.EOF ends the program; other errors leave the rows read so far.
		if err := lr.Next(&row); err != nil {
			return
		}
		if row.IsStmt && !row.EndSequence && row.File != nil {
			t.Add(row.File.Name, row.Line)
		}
	}
}

// TextHash returns the BLAKE3 hex digest of the .text section of binary.
// Two builds with equal digests generate identical code.
func TextHash(binary string) (string, error) {
	f, err := elf.Open(binary)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", binary, err)
	}
	defer f.Close()

	sec := f.Section(".text")
	if sec == nil {
		return "", fmt.Errorf("%s: %w", binary, ErrNoText)
	}
	h := blake3.New()
	if _, err := io.Copy(h, sec.Open()); err != nil {
		return "", fmt.Errorf("hash .text of %s: %w", binary, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
