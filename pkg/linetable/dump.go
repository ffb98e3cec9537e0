package linetable

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
)

// DefaultDwarfdump is the tool ReadDump runs when none is given.
const DefaultDwarfdump = "llvm-dwarfdump"

var (
	tableSplit  = regexp.MustCompile(`debug_line\[0x[0-9a-fA-F]+\]`)
	versionRe   = regexp.MustCompile(`[vV]ersion:\s+(\d+)`)
	fileNameRe  = regexp.MustCompile(`file_names\[ *\d+\]:\n +name: "(.*)"\n +dir_index: (\d+)`)
	directoryRe = regexp.MustCompile(`include_directories\[ *(\d+)\] = "(.*)"`)
	rowRe       = regexp.MustCompile(`0x[0-9a-fA-F]+ +(\d+) +\d+ +(\d+)(?: +\d+){2,3} +is_stmt`)
)

// firstFileIndex returns the index of the first file_names entry. DWARF 5
// numbers files from 0, earlier versions from 1.
func firstFileIndex(version int) int {
	if version < 5 {
		return 1
	}
	return 0
}

// ParseDump parses the text printed by `llvm-dwarfdump --debug-line`.
// Lines of a file appearing in several compilation-unit tables are unioned.
// Malformed tables are skipped.
func ParseDump(text string) *LineTable {
	t := New()
	tables := tableSplit.Split(text, -1)
	if len(tables) < 2 {
		return t
	}

	version := 4
	for _, table := range tables[1:] {
		if m := versionRe.FindStringSubmatch(table); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				version = v
			}
		}
		parseTable(t, table, firstFileIndex(version))
	}
	t.prune()
	return t
}

func parseTable(t *LineTable, table string, base int) {
	dirs := make(map[int]string)
	for _, m := range directoryRe.FindAllStringSubmatch(table, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		dirs[idx] = m[2]
	}

	paths := make(map[int]string)
	for i, m := range fileNameRe.FindAllStringSubmatch(table, -1) {
		name := m[1]
		if dirIdx, err := strconv.Atoi(m[2]); err == nil {
			if dir, ok := dirs[dirIdx]; ok && !filepath.IsAbs(name) {
				name = filepath.Join(dir, name)
			}
		}
		paths[base+i] = name
	}

	for _, m := range rowRe.FindAllStringSubmatch(table, -1) {
		line, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		file, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		if path, ok := paths[file]; ok {
			t.Add(path, line)
		}
	}
}

// ReadDump runs tool (llvm-dwarfdump when empty) on binary and parses its
// line tables.
func ReadDump(ctx context.Context, tool, binary string) (*LineTable, error) {
	if tool == "" {
		tool = DefaultDwarfdump
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, tool, "--debug-line", binary)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s %s: %w: %s", tool, binary, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return ParseDump(stdout.String()), nil
}
