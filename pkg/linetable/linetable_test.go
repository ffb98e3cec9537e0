package linetable

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dumpV5 = `
sample:	file format elf64-x86-64

.debug_line contents:
debug_line[0x00000000]
Line table prologue:
    total_length: 0x00000080
          format: DWARF32
         version: 5
include_directories[  0] = "/src/proj"
include_directories[  1] = "/usr/include"
file_names[  0]:
           name: "main.c"
      dir_index: 0
   md5_checksum: 0123456789abcdef0123456789abcdef
file_names[  1]:
           name: "stdio.h"
      dir_index: 1
   md5_checksum: 0123456789abcdef0123456789abcdef
file_names[  2]:
           name: "<built-in>"
      dir_index: 0

Address            Line   Column File   ISA Discriminator OpIndex Flags
------------------ ------ ------ ------ --- ------------- ------- -------------
0x0000000000401120      3      0      0   0             0       0  is_stmt
0x0000000000401128      4      5      0   0             0       0  is_stmt prologue_end
0x0000000000401130      5      9      0   0             0       0
0x0000000000401138      7      3      0   0             0       0  is_stmt
0x0000000000401139      1      3      2   0             0       0  is_stmt
0x0000000000401140      9      1      0   0             0       0  end_sequence
`

const dumpV4 = `
debug_line[0x00000090]
Line table prologue:
    total_length: 0x00000050
         version: 4
include_directories[  1] = "/src/proj/lib"
file_names[  1]:
           name: "util.c"
      dir_index: 1
       mod_time: 0x00000000
          length: 0x00000000
file_names[  2]:
           name: "/src/proj/main.c"
      dir_index: 0
       mod_time: 0x00000000
          length: 0x00000000

Address            Line   Column File   ISA Discriminator Flags
------------------ ------ ------ ------ --- ------------- -------------
0x0000000000401200     10      0      1   0             0  is_stmt
0x0000000000401208     11      2      1   0             0  is_stmt
0x0000000000401210     12      2      2   0             0  is_stmt
0x0000000000401218     13      2      2   0             0
0x0000000000401220      4      2      2   0             0  is_stmt
`

func TestParseDumpV5(t *testing.T) {
	table := ParseDump(dumpV5)

	assert.Equal(t, []string{"/src/proj/main.c"}, table.Files())
	assert.Equal(t, []int{3, 4, 7}, table.Lines("/src/proj/main.c"))
	assert.True(t, table.Has("/src/proj/main.c", 4))
	assert.False(t, table.Has("/src/proj/main.c", 5), "rows without is_stmt are ignored")
	assert.Nil(t, table.Lines("/usr/include/stdio.h"), "files without rows are dropped")
	assert.Nil(t, table.Lines("<built-in>"))
}

func TestParseDumpUnionsTables(t *testing.T) {
	table := ParseDump(dumpV5 + dumpV4)

	assert.Equal(t, []string{"/src/proj/lib/util.c", "/src/proj/main.c"}, table.Files())
	assert.Equal(t, []int{10, 11}, table.Lines("/src/proj/lib/util.c"))
	assert.Equal(t, []int{3, 4, 7, 12}, table.Lines("/src/proj/main.c"))
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, uint64(6), table.Count())
}

func TestParseDumpEmpty(t *testing.T) {
	assert.Zero(t, ParseDump("").Len())
	assert.Zero(t, ParseDump("garbage\nno tables here").Len())
}

// The same rows with a reordered directory table resolve to the same files.
func TestParseDumpDirectoryOrder(t *testing.T) {
	const first = `debug_line[0x00000000]
         version: 5
include_directories[  0] = "/src/proj"
include_directories[  1] = "/src/proj/include"
file_names[  0]:
           name: "main.c"
      dir_index: 0
file_names[  1]:
           name: "list.h"
      dir_index: 1
0x0000000000401120      3      0      0   0             0       0  is_stmt
0x0000000000401128      8      0      1   0             0       0  is_stmt
`
	const second = `debug_line[0x00000000]
         version: 5
include_directories[  1] = "/src/proj"
include_directories[  0] = "/src/proj/include"
file_names[  0]:
           name: "main.c"
      dir_index: 1
file_names[  1]:
           name: "list.h"
      dir_index: 0
0x0000000000401120      3      0      0   0             0       0  is_stmt
0x0000000000401128      8      0      1   0             0       0  is_stmt
`
	a := ParseDump(first)
	b := ParseDump(second)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.Equal(t, a.Map(), b.Map())
	assert.Equal(t, []int{8}, a.Lines("/src/proj/include/list.h"))
}

func TestFingerprintDiffers(t *testing.T) {
	a := New()
	a.Add("/a.c", 1)
	b := New()
	b.Add("/a.c", 2)
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.False(t, a.Equal(b))
}

func TestAddIgnoresInvalidLines(t *testing.T) {
	table := New()
	table.Add("/a.c", 0)
	table.Add("/a.c", -3)
	table.prune()
	assert.Zero(t, table.Len())
}

func TestMarshalJSON(t *testing.T) {
	table := ParseDump(dumpV5)
	data, err := json.Marshal(table)
	require.NoError(t, err)
	assert.JSONEq(t, `{"/src/proj/main.c":[3,4,7]}`, string(data))
}

func TestReadUnknownReader(t *testing.T) {
	_, err := Read(context.Background(), Reader("bogus"), "", "bin")
	assert.Error(t, err)
}

func TestReadELFNotELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notelf")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

	_, err := ReadELF(path)
	assert.Error(t, err)

	_, err = TextHash(path)
	assert.Error(t, err)
}

func TestTextHashSelf(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)

	sum, err := TextHash(exe)
	if err != nil {
		t.Skipf("test binary is not ELF: %v", err)
	}
	again, err := TextHash(exe)
	require.NoError(t, err)
	assert.Len(t, sum, 64)
	assert.Equal(t, sum, again)
}
