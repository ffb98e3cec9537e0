// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

// Root returns the module root.
func Root() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..")
}

// SampleASTPath returns the clang JSON dump of the sample program with
// functions add and main.
func SampleASTPath() string {
	return filepath.Join(Root(), "pkg", "sourcemodel", "testdata", "sample.json")
}

// SampleAST parses the sample program.
func SampleAST(t *testing.T) *sourcemodel.AST {
	t.Helper()
	data, err := os.ReadFile(SampleASTPath())
	require.NoError(t, err)
	a, err := sourcemodel.Parse(data)
	require.NoError(t, err)
	return a
}

// TranscriptPath returns a saved debugger transcript by file name.
func TranscriptPath(name string) string {
	return filepath.Join(Root(), "pkg", "trace", "testdata", name)
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}
