package reconcile

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/dbgfidelity/internal/astcache"
	"github.com/panbanda/dbgfidelity/internal/testutil"
	"github.com/panbanda/dbgfidelity/pkg/sourcemodel"
)

type countingGenerator struct {
	ast   *sourcemodel.AST
	calls int
}

func (g *countingGenerator) Generate(context.Context, string, string) (*sourcemodel.AST, error) {
	g.calls++
	return g.ast, nil
}

func writeProjectFile(t *testing.T, root, rel, body string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	testutil.WriteFile(t, path, body)
	return path
}

func TestResolve(t *testing.T) {
	proj := t.TempDir()
	unique := writeProjectFile(t, proj, "lib/parse.c", "")
	writeProjectFile(t, proj, "a/dup.c", "")
	writeProjectFile(t, proj, "b/dup.c", "")

	m := NewProjectModels(proj, nil, nil, nil)

	got, err := m.Resolve("parse.c")
	require.NoError(t, err)
	assert.Equal(t, unique, got)

	got, err = m.Resolve("lib/parse.c")
	require.NoError(t, err)
	assert.Equal(t, unique, got)

	got, err = m.Resolve(unique)
	require.NoError(t, err)
	assert.Equal(t, unique, got)

	_, err = m.Resolve("dup.c")
	assert.ErrorIs(t, err, ErrNameCollision)

	_, err = m.Resolve("nothere.c")
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = m.Resolve(filepath.Join(proj, "nothere.c"))
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestModelGeneratesOnceThenCaches(t *testing.T) {
	proj := t.TempDir()
	src := writeProjectFile(t, proj, "sample.c", "int main(int argc, char **argv) { // entry\n  return 0;\n}\n")
	cache, err := astcache.New(filepath.Join(t.TempDir(), "pickles"))
	require.NoError(t, err)
	gen := &countingGenerator{ast: testutil.SampleAST(t)}

	m := NewProjectModels(proj, cache, gen, nil)
	model, err := m.Model(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, src, model.Path)
	assert.Equal(t, "int main(int argc, char **argv) {", model.Text.Line(1))
	_, ok := model.Engine.FunctionAt(14)
	assert.True(t, ok)
	assert.FileExists(t, cache.Path(src))

	fresh := NewProjectModels(proj, cache, gen, nil)
	_, err = fresh.Model(context.Background(), "sample.c")
	require.NoError(t, err)
	assert.Equal(t, 1, gen.calls)
}

func TestModelWithoutGenerator(t *testing.T) {
	proj := t.TempDir()
	src := writeProjectFile(t, proj, "x.c", "int x;\n")
	_, err := NewProjectModels(proj, nil, nil, nil).Model(context.Background(), src)
	assert.Error(t, err)
}
