package vcs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initRepo(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main(void) { return 0; }\n"), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add("main.c")
	require.NoError(t, err)
	hash, err := wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "dev", Email: "dev@example.com", When: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	return dir, hash.String()
}

func TestLookup(t *testing.T) {
	dir, hash := initRepo(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "src"), 0o755))

	rev, err := Lookup(filepath.Join(dir, "src"))
	require.NoError(t, err)
	assert.Equal(t, hash, rev.Hash)
	assert.Equal(t, "master", rev.Branch)
	assert.False(t, rev.Dirty)
	assert.Equal(t, hash[:12], rev.Short())
	assert.Equal(t, rev.Short(), Identify(dir))
}

func TestLookupDirty(t *testing.T) {
	dir, hash := initRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "untracked.c"), []byte("x"), 0o644))

	rev, err := Lookup(dir)
	require.NoError(t, err)
	assert.False(t, rev.Dirty, "untracked files are not dirty")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.c"), []byte("int main(void) { return 1; }\n"), 0o644))
	rev, err = Lookup(dir)
	require.NoError(t, err)
	assert.True(t, rev.Dirty)
	assert.Equal(t, hash[:12]+"-dirty", rev.Short())
}

func TestLookupNotRepository(t *testing.T) {
	_, err := Lookup(t.TempDir())
	assert.ErrorIs(t, err, ErrNotRepository)
	assert.Equal(t, "", Identify(t.TempDir()))
}
