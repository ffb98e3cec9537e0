// Package vcs identifies the source revision of an analyzed project.
package vcs

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
)

// ErrNotRepository is returned when the project is not under git.
var ErrNotRepository = errors.New("not a git repository")

// Revision describes the commit checked out in a project.
type Revision struct {
	Hash   string
	Branch string // empty for a detached HEAD
	Date   time.Time
	Dirty  bool
}

// Short returns the abbreviated hash, suffixed when the tree is dirty.
func (r Revision) Short() string {
	s := r.Hash
	if len(s) > 12 {
		s = s[:12]
	}
	if r.Dirty {
		s += "-dirty"
	}
	return s
}

// Lookup opens the repository containing path and reads its HEAD.
func Lookup(path string) (Revision, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Revision{}, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	if err != nil {
		return Revision{}, err
	}

	head, err := repo.Head()
	if err != nil {
		return Revision{}, fmt.Errorf("read HEAD: %w", err)
	}
	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return Revision{}, fmt.Errorf("read commit %s: %w", head.Hash(), err)
	}

	rev := Revision{Hash: head.Hash().String(), Date: commit.Committer.When}
	if head.Name().IsBranch() {
		rev.Branch = head.Name().Short()
	}
	dirty, err := isDirty(repo)
	if err != nil {
		return Revision{}, err
	}
	rev.Dirty = dirty
	return rev, nil
}

// isDirty reports staged or modified files. Untracked files are not
// considered dirty.
func isDirty(repo *git.Repository) (bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return false, err
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, s := range status {
		if s.Staging == git.Untracked && s.Worktree == git.Untracked {
			continue
		}
		if s.Staging != git.Unmodified || s.Worktree != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}

// Identify returns the short revision of path, or "" when it cannot be
// determined.
func Identify(path string) string {
	rev, err := Lookup(path)
	if err != nil {
		return ""
	}
	return rev.Short()
}
