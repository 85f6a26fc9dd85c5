package vcs

import (
	"context"
	"fmt"
	"path"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/storer"
)

// GoGit describes without a git binary, reading the repository with go-git.
// Distances follow first-seen history order by committer time, which matches
// git describe on linear history.
type GoGit struct{}

// Describe implements Describer.
func (GoGit) Describe(ctx context.Context, dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", noVersion(err)
	}

	head, err := repo.Head()
	if err != nil {
		return "", noVersion(err)
	}

	tags, err := versionTags(repo)
	if err != nil {
		return "", noVersion(err)
	}
	if len(tags) == 0 {
		return "", noVersion(nil)
	}

	commits, err := repo.Log(&git.LogOptions{From: head.Hash(), Order: git.LogOrderCommitterTime})
	if err != nil {
		return "", noVersion(err)
	}
	defer commits.Close()

	tag := ""
	distance := 0
	err = commits.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if name, ok := tags[c.Hash]; ok {
			tag = name
			return storer.ErrStop
		}
		distance++
		return nil
	})
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		return "", noVersion(err)
	}
	if tag == "" {
		return "", noVersion(nil)
	}

	version := tag
	if distance > 0 {
		version = fmt.Sprintf("%s-%d-g%s", tag, distance, head.Hash().String()[:7])
	}

	dirty, err := isDirty(repo)
	if err != nil {
		return "", noVersion(err)
	}
	if dirty {
		version += "-dirty"
	}
	return version, nil
}

// versionTags maps tagged commit hashes to tag names. Annotated tags are
// peeled to their commit; when a commit has several tags the greatest name wins.
func versionTags(repo *git.Repository) (map[plumbing.Hash]string, error) {
	iter, err := repo.Tags()
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := make(map[plumbing.Hash]string)
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name().Short()
		if ok, _ := path.Match(TagPattern, name); !ok {
			return nil
		}

		hash := ref.Hash()
		if annotated, err := repo.TagObject(hash); err == nil {
			commit, err := annotated.Commit()
			if err != nil {
				return nil
			}
			hash = commit.Hash
		}

		if prev, ok := out[hash]; !ok || name > prev {
			out[hash] = name
		}
		return nil
	})
	return out, err
}

// isDirty reports tracked changes only. Untracked files do not make the tree
// dirty, as with git describe --dirty.
func isDirty(repo *git.Repository) (bool, error) {
	wt, err := repo.Worktree()
	if err != nil {
		// Bare repositories have no working tree to be dirty.
		return false, nil
	}
	status, err := wt.Status()
	if err != nil {
		return false, err
	}
	for _, fs := range status {
		if fs.Worktree == git.Untracked && fs.Staging == git.Untracked {
			continue
		}
		if fs.Worktree != git.Unmodified || fs.Staging != git.Unmodified {
			return true, nil
		}
	}
	return false, nil
}
