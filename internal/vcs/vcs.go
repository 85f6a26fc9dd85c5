// Package vcs derives release version tags from source control.
//
// A version is the nearest v-prefixed tag as git describe prints it, for
// example "v1.4.0", "v1.4.0-3-g1a2b3c4" or "v1.4.0-dirty". When no tag can be
// found the describers return ErrNoVersion; release builds carry on without
// embedding a version.
package vcs

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/runner"
)

// TagPattern is the glob tags must match to count as versions.
const TagPattern = "v[0-9]*"

// ErrNoVersion reports that no version tag could be derived.
var ErrNoVersion = errors.New("D401")

// Describer derives a version string for the tree rooted at dir.
type Describer interface {
	Describe(ctx context.Context, dir string) (string, error)
}

// GitCLI describes with the git command.
type GitCLI struct {
	Runner runner.Runner
}

// Describe implements Describer.
func (g GitCLI) Describe(ctx context.Context, dir string) (string, error) {
	res, err := g.Runner.Run(ctx, runner.Cmd{
		Name: "git",
		Args: []string{"describe", "--tags", "--match", TagPattern, "--dirty"},
		Dir:  dir,
	})
	if err != nil {
		return "", noVersion(err)
	}
	version := strings.TrimSpace(res.Stdout)
	if version == "" {
		return "", noVersion(nil)
	}
	return version, nil
}

// New returns the describer selected by kind: "go-git" or "git".
func New(kind string, r runner.Runner) Describer {
	if kind == "go-git" {
		return GoGit{}
	}
	return GitCLI{Runner: r}
}

// IsNoVersion reports whether err means no version tag was available.
func IsNoVersion(err error) bool {
	return stderrors.Is(err, ErrNoVersion)
}

func noVersion(cause error) error {
	e := errors.New("D401")
	if cause != nil {
		e = e.Wrap(cause)
	}
	return e
}
