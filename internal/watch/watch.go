// Package watch rebuilds a project when its Go sources change.
//
// Builds never overlap. A change that arrives while a build is running
// queues exactly one follow-up build, however many files changed.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vango-dev/distkit/internal/errors"
)

// DefaultIgnore contains default patterns to ignore.
var DefaultIgnore = []string{
	"*_test.go",
	".git",
	"vendor",
	"node_modules",
	"testdata",
	"tmp",
	"*.tmp",
	"*.swp",
	"*~",
}

// BuildFunc runs one build. changed lists the files that triggered it and
// is empty for the initial build.
type BuildFunc func(ctx context.Context, changed []string) error

// Config configures the watcher.
type Config struct {
	// Root is the directory watched recursively.
	Root string

	// Ignore patterns to skip (globs or path segments).
	Ignore []string

	// Debounce is the quiet period before a build starts.
	Debounce time.Duration

	// Initial runs a build as soon as Run starts.
	Initial bool

	// Logger is used for watch events. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Watcher monitors a source tree for changes.
type Watcher struct {
	config  Config
	fs      *fsnotify.Watcher
	logger  *slog.Logger
	trigger chan struct{}

	mu      sync.Mutex
	pending map[string]struct{}
}

// New creates a watcher and registers every non-ignored directory under
// cfg.Root.
func New(cfg Config) (*Watcher, error) {
	if cfg.Debounce == 0 {
		cfg.Debounce = 100 * time.Millisecond
	}
	if len(cfg.Ignore) == 0 {
		cfg.Ignore = DefaultIgnore
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.New("D708").Wrap(err)
	}

	w := &Watcher{
		config:  cfg,
		fs:      fw,
		logger:  cfg.Logger,
		trigger: make(chan struct{}, 1),
		pending: make(map[string]struct{}),
	}
	if err := w.addTree(cfg.Root); err != nil {
		fw.Close()
		return nil, errors.New("D708").Wrap(err)
	}
	return w, nil
}

// Run watches until ctx is cancelled, calling build after each debounced
// batch of changes. Build failures are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, build BuildFunc) error {
	defer w.fs.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.buildLoop(ctx, build)
	}()

	if w.config.Initial {
		w.kick()
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			<-done
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				<-done
				return nil
			}
			if !w.handle(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.config.Debounce)
			} else {
				timer.Reset(w.config.Debounce)
			}
			fire = timer.C

		case err, ok := <-w.fs.Errors:
			if !ok {
				<-done
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-fire:
			fire = nil
			w.kick()
		}
	}
}

func (w *Watcher) buildLoop(ctx context.Context, build BuildFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.trigger:
			changed := w.takePending()
			if err := build(ctx, changed); err != nil && ctx.Err() == nil {
				w.logger.Warn("rebuild failed", "error", err)
			}
		}
	}
}

// kick queues a build. At most one build waits behind the running one.
func (w *Watcher) kick() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// handle records a relevant change and reports whether it should trigger a
// build.
func (w *Watcher) handle(event fsnotify.Event) bool {
	if w.shouldIgnore(event.Name) {
		return false
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.Warn("watch new directory", "path", event.Name, "error", err)
			}
			return false
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	if !IsSource(event.Name) {
		return false
	}

	w.logger.Debug("source changed", "path", event.Name, "op", event.Op.String())
	w.mu.Lock()
	w.pending[event.Name] = struct{}{}
	w.mu.Unlock()
	return true
}

func (w *Watcher) takePending() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	clear(w.pending)
	slices.Sort(changed)
	return changed
}

// addTree watches dir and every non-ignored directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && w.shouldIgnore(p) {
			return filepath.SkipDir
		}
		return w.fs.Add(p)
	})
}

// IsSource reports whether a change to path affects the build.
func IsSource(p string) bool {
	switch filepath.Base(p) {
	case "go.mod", "go.sum", "go.work":
		return true
	}
	return strings.EqualFold(filepath.Ext(p), ".go")
}

// shouldIgnore checks if a path should be ignored. Patterns match against the
// path relative to the watched root.
func (w *Watcher) shouldIgnore(fullPath string) bool {
	rel := fullPath
	if r, err := filepath.Rel(w.config.Root, fullPath); err == nil && !strings.HasPrefix(r, "..") {
		rel = r
	}
	name := filepath.Base(fullPath)
	normalized := filepath.ToSlash(rel)

	for _, pattern := range w.config.Ignore {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		if name == pattern {
			return true
		}

		hasPathSep := strings.ContainsAny(pattern, `/\`)
		if strings.ContainsAny(pattern, "*?[") {
			if hasPathSep {
				if matched, _ := path.Match(filepath.ToSlash(pattern), normalized); matched {
					return true
				}
			} else if matched, _ := filepath.Match(pattern, name); matched {
				return true
			}
			continue
		}

		if hasPathSep {
			if pathMatchesSegments(normalized, filepath.ToSlash(pattern)) {
				return true
			}
			continue
		}
		if slices.Contains(splitPathSegments(normalized), pattern) {
			return true
		}
	}
	return false
}

func pathMatchesSegments(p, pattern string) bool {
	pathParts := splitPathSegments(p)
	patternParts := splitPathSegments(pattern)
	if len(patternParts) == 0 || len(patternParts) > len(pathParts) {
		return false
	}
	for i := 0; i <= len(pathParts)-len(patternParts); i++ {
		if slices.Equal(pathParts[i:i+len(patternParts)], patternParts) {
			return true
		}
	}
	return false
}

func splitPathSegments(p string) []string {
	if p == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(p, "/") {
		if part != "" && part != "." {
			out = append(out, part)
		}
	}
	return out
}
