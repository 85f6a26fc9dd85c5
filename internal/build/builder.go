package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/distkit/internal/checksum"
	"github.com/vango-dev/distkit/internal/config"
	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/platform"
	"github.com/vango-dev/distkit/internal/runner"
	"github.com/vango-dev/distkit/internal/telemetry"
	"github.com/vango-dev/distkit/internal/toolchain"
	"github.com/vango-dev/distkit/internal/vcs"
)

// StripFlags remove the symbol table and DWARF data.
const StripFlags = "-s -w"

// Artifact is one compiled binary.
type Artifact struct {
	// Path is the absolute output path.
	Path string

	// Name is the file name inside the build directory.
	Name string

	// Platform is the target the binary was built for.
	Platform platform.Platform

	// Version is the embedded version tag, or "" when none was available.
	Version string

	// Duration is how long the compile took.
	Duration time.Duration
}

// Release is the result of a dist-all build.
type Release struct {
	// Artifacts are in matrix order.
	Artifacts []Artifact

	// Manifest is the path of the artifacts manifest.
	Manifest string

	// Checksums is the path of the SHA256 file.
	Checksums string

	// Duration is how long the whole release took.
	Duration time.Duration
}

// Options configures the builder.
type Options struct {
	// Stdout receives each dist output path, one per line, for capture by
	// callers. May be nil.
	Stdout io.Writer

	// Output receives the standard output of the compiler and the digest
	// utility. May be nil.
	Output io.Writer

	// Stderr receives compiler diagnostics. May be nil.
	Stderr io.Writer

	// Logger is used for progress. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics records durations and artifact sizes. May be nil.
	Metrics *telemetry.Metrics

	// Describer derives version tags. Defaults to the one selected by the
	// config's VCS setting.
	Describer vcs.Describer

	// OnProgress is called with progress updates.
	OnProgress func(step string)
}

// Builder runs builds for one configuration and toolchain.
type Builder struct {
	config    *config.Config
	runner    runner.Runner
	toolchain *toolchain.Toolchain
	options   Options
}

// New creates a new builder.
func New(cfg *config.Config, r runner.Runner, tc *toolchain.Toolchain, options Options) *Builder {
	if tc == nil {
		tc = &toolchain.Toolchain{Path: toolchain.Default}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.Describer == nil {
		options.Describer = vcs.New(cfg.VCS, r)
	}
	return &Builder{
		config:    cfg,
		runner:    r,
		toolchain: tc,
		options:   options,
	}
}

// Config returns the builder's configuration.
func (b *Builder) Config() *config.Config {
	return b.config
}

// Local compiles the entry point for the host into the build directory.
func (b *Builder) Local(ctx context.Context) (err error) {
	start := time.Now()
	ctx, end := telemetry.StartSpan(ctx, "build.local", attribute.String("main", b.config.Main))
	defer func() {
		end(err)
		b.options.Metrics.ObserveBuild("local", "host", time.Since(start), err)
	}()

	if err := b.ensureBuildDir(); err != nil {
		return err
	}

	b.progress("Compiling " + b.config.Main + "...")
	_, err = b.runner.Run(ctx, runner.Cmd{
		Name:   b.toolchain.Path,
		Args:   []string{"build", "-o", b.config.BuildPath() + string(filepath.Separator), b.config.Main},
		Dir:    b.config.Root(),
		Env:    []string{b.config.CGOEnv()},
		Stdout: b.options.Output,
		Stderr: b.options.Stderr,
	})
	if err != nil {
		return compileError(err)
	}
	return nil
}

// Dist builds one release artifact for the configured target, defaulting to
// the toolchain's host platform, and prints its path to Options.Stdout.
func (b *Builder) Dist(ctx context.Context) (*Artifact, error) {
	p, err := b.Target(ctx)
	if err != nil {
		return nil, err
	}
	return b.DistFor(ctx, p)
}

// DistFor builds one release artifact for p.
func (b *Builder) DistFor(ctx context.Context, p platform.Platform) (art *Artifact, err error) {
	start := time.Now()
	ctx, end := telemetry.StartSpan(ctx, "build.dist", attribute.String("platform", p.String()))
	defer func() {
		end(err)
		b.options.Metrics.ObserveBuild("dist", p.String(), time.Since(start), err)
	}()

	version := b.describe(ctx)
	name := platform.ArtifactName(b.config.Binary, version, p)
	output := filepath.Join(b.config.BuildPath(), name)

	if err := b.ensureBuildDir(); err != nil {
		return nil, err
	}

	b.progress(fmt.Sprintf("Building %s...", p))
	b.options.Logger.Debug("dist build", "platform", p.String(), "version", version, "output", output)

	_, err = b.runner.Run(ctx, runner.Cmd{
		Name: b.toolchain.Path,
		Args: BuildArgs(LDFlags(b.config.VersionVar, version), output, b.config.Main),
		Dir:  b.config.Root(),
		Env: []string{
			"GOOS=" + p.OS,
			"GOARCH=" + p.Arch,
			b.config.CGOEnv(),
		},
		Stdout: b.options.Output,
		Stderr: b.options.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("dist %s: %w", p, compileError(err))
	}

	if b.options.Stdout != nil {
		fmt.Fprintln(b.options.Stdout, output)
	}

	art = &Artifact{
		Path:     output,
		Name:     name,
		Platform: p,
		Version:  version,
		Duration: time.Since(start),
	}
	if info, statErr := os.Stat(output); statErr == nil {
		b.options.Metrics.ObserveArtifact(name, p.String(), info.Size())
	}
	return art, nil
}

// DistAll builds every platform in the release matrix, one after another,
// writes the artifacts manifest and generates the SHA256 file.
func (b *Builder) DistAll(ctx context.Context) (rel *Release, err error) {
	start := time.Now()
	ctx, end := telemetry.StartSpan(ctx, "build.dist_all")
	defer func() {
		end(err)
		b.options.Metrics.ObserveBuild("dist-all", "all", time.Since(start), err)
	}()

	rel = &Release{Manifest: b.config.ManifestPath()}
	names := make([]string, 0, len(platform.All()))
	for _, p := range platform.All() {
		art, err := b.forPlatform(p).DistFor(ctx, p)
		if err != nil {
			return nil, err
		}
		rel.Artifacts = append(rel.Artifacts, *art)
		names = append(names, filepath.Base(art.Path))
	}

	if err := checksum.WriteManifest(rel.Manifest, names); err != nil {
		return nil, err
	}

	rel.Checksums, err = b.Checksum(ctx, rel.Manifest)
	if err != nil {
		return nil, err
	}

	rel.Duration = time.Since(start)
	return rel, nil
}

// Checksum generates the SHA256 file for the manifest at manifestPath.
func (b *Builder) Checksum(ctx context.Context, manifestPath string) (path string, err error) {
	ctx, end := telemetry.StartSpan(ctx, "build.checksum")
	defer func() { end(err) }()

	b.progress("Generating checksums...")
	gen := &checksum.Generator{
		Runner: b.runner,
		Output: b.options.Output,
		Logger: b.options.Logger,
	}
	return gen.Generate(ctx, manifestPath)
}

// Target returns the configured dist platform, filling unset halves from the
// toolchain's host values.
func (b *Builder) Target(ctx context.Context) (platform.Platform, error) {
	p := platform.Platform{OS: b.config.GOOS, Arch: b.config.GOARCH}
	if p.OS != "" && p.Arch != "" {
		return p, nil
	}

	res, err := b.runner.Run(ctx, runner.Cmd{
		Name: b.toolchain.Path,
		Args: []string{"env", "GOOS", "GOARCH"},
		Dir:  b.config.Root(),
	})
	if err != nil {
		return platform.Platform{}, errors.New("D303").Wrap(err)
	}

	fields := strings.Fields(res.Stdout)
	if len(fields) != 2 {
		return platform.Platform{}, errors.New("D303").
			WithDetail(fmt.Sprintf("go env GOOS GOARCH printed %q", res.Stdout))
	}
	if p.OS == "" {
		p.OS = fields[0]
	}
	if p.Arch == "" {
		p.Arch = fields[1]
	}
	return p, nil
}

// Clean removes the build output directory.
func (b *Builder) Clean() error {
	return os.RemoveAll(b.config.BuildPath())
}

// LDFlags returns the linker flags for a dist build. An empty version leaves
// out the -X flag.
func LDFlags(versionVar, version string) string {
	if version == "" {
		return StripFlags
	}
	return StripFlags + " -X " + versionVar + "=" + version
}

// BuildArgs returns the go build arguments for a dist build.
func BuildArgs(ldflags, output, mainPkg string) []string {
	return []string{
		"build",
		"-trimpath",
		"-buildvcs=false",
		"-ldflags", ldflags,
		"-o", output,
		mainPkg,
	}
}

// describe returns the version tag, or "" when source control has none.
func (b *Builder) describe(ctx context.Context) string {
	version, err := b.options.Describer.Describe(ctx, b.config.Root())
	if err != nil {
		b.options.Logger.Warn("no version tag, building without one", "error", err)
		return ""
	}
	return version
}

// forPlatform returns a builder whose config targets p.
func (b *Builder) forPlatform(p platform.Platform) *Builder {
	cp := *b
	cp.config = b.config.WithPlatform(p)
	return &cp
}

func (b *Builder) ensureBuildDir() error {
	if err := os.MkdirAll(b.config.BuildPath(), 0755); err != nil {
		return errors.New("D701").Wrap(err)
	}
	return nil
}

// progress reports build progress.
func (b *Builder) progress(step string) {
	if b.options.OnProgress != nil {
		b.options.OnProgress(step)
	}
}

// compileError wraps a toolchain failure, keeping the child's exit status.
func compileError(err error) error {
	e := errors.New("D301").Wrap(err)
	var exitErr *runner.ExitError
	if stderrors.As(err, &exitErr) && exitErr.Stderr != "" {
		e = e.WithDetail(strings.TrimSpace(exitErr.Stderr))
	}
	return e
}
