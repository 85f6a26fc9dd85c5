package toolchain

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/runner"
)

const (
	// Latest is the symbolic toolchain meaning "the current Go release".
	Latest = "latest"

	// Default is the go command found on PATH.
	Default = "go"

	// VersionURL returns the current release as its first line, e.g. "go1.25.3".
	VersionURL = "https://go.dev/VERSION?m=text"

	// DownloaderModule is the golang.org/dl module path prefix.
	DownloaderModule = "golang.org/dl/"
)

var versionPattern = regexp.MustCompile(`^go[0-9]+(\.[0-9]+)*((rc|beta)[0-9]+)?$`)

// Toolchain is a resolved go executable.
type Toolchain struct {
	// Path is the command name or path used for every build.
	Path string

	// Version is the go version this toolchain was resolved for. Empty when
	// the default go was requested and not queried.
	Version string

	// Installed reports whether this run provisioned the toolchain.
	Installed bool
}

// Resolver turns a requested toolchain into a concrete executable.
type Resolver struct {
	// Runner starts go and the versioned wrappers.
	Runner runner.Runner

	// HTTPClient is used for the "latest" lookup. If nil, a default client is used.
	HTTPClient *http.Client

	// VersionURL overrides the release endpoint. If empty, VersionURL is used.
	VersionURL string

	// Output receives installer output. May be nil.
	Output io.Writer

	// Logger is used for progress. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// NewResolver creates a Resolver with default settings.
func NewResolver(r runner.Runner) *Resolver {
	return &Resolver{
		Runner:     r,
		VersionURL: VersionURL,
	}
}

// Resolve returns the toolchain to use for requested.
func (r *Resolver) Resolve(ctx context.Context, requested string) (*Toolchain, error) {
	if requested == "" || requested == Default {
		return &Toolchain{Path: Default}, nil
	}

	version := requested
	if version == Latest {
		v, err := r.LatestVersion(ctx)
		if err != nil {
			return nil, err
		}
		version = v
		r.logger().Info("resolved latest go release", "version", version)
	}

	if !versionPattern.MatchString(version) {
		// Not a golang.org/dl version: an explicit command or path, used as-is.
		return &Toolchain{Path: version}, nil
	}

	installed, err := r.InstalledVersion(ctx)
	if err != nil {
		return nil, err
	}
	if installed == version {
		return &Toolchain{Path: Default, Version: version}, nil
	}

	if _, err := r.Runner.LookPath(version); err == nil {
		return &Toolchain{Path: version, Version: version}, nil
	}

	if err := r.install(ctx, version); err != nil {
		return nil, err
	}
	return &Toolchain{Path: version, Version: version, Installed: true}, nil
}

// LatestVersion asks the release endpoint for the current Go version.
func (r *Resolver) LatestVersion(ctx context.Context) (string, error) {
	url := r.VersionURL
	if url == "" {
		url = VersionURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.New("D201").Wrap(err)
	}

	client := r.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", errors.New("D201").
			WithSuggestion("Check network access or set GO to an explicit version").
			Wrap(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.New("D201").
			WithDetail(fmt.Sprintf("%s returned status %d", url, resp.StatusCode))
	}

	scanner := bufio.NewScanner(io.LimitReader(resp.Body, 4096))
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", errors.New("D201").Wrap(err)
		}
		return "", errors.New("D201").WithDetail(url + " returned an empty body")
	}

	version := strings.TrimSpace(scanner.Text())
	if !versionPattern.MatchString(version) {
		return "", errors.New("D201").
			WithDetail(fmt.Sprintf("%s returned %q, not a go version", url, version))
	}
	return version, nil
}

// InstalledVersion returns the version of the default go on PATH.
func (r *Resolver) InstalledVersion(ctx context.Context) (string, error) {
	res, err := r.Runner.Run(ctx, runner.Cmd{
		Name: Default,
		Args: []string{"env", "GOVERSION"},
	})
	if err != nil {
		return "", errors.New("D102").Wrap(err)
	}
	return strings.TrimSpace(res.Stdout), nil
}

// install provisions version with golang.org/dl.
func (r *Resolver) install(ctx context.Context, version string) error {
	r.logger().Info("installing go toolchain", "version", version)

	steps := []runner.Cmd{
		{Name: Default, Args: []string{"install", DownloaderModule + version + "@latest"}},
		{Name: version, Args: []string{"download"}},
	}
	for _, step := range steps {
		step.Stdout = r.Output
		step.Stderr = r.Output
		if _, err := r.Runner.Run(ctx, step); err != nil {
			return errors.New("D302").
				WithDetail(step.String() + " failed").
				Wrap(err)
		}
	}
	return nil
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
