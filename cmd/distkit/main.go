package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vango-dev/distkit/internal/build"
	"github.com/vango-dev/distkit/internal/config"
	"github.com/vango-dev/distkit/internal/errors"
	"github.com/vango-dev/distkit/internal/logging"
	"github.com/vango-dev/distkit/internal/publish"
	"github.com/vango-dev/distkit/internal/runner"
	"github.com/vango-dev/distkit/internal/telemetry"
	"github.com/vango-dev/distkit/internal/toolchain"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// MetricsFileName is written inside the build directory by --metrics.
const MetricsFileName = "metrics.prom"

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newApp(stdout, stderr).execute(ctx, args)
}

// app holds what every command shares for one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Injected for tests.
	runner     runner.Runner
	httpClient *http.Client
	s3         publish.PutObjectAPI
	dir        string
	lookupEnv  func(string) (string, bool)

	// Global flags.
	verbose bool
	metrics bool
	logFile string

	cfg       *config.Config
	logger    *logging.Logger
	collector *telemetry.Metrics

	// projectErr is why cfg is nil after setupOptional.
	projectErr error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		runner:    runner.NewExec(),
		lookupEnv: os.LookupEnv,
	}
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	a.finish()

	if err == nil {
		return 0
	}
	errors.Fprint(a.stderr, err)
	if errors.HasCode(err, "D501") || errors.HasCode(err, "D503") {
		cmd := root
		if found, _, findErr := root.Find(args); findErr == nil {
			cmd = found
		}
		fmt.Fprint(a.stderr, cmd.UsageString())
	}
	return errors.ExitCode(err)
}

func (a *app) rootCmd() *cobra.Command {
	var clean bool

	root := &cobra.Command{
		Use:   "distkit [command]",
		Short: "Build and package Go release binaries",
		Long: `distkit drives the Go toolchain to build a command for the host, or
to cross-compile stripped, versioned, checksummed release artifacts.

With no command, distkit builds the entry point into the build directory.

Environment:
  GO           toolchain command, or "latest" (default: go)
  BUILDDIR     build output directory (default: build)
  CGO_ENABLED  passed through to the compiler (default: 0)
  GOOS/GOARCH  dist target (default: the toolchain's host)`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.New("D501").WithDetail(fmt.Sprintf("unknown command %q", args[0]))
			}
			return nil
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runLocal(cmd.Context(), clean)
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.New("D501").Wrap(err)
	})

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&a.metrics, "metrics", false, "Write build metrics to <builddir>/"+MetricsFileName)
	root.PersistentFlags().StringVar(&a.logFile, "log-file", "", `Also write JSON logs to this file ("default" for the XDG state dir)`)
	root.Flags().BoolVar(&clean, "clean", false, "Remove the build directory first")

	root.AddCommand(
		distCmd(a),
		distAllCmd(a),
		checksumCmd(a),
		verifyCmd(a),
		publishCmd(a),
		serveCmd(a),
		watchCmd(a),
		versionCmd(a),
	)
	return root
}

// setup loads configuration and logging before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProject(a.workDir(), a.lookupEnv)
	if err != nil {
		return err
	}
	return a.useConfig(cfg)
}

// setupOptional is setup for commands that also work outside a project.
// Without one, a.cfg stays nil and logging uses its defaults.
func (a *app) setupOptional(cmd *cobra.Command, args []string) error {
	if _, err := config.FindProjectRoot(a.workDir()); err != nil {
		a.projectErr = err
		return a.initLogging("", "")
	}
	return a.setup(cmd, args)
}

func (a *app) useConfig(cfg *config.Config) error {
	a.cfg = cfg
	if err := a.initLogging(cfg.Log.Level, cfg.Log.File); err != nil {
		return err
	}
	if a.metrics {
		a.collector = telemetry.NewMetrics()
	}

	a.logger.Debug("configuration loaded",
		"root", cfg.Root(),
		"config", cfg.Path(),
		"toolchain", cfg.Toolchain,
		"build_dir", cfg.BuildDir,
	)
	return nil
}

// initLogging opens the logger. --log-file overrides the configured file.
func (a *app) initLogging(level, file string) error {
	if a.logFile != "" {
		file = a.logFile
	}
	logger, err := logging.New(logging.Options{
		Level:   level,
		Verbose: a.verbose,
		File:    file,
		Stderr:  a.stderr,
	})
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// workDir returns the directory relative paths are resolved against.
func (a *app) workDir() string {
	if a.dir != "" {
		return a.dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// finish writes metrics and releases the log file.
func (a *app) finish() {
	if a.collector != nil && a.cfg != nil {
		path := filepath.Join(a.cfg.BuildPath(), MetricsFileName)
		if err := os.MkdirAll(a.cfg.BuildPath(), 0755); err == nil {
			if err := a.collector.WriteTextfile(path); err != nil {
				a.warn("Could not write metrics: %v", err)
			}
		}
	}
	if a.logger != nil {
		a.logger.Close()
	}
}

// builder resolves the toolchain and creates a builder for cfg.
func (a *app) builder(ctx context.Context, cfg *config.Config) (*build.Builder, error) {
	resolver := toolchain.NewResolver(a.runner)
	resolver.HTTPClient = a.httpClient
	resolver.Output = a.stderr
	resolver.Logger = a.logger.Logger

	tc, err := resolver.Resolve(ctx, cfg.Toolchain)
	if err != nil {
		return nil, err
	}
	if tc.Installed {
		a.success("Installed %s", tc.Path)
	}

	return build.New(cfg, a.runner, tc, build.Options{
		Stdout:    a.stdout,
		Output:    a.stdout,
		Stderr:    a.stderr,
		Logger:    a.logger.Logger,
		Metrics:   a.collector,
		OnProgress: func(step string) {
			a.info("%s", step)
		},
	}), nil
}

func (a *app) runLocal(ctx context.Context, clean bool) error {
	b, err := a.builder(ctx, a.cfg)
	if err != nil {
		return err
	}
	if clean {
		a.info("Cleaning build directory...")
		if err := b.Clean(); err != nil {
			return errors.New("D701").Wrap(err)
		}
	}
	if err := b.Local(ctx); err != nil {
		return err
	}
	a.success("Built %s into %s", a.cfg.Main, a.cfg.BuildDir)
	return nil
}

// success prints a success message.
func (a *app) success(format string, args ...any) {
	fmt.Fprintf(a.stderr, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func (a *app) info(format string, args ...any) {
	fmt.Fprintf(a.stderr, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func (a *app) warn(format string, args ...any) {
	fmt.Fprintf(a.stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
