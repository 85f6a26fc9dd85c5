package runner

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Cmd describes one external process invocation.
type Cmd struct {
	// Name is the executable name or path.
	Name string

	// Args are the arguments, without the executable name.
	Args []string

	// Dir is the working directory. Empty means the current directory.
	Dir string

	// Env holds KEY=VALUE entries appended to the inherited environment.
	// Later entries win over inherited ones.
	Env []string

	// Stdout and Stderr optionally receive a live copy of the output.
	Stdout io.Writer
	Stderr io.Writer
}

// String returns the command line, for logs and error messages.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a completed process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ExitError reports a process that ran and exited non-zero.
type ExitError struct {
	Cmd    Cmd
	Code   int
	Stderr string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s: exit status %d", e.Cmd.Name, e.Code)
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + lastLine(s)
	}
	return msg
}

// ExitCode returns the child's exit status, unexamined.
func (e *ExitError) ExitCode() int {
	return e.Code
}

// Runner starts external processes.
type Runner interface {
	// Run executes cmd and waits for it. A non-zero exit is returned as
	// *ExitError alongside the populated Result.
	Run(ctx context.Context, cmd Cmd) (*Result, error)

	// LookPath reports where name would be found on PATH.
	LookPath(name string) (string, error)
}

// Exec runs commands with os/exec.
type Exec struct {
	// Environ returns the base environment. Defaults to os.Environ.
	Environ func() []string
}

// NewExec creates an os/exec backed runner.
func NewExec() *Exec {
	return &Exec{Environ: os.Environ}
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, c Cmd) (*Result, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir

	environ := e.Environ
	if environ == nil {
		environ = os.Environ
	}
	cmd.Env = append(environ(), c.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = tee(&stdout, c.Stdout)
	cmd.Stderr = tee(&stderr, c.Stderr)

	err := cmd.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		var exitErr *exec.ExitError
		if stderrors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, &ExitError{Cmd: c, Code: res.ExitCode, Stderr: res.Stderr}
		}
		res.ExitCode = -1
		return res, fmt.Errorf("run %s: %w", c.Name, err)
	}

	return res, nil
}

// LookPath implements Runner.
func (e *Exec) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func tee(buf *bytes.Buffer, w io.Writer) io.Writer {
	if w == nil {
		return buf
	}
	return io.MultiWriter(buf, w)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
