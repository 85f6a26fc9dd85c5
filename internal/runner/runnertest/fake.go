// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/vango-dev/distkit/internal/runner"
)

// Response scripts the outcome of a matched command.
type Response struct {
	Stdout   string
	Stderr   string
	ExitCode int

	// Err is returned as-is when set, ahead of ExitCode.
	Err error

	// Do runs before the result is returned, e.g. to write the file a
	// compiler would have produced. A non-nil error is returned from Run.
	Do func(cmd runner.Cmd) error
}

// Fake records every command and answers from scripted responses. Unmatched
// commands succeed with empty output.
type Fake struct {
	mu        sync.Mutex
	calls     []runner.Cmd
	responses map[string]Response
	paths     map[string]string
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{
		responses: make(map[string]Response),
		paths:     make(map[string]string),
	}
}

// On scripts the response for commands whose command line starts with
// prefix. The longest matching prefix wins.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[prefix] = resp
	return f
}

// Install makes LookPath find name.
func (f *Fake) Install(name string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths[name] = "/usr/bin/" + name
	return f
}

// Calls returns the commands run so far, in order.
func (f *Fake) Calls() []runner.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]runner.Cmd, len(f.calls))
	copy(out, f.calls)
	return out
}

// CommandLines returns Calls rendered with runner.Cmd.String.
func (f *Fake) CommandLines() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Run implements runner.Runner.
func (f *Fake) Run(ctx context.Context, cmd runner.Cmd) (*runner.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.calls = append(f.calls, cmd)
	resp, _ := f.match(cmd.String())
	f.mu.Unlock()

	if resp.Do != nil {
		if err := resp.Do(cmd); err != nil {
			return nil, err
		}
	}

	if cmd.Stdout != nil && resp.Stdout != "" {
		io.WriteString(cmd.Stdout, resp.Stdout)
	}
	if cmd.Stderr != nil && resp.Stderr != "" {
		io.WriteString(cmd.Stderr, resp.Stderr)
	}

	res := &runner.Result{
		Stdout:   resp.Stdout,
		Stderr:   resp.Stderr,
		ExitCode: resp.ExitCode,
	}
	if resp.Err != nil {
		return res, resp.Err
	}
	if resp.ExitCode != 0 {
		return res, &runner.ExitError{Cmd: cmd, Code: resp.ExitCode, Stderr: resp.Stderr}
	}
	return res, nil
}

// LookPath implements runner.Runner.
func (f *Fake) LookPath(name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.paths[name]; ok {
		return p, nil
	}
	return "", &exec.Error{Name: name, Err: exec.ErrNotFound}
}

func (f *Fake) match(line string) (Response, bool) {
	best := -1
	var resp Response
	for prefix, r := range f.responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			resp = r
		}
	}
	return resp, best >= 0
}
