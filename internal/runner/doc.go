// Package runner is the single seam through which distkit starts external
// processes: the Go toolchain, git, the golang.org/dl installers and the
// digest utilities.
//
// Every command runs to completion before the call returns. Output is always
// captured; callers that want it on the terminal as well pass writers in Cmd,
// and the captured copy is still available on the Result.
//
// # Usage
//
//	r := runner.NewExec()
//	res, err := r.Run(ctx, runner.Cmd{
//	    Name: "go",
//	    Args: []string{"env", "GOVERSION"},
//	})
//	if err != nil {
//	    var exitErr *runner.ExitError
//	    if errors.As(err, &exitErr) {
//	        os.Exit(exitErr.Code)
//	    }
//	}
//	fmt.Println(strings.TrimSpace(res.Stdout))
//
// Tests substitute runnertest.Fake to script results without a toolchain.
package runner
