// Package errors provides structured, actionable error messages for distkit.
//
// Every failure that can end a run is an *Error carrying a registered code, a
// category, and the process exit status the CLI should terminate with. The
// category decides how the failure is reported to calling automation:
//   - environment: a required external tool is missing (exit 69)
//   - network: resolving a symbolic toolchain version failed
//   - toolchain: the compiler or installer exited non-zero (status passed through)
//   - vcs: no version tag could be derived (callers degrade instead of failing)
//   - cli: the command line was not understood (exit 1)
//   - config, io: project configuration or filesystem problems
//
// # Error Codes
//
// Each code (e.g., "D101") maps to a short message, a detailed explanation,
// and an exit status:
//
//	err := errors.New("D101").
//	    WithDetail("looked for sha256sum, shasum").
//	    WithSuggestion("Install GNU coreutils or Perl's shasum")
//
//	fmt.Print(err.Format())
//	// Output:
//	// ERROR D101: No SHA-256 digest utility available
//	//
//	//   looked for sha256sum, shasum
//	//
//	//   Hint: Install GNU coreutils or Perl's shasum
//
//	os.Exit(errors.ExitCode(err)) // 69
package errors
