package errors

import (
	stderrors "errors"
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryEnvironment Category = "environment"
	CategoryNetwork     Category = "network"
	CategoryToolchain   Category = "toolchain"
	CategoryVCS         Category = "vcs"
	CategoryCLI         Category = "cli"
	CategoryConfig      Category = "config"
	CategoryIO          Category = "io"
)

// Process exit statuses reserved by distkit.
const (
	// ExitFailure is the generic failure status.
	ExitFailure = 1

	// ExitUnavailable signals that a required external utility was not found
	// (sysexits.h EX_UNAVAILABLE).
	ExitUnavailable = 69
)

// Error is a structured error with a code, an exit status and a fix suggestion.
type Error struct {
	// Code is a unique error identifier (e.g., "D101").
	Code string

	// Category is the error type (environment, toolchain, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Exit is the process exit status for this error. Zero means "derive it":
	// the wrapped error's status if it carries one, ExitFailure otherwise.
	Exit int

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Wrapped
}

// ExitCode returns the process exit status for the error.
func (e *Error) ExitCode() int {
	if e.Exit != 0 {
		return e.Exit
	}
	var coded interface{ ExitCode() int }
	if e.Wrapped != nil && stderrors.As(e.Wrapped, &coded) {
		if code := coded.ExitCode(); code > 0 {
			return code
		}
	}
	return ExitFailure
}

// WithSuggestion adds a fix suggestion to the error.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *Error) WithDetail(d string) *Error {
	e.Detail = d
	return e
}

// WithExit overrides the exit status.
func (e *Error) WithExit(code int) *Error {
	e.Exit = code
	return e
}

// Wrap wraps another error.
func (e *Error) Wrap(err error) *Error {
	e.Wrapped = err
	return e
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// New creates an Error from a registered error code.
func New(code string) *Error {
	template, ok := registry[code]
	if !ok {
		return &Error{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &Error{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
		Exit:     template.Exit,
	}
}

// FromError wraps a standard error in an Error.
func FromError(err error, code string) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// ExitCode maps any error to the status the process should exit with.
// A nil error is 0.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded interface{ ExitCode() int }
	if stderrors.As(err, &coded) {
		if code := coded.ExitCode(); code > 0 {
			return code
		}
	}
	return ExitFailure
}

// HasCode reports whether err is, or wraps, an Error with the given code.
func HasCode(err error, code string) bool {
	var de *Error
	for err != nil {
		if stderrors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.Wrapped
			continue
		}
		return false
	}
	return false
}
