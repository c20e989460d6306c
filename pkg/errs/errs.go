// Package errs provides structured error types for bpcompile, covering
// failures outside the diagnostics pipeline (I/O, configuration,
// malformed blueprints encountered before a diagnostic can be pinned to
// a source span).
package errs

import "fmt"

// Code identifies a specific error condition.
type Code string

const (
	CodeBlueprint          Code = "BLUEPRINT_ERROR"
	CodePathResolution     Code = "PATH_RESOLUTION_ERROR"
	CodeCallableResolution Code = "CALLABLE_RESOLUTION_ERROR"
	CodeConstructible      Code = "CONSTRUCTIBLE_ERROR"
	CodeTraitBound         Code = "TRAIT_BOUND_ERROR"
	CodeConfig             Code = "CONFIG_ERROR"
	CodeIO                 Code = "IO_ERROR"
	CodeCrateDoc           Code = "CRATE_DOC_ERROR"
)

// Error is the base error type for bpcompile.
type Error struct {
	Code    Code
	Message string
	Cause   error
	Details map[string]interface{}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: make(map[string]interface{})}
}

// Wrap creates a new error wrapping an existing error.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause, Details: make(map[string]interface{})}
}

// WithDetail adds a single detail to an error.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}

// WithDetails merges details into an error.
func (e *Error) WithDetails(details map[string]interface{}) *Error {
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// Is reports whether err is an *Error carrying the given code.
func Is(err error, code Code) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}
