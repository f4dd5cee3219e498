// Package diagnostics defines the error codes shown to the user and the
// error value that carries them through the pipeline.
package diagnostics

import "fmt"

type ErrorCode string

const (
	// Reader
	ErrP001 ErrorCode = "P001" // Malformed or incomplete input

	// Compiler
	ErrC001 ErrorCode = "C001" // Expected operator
	ErrC002 ErrorCode = "C002" // Wrong number of arguments to a form
	ErrC003 ErrorCode = "C003" // Invalid define target
	ErrC004 ErrorCode = "C004" // Invalid parameter list
	ErrC005 ErrorCode = "C005" // Undefined variable
	ErrC006 ErrorCode = "C006" // Unknown operator
	ErrC007 ErrorCode = "C007" // Invalid generated function

	// Runtime
	ErrR001 ErrorCode = "R001"

	// Session
	ErrS001 ErrorCode = "S001" // History can no longer be replayed
	ErrS002 ErrorCode = "S002" // Persistence failure
)

var errorTitles = map[ErrorCode]string{
	ErrP001: "parse error",
	ErrC001: "expected operator",
	ErrC002: "arity error",
	ErrC003: "invalid define target",
	ErrC004: "invalid parameter list",
	ErrC005: "undefined variable",
	ErrC006: "unknown operator",
	ErrC007: "invalid function",
	ErrR001: "runtime error",
	ErrS001: "session error",
	ErrS002: "storage error",
}

// Title returns the short human name of the code.
func (c ErrorCode) Title() string {
	if t, ok := errorTitles[c]; ok {
		return t
	}
	return "error"
}

// DiagnosticError is an error reported for one input line.
type DiagnosticError struct {
	Code    ErrorCode
	Input   string
	Message string
	Cause   error
}

func (e *DiagnosticError) Error() string {
	return fmt.Sprintf("error [%s]: %s", e.Code, e.Message)
}

func (e *DiagnosticError) Unwrap() error {
	return e.Cause
}

// NewError creates a diagnostic for input. Extra args are formatted into msg.
func NewError(code ErrorCode, input string, msg string, args ...interface{}) *DiagnosticError {
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	return &DiagnosticError{Code: code, Input: input, Message: msg}
}

// Wrap creates a diagnostic that keeps err as its cause.
func Wrap(code ErrorCode, input string, err error) *DiagnosticError {
	return &DiagnosticError{Code: code, Input: input, Message: err.Error(), Cause: err}
}
