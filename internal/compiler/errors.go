package compiler

import (
	"fmt"

	"github.com/funvibe/lispjit/internal/diagnostics"
)

// ErrorKind classifies compile failures.
type ErrorKind int

const (
	ExpectedOperator ErrorKind = iota
	ArityError
	InvalidDefineTarget
	InvalidParameterList
	UndefinedVariable
	UnknownOperator
	InvalidFunction
)

var kindNames = [...]string{
	ExpectedOperator:     "expected operator",
	ArityError:           "arity error",
	InvalidDefineTarget:  "invalid define target",
	InvalidParameterList: "invalid parameter list",
	UndefinedVariable:    "undefined variable",
	UnknownOperator:      "unknown operator",
	InvalidFunction:      "invalid function",
}

var kindCodes = [...]diagnostics.ErrorCode{
	ExpectedOperator:     diagnostics.ErrC001,
	ArityError:           diagnostics.ErrC002,
	InvalidDefineTarget:  diagnostics.ErrC003,
	InvalidParameterList: diagnostics.ErrC004,
	UndefinedVariable:    diagnostics.ErrC005,
	UnknownOperator:      diagnostics.ErrC006,
	InvalidFunction:      diagnostics.ErrC007,
}

func (k ErrorKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "compile error"
}

// Code returns the diagnostic code reported for the kind.
func (k ErrorKind) Code() diagnostics.ErrorCode {
	if int(k) < len(kindCodes) {
		return kindCodes[k]
	}
	return diagnostics.ErrC001
}

// CompileError is a failure to translate an expression. Name is the symbol
// the error is about, if any.
type CompileError struct {
	Kind ErrorKind
	Name string
	Msg  string
}

func (e *CompileError) Error() string {
	switch {
	case e.Msg != "" && e.Name != "":
		return fmt.Sprintf("%s %s: %s", e.Kind, e.Name, e.Msg)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Name != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Name)
	}
	return e.Kind.String()
}

// Code returns the diagnostic code of the error.
func (e *CompileError) Code() diagnostics.ErrorCode {
	return e.Kind.Code()
}

func errorf(kind ErrorKind, name, format string, args ...interface{}) *CompileError {
	return &CompileError{Kind: kind, Name: name, Msg: fmt.Sprintf(format, args...)}
}
