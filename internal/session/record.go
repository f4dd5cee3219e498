package session

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/funvibe/lispjit/internal/ast"
)

// Record is an accepted definition kept for replay.
type Record struct {
	Seq    int
	Source string
	Expr   ast.Expr
	Form   ast.FormKind
	Name   string
}

// Recorder persists accepted definitions outside the process.
type Recorder interface {
	AppendRecord(ctx context.Context, sessionID string, rec Record) error
}

// Result is the outcome of one accepted input.
type Result struct {
	Form  ast.FormKind
	Name  string
	Arity int
	// Value is set for variables and expressions.
	Value    float64
	HasValue bool
}

func (r *Result) String() string {
	switch r.Form {
	case ast.FormFunction:
		return fmt.Sprintf("defined %s/%d", r.Name, r.Arity)
	case ast.FormVariable:
		return fmt.Sprintf("%s = %s", r.Name, FormatValue(r.Value))
	}
	return FormatValue(r.Value)
}

// FormatValue prints a double the short way: 25, 0.5, 1e+21, +Inf, NaN.
func FormatValue(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	case math.IsNaN(v):
		return "NaN"
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
