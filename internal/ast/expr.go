// Package ast defines the S-expression syntax tree.
package ast

import (
	"strconv"
	"strings"

	"github.com/funvibe/lispjit/internal/config"
)

// Expr is a node of the syntax tree. It is one of Symbol, Integer, Float or List.
// IsTerminal lets nodes double as parser captures.
type Expr interface {
	IsTerminal() bool
	String() string
	exprNode()
}

// Symbol is an identifier or operator name.
type Symbol string

// Integer is a 64-bit signed integer literal.
type Integer int64

// Float is a double-precision literal.
type Float float64

// List is a parenthesized sequence of expressions.
type List []Expr

func (Symbol) exprNode()  {}
func (Integer) exprNode() {}
func (Float) exprNode()   {}
func (List) exprNode()    {}

func (Symbol) IsTerminal() bool  { return true }
func (Integer) IsTerminal() bool { return true }
func (Float) IsTerminal() bool   { return true }
func (List) IsTerminal() bool    { return false }

func (s Symbol) String() string { return string(s) }

func (i Integer) String() string { return strconv.FormatInt(int64(i), 10) }

// String keeps a decimal point so that the printed form reads back as a Float.
func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func (l List) String() string {
	var sb strings.Builder
	sb.WriteByte('(')
	for i, e := range l {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(e.String())
	}
	sb.WriteByte(')')
	return sb.String()
}

// Head splits a list into its operator name and arguments.
// ok is false when the list is empty or does not start with a symbol.
func (l List) Head() (op string, args []Expr, ok bool) {
	if len(l) == 0 {
		return "", nil, false
	}
	sym, isSym := l[0].(Symbol)
	if !isSym {
		return "", nil, false
	}
	return string(sym), l[1:], true
}

// Equal reports whether two trees are structurally identical.
func Equal(a, b Expr) bool {
	switch x := a.(type) {
	case Symbol:
		y, ok := b.(Symbol)
		return ok && x == y
	case Integer:
		y, ok := b.(Integer)
		return ok && x == y
	case Float:
		y, ok := b.(Float)
		return ok && x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// FormKind is the top-level category of an input.
type FormKind int

const (
	FormExpression FormKind = iota
	FormVariable
	FormFunction
)

func (k FormKind) String() string {
	switch k {
	case FormVariable:
		return "variable"
	case FormFunction:
		return "function"
	default:
		return "expression"
	}
}

// Classify tells definitions from plain expressions by their shape:
// (define (f ...) body) is a function, (define x value) a variable.
// Malformed definitions classify as expressions so that compiling them
// reports the error.
func Classify(e Expr) FormKind {
	l, ok := e.(List)
	if !ok {
		return FormExpression
	}
	op, args, ok := l.Head()
	if !ok || op != config.DefineFormName || len(args) != 2 {
		return FormExpression
	}
	switch args[0].(type) {
	case List:
		return FormFunction
	case Symbol:
		return FormVariable
	}
	return FormExpression
}
