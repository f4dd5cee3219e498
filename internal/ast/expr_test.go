package ast

import (
	"testing"

	"github.com/funvibe/lispjit/internal/config"
)

func TestString(t *testing.T) {
	tests := []struct {
		expr Expr
		want string
	}{
		{Integer(-42), "-42"},
		{Float(3), "3.0"},
		{Float(-3.14), "-3.14"},
		{Symbol("foo"), "foo"},
		{List{}, "()"},
		{List{Symbol("+"), Integer(1), List{Symbol("*"), Float(2.5), Symbol("x")}}, "(+ 1 (* 2.5 x))"},
	}
	for _, tt := range tests {
		if got := tt.expr.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := List{Symbol("f"), Integer(1)}
	if !Equal(a, List{Symbol("f"), Integer(1)}) {
		t.Errorf("identical lists compare unequal")
	}
	if Equal(Integer(1), Float(1)) {
		t.Errorf("Integer(1) and Float(1) must differ")
	}
	if Equal(a, List{Symbol("f")}) {
		t.Errorf("lists of different length compare equal")
	}
}

func TestClassify(t *testing.T) {
	def := Symbol(config.DefineFormName)
	tests := []struct {
		name string
		expr Expr
		want FormKind
	}{
		{"number", Integer(1), FormExpression},
		{"call", List{Symbol("+"), Integer(1)}, FormExpression},
		{"variable", List{def, Symbol("x"), Integer(1)}, FormVariable},
		{"function", List{def, List{Symbol("sq"), Symbol("x")}, Symbol("x")}, FormFunction},
		{"missing value", List{def, Symbol("x")}, FormExpression},
		{"numeric target", List{def, Integer(1), Integer(2)}, FormExpression},
		{"empty list", List{}, FormExpression},
		{"other head", List{Symbol("defun"), Symbol("x"), Integer(1)}, FormExpression},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.expr); got != tt.want {
				t.Errorf("Classify(%s) = %v, want %v", tt.expr, got, tt.want)
			}
		})
	}
}
