package prettyprinter

import (
	"testing"

	"github.com/funvibe/lispjit/internal/reader"
)

func TestCodePrinter(t *testing.T) {
	tests := []struct {
		name  string
		width int
		input string
		want  string
	}{
		{"atom", 10, "42", "42"},
		{"fits", 60, "(+ 1 (* 2 3))", "(+ 1 (* 2 3))"},
		{"unlimited", 0, "(+ 111111 222222 333333 444444)", "(+ 111111 222222 333333 444444)"},
		{"aligned args", 12, "(+ 111 222 333)", "(+ 111\n   222\n   333)"},
		{"nested", 14, "(* (+ 1 2) (- 30000 4000))", "(* (+ 1 2)\n   (- 30000\n      4000))"},
		{"define body", 20, "(define (square x) (* x x))", "(define (square x)\n  (* x x))"},
		{"define var", 16, "(define total (+ 1 2 3))", "(define total\n  (+ 1 2 3))"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := reader.Read(tt.input)
			if err != nil {
				t.Fatalf("Read(%q): %v", tt.input, err)
			}
			got := NewCodePrinter().WithLineWidth(tt.width).Print(e)
			if got != tt.want {
				t.Errorf("Print(%q) =\n%s\nwant\n%s", tt.input, got, tt.want)
			}
		})
	}
}
