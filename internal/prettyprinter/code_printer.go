// Package prettyprinter renders expressions as indented source code.
package prettyprinter

import (
	"bytes"
	"strings"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/config"
)

// DefaultLineWidth is the width lists are broken at.
const DefaultLineWidth = 60

// CodePrinter lays out expressions so that a list fitting in the
// remaining width stays on one line. Longer lists put the head and first
// argument on the opening line and the rest underneath. The body of a
// define is always indented by two spaces.
type CodePrinter struct {
	buf       bytes.Buffer
	indent    int
	lineWidth int // max line width (0 = unlimited)
	column    int
}

func NewCodePrinter() *CodePrinter {
	return &CodePrinter{lineWidth: DefaultLineWidth}
}

// WithLineWidth sets the width; 0 disables breaking.
func (p *CodePrinter) WithLineWidth(w int) *CodePrinter {
	p.lineWidth = w
	return p
}

// Print returns the layout of e.
func (p *CodePrinter) Print(e ast.Expr) string {
	p.buf.Reset()
	p.indent = 0
	p.column = 0
	p.expr(e)
	return p.buf.String()
}

func (p *CodePrinter) write(s string) {
	p.buf.WriteString(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		p.column = len(s) - i - 1
	} else {
		p.column += len(s)
	}
}

func (p *CodePrinter) newline() {
	p.buf.WriteByte('\n')
	p.buf.WriteString(strings.Repeat(" ", p.indent))
	p.column = p.indent
}

func (p *CodePrinter) fits(s string) bool {
	return p.lineWidth == 0 || p.column+len(s) <= p.lineWidth
}

func (p *CodePrinter) expr(e ast.Expr) {
	list, ok := e.(ast.List)
	if !ok || len(list) == 0 {
		p.write(e.String())
		return
	}
	flat := list.String()
	if p.fits(flat) {
		p.write(flat)
		return
	}

	head, _, _ := list.Head()
	isDefine := head == config.DefineFormName

	saved := p.indent
	p.write("(")
	p.expr(list[0])
	switch {
	case isDefine:
		p.indent = saved + 2
		if len(list) > 1 {
			p.write(" ")
			p.expr(list[1])
		}
		for _, arg := range list[2:] {
			p.newline()
			p.expr(arg)
		}
	default:
		// Align the remaining arguments under the first one.
		p.indent = p.column + 1
		for i, arg := range list[1:] {
			if i == 0 {
				p.write(" ")
			} else {
				p.newline()
			}
			p.expr(arg)
		}
	}
	p.write(")")
	p.indent = saved
}
