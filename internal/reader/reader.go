// Package reader turns source text into S-expression syntax trees.
package reader

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/hucsmn/peg"
)

const (
	whitespace = " \t\r\n"
	// A symbol may start with a quote but not contain one, and may contain
	// a dot but not start with one.
	symbolStart = `-_+*/?!@#$%&|<>=:"`
	symbolRest  = `-_+*/?!@#$%&|<>=:.`
)

var (
	spaces = peg.Q0(peg.S(whitespace))
	digit  = peg.R('0', '9')
	letter = peg.R('a', 'z', 'A', 'Z')

	numberPattern = peg.Seq(
		peg.Q01(peg.T("-")),
		peg.Q1(digit),
		peg.Q01(peg.Seq(peg.T("."), peg.Q0(digit))))

	symbolPattern = peg.Seq(
		peg.Alt(letter, peg.S(symbolStart)),
		peg.Q0(peg.Alt(letter, digit, peg.S(symbolRest))))

	rules = map[string]peg.Pattern{
		"atom": peg.Alt(
			peg.CT(numberCons, numberPattern),
			peg.CT(symbolCons, symbolPattern)),
		"expr": peg.Alt(
			peg.V("atom"),
			peg.CC(listCons,
				peg.Seq(
					peg.T("("), spaces,
					peg.J0(peg.V("expr"), spaces),
					spaces, peg.T(")")))),
		"partial": peg.Alt(
			peg.V("atom"),
			peg.Seq(
				peg.T("("), spaces,
				peg.J0(peg.V("partial"), spaces),
				spaces, peg.Q01(peg.T(")")))),
	}

	grammar        = peg.Let(rules, peg.Seq(spaces, peg.V("expr"), spaces))
	partialGrammar = peg.Let(rules, peg.Seq(spaces, peg.V("partial"), spaces))
)

// ParseError reports malformed source text.
type ParseError struct {
	Input string
	Msg   string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Msg
}

// Read parses exactly one expression from text.
// Surrounding whitespace is ignored; anything after the expression is an error.
func Read(text string) (ast.Expr, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Input: text, Msg: "empty input"}
	}

	if !peg.IsFullMatched(grammar, text) {
		if peg.IsFullMatched(partialGrammar, text) {
			return nil, &ParseError{Input: text, Msg: "unbalanced parentheses: missing ')'"}
		}
		return nil, &ParseError{Input: text, Msg: fmt.Sprintf("unexpected input in %q", strings.TrimSpace(text))}
	}

	caps, err := peg.Parse(grammar, text)
	if err != nil {
		return nil, &ParseError{Input: text, Msg: err.Error()}
	}
	if len(caps) != 1 {
		return nil, &ParseError{Input: text, Msg: fmt.Sprintf("expected one expression, got %d", len(caps))}
	}
	expr, ok := caps[0].(ast.Expr)
	if !ok {
		return nil, &ParseError{Input: text, Msg: fmt.Sprintf("unexpected capture %T", caps[0])}
	}
	return expr, nil
}

// IsIncomplete reports whether text is an unfinished expression,
// i.e. more input could still turn it into a valid one.
func IsIncomplete(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if peg.IsFullMatched(grammar, text) {
		return false
	}
	return peg.IsFullMatched(partialGrammar, text)
}

func numberCons(lit string, pos peg.Position) (peg.Capture, error) {
	return parseNumber(lit)
}

// parseNumber tries int64 first and falls back to float64.
func parseNumber(lit string) (ast.Expr, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return ast.Integer(i), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", lit)
	}
	return ast.Float(f), nil
}

func symbolCons(lit string, pos peg.Position) (peg.Capture, error) {
	return ast.Symbol(lit), nil
}

func listCons(items []peg.Capture) (peg.Capture, error) {
	list := make(ast.List, len(items))
	for i, item := range items {
		e, ok := item.(ast.Expr)
		if !ok {
			return nil, fmt.Errorf("unexpected capture: %#v", item)
		}
		list[i] = e
	}
	return list, nil
}
