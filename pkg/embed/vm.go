// Package lispjit embeds the calculator in Go programs.
package lispjit

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/reader"
	"github.com/funvibe/lispjit/internal/session"
)

// VM is an embedded session with a high-level API.
type VM struct {
	session    *session.Session
	marshaller *Marshaller
	ctx        context.Context
}

// New creates a VM on the bytecode backend.
func New() *VM {
	v, _ := NewWithBackend(config.DefaultBackend)
	return v
}

// NewWithBackend creates a VM on the named backend ("vm" or "closure").
func NewWithBackend(name string) (*VM, error) {
	b, err := backend.New(name, config.DefaultMaxFrames)
	if err != nil {
		return nil, err
	}
	return &VM{
		session:    session.New("embed", b),
		marshaller: NewMarshaller(),
		ctx:        context.Background(),
	}, nil
}

// SetContext sets the context later evaluations run under.
func (v *VM) SetContext(ctx context.Context) {
	v.ctx = ctx
}

// Bind makes a Go function callable by name. Parameters and the result
// must be numbers. User definitions with the same name take precedence.
func (v *VM) Bind(name string, fn interface{}) error {
	in, err := v.marshaller.Intrinsic(name, fn)
	if err != nil {
		return err
	}
	v.session.Intrinsics().Register(in)
	return nil
}

// Set defines a variable.
func (v *VM) Set(name string, val interface{}) error {
	if err := checkSymbol(name); err != nil {
		return err
	}
	f, err := v.marshaller.ToValue(val)
	if err != nil {
		return err
	}
	lit, err := literal(f)
	if err != nil {
		return err
	}
	_, err = v.session.Eval(v.ctx, fmt.Sprintf("(%s %s %s)", config.DefineFormName, name, lit))
	return err
}

// Get returns the current value of a variable.
func (v *VM) Get(name string) (float64, error) {
	return v.Eval(name)
}

// Call applies a function to arguments.
func (v *VM) Call(funcName string, args ...interface{}) (float64, error) {
	if err := checkSymbol(funcName); err != nil {
		return 0, err
	}
	parts := []string{funcName}
	for i, a := range args {
		f, err := v.marshaller.ToValue(a)
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", i, err)
		}
		lit, err := literal(f)
		if err != nil {
			return 0, fmt.Errorf("argument %d: %w", i, err)
		}
		parts = append(parts, lit)
	}
	return v.Eval("(" + strings.Join(parts, " ") + ")")
}

// Eval evaluates one input. Definitions yield their value (0 for functions).
func (v *VM) Eval(code string) (float64, error) {
	res, err := v.session.Eval(v.ctx, code)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}

// LoadFile evaluates every input in a file, stopping at the first error.
func (v *VM) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, line := range strings.Split(string(data), "\n") {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		src := b.String()
		if reader.IsIncomplete(src) {
			continue
		}
		b.Reset()
		if strings.TrimSpace(src) == "" {
			continue
		}
		if _, err := v.session.Eval(v.ctx, src); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if strings.TrimSpace(b.String()) != "" {
		return fmt.Errorf("%s: unterminated input %q", path, b.String())
	}
	return nil
}

// Definitions returns the sources of the accepted definitions in order.
func (v *VM) Definitions() []string {
	recs := v.session.Records()
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Source
	}
	return out
}

// checkSymbol makes sure name reads back as a single symbol.
func checkSymbol(name string) error {
	e, err := reader.Read(name)
	if err != nil {
		return fmt.Errorf("invalid name %q: %w", name, err)
	}
	if sym, ok := e.(ast.Symbol); !ok || string(sym) != name {
		return fmt.Errorf("invalid name %q: not a symbol", name)
	}
	return nil
}

// literal renders f in source syntax. Fractions keep a decimal point so they
// read back as floats.
func literal(f float64) (string, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return "", fmt.Errorf("%g has no literal form", f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}
