// Package backend provides an interface for different execution backends.
// This allows switching between the bytecode VM and the closure compiler.
package backend

import (
	"context"
	"fmt"

	"github.com/funvibe/lispjit/internal/ir"
)

// Backend turns a finished unit into something that can run.
type Backend interface {
	// Load lowers every live routine of unit.
	Load(unit *ir.Unit) (Program, error)

	// Name returns the backend name for display
	Name() string
}

// Program is a loaded unit. Its globals live as long as the Program.
type Program interface {
	// Init runs the unit's initializers in order and returns their values.
	Init(ctx context.Context) ([]float64, error)

	// Lookup resolves the routine currently holding name.
	Lookup(name string) (Entry, error)
}

// Entry is a callable routine of a loaded Program.
type Entry interface {
	Name() string
	Arity() int
	Call(ctx context.Context, args ...float64) (float64, error)
}

// UnknownRoutineError is returned by Lookup for names the unit does not define.
type UnknownRoutineError struct {
	Name string
}

func (e *UnknownRoutineError) Error() string {
	return fmt.Sprintf("no routine named %s", e.Name)
}

// New returns the backend called name ("vm" or "closure"). maxFrames bounds
// the call depth of generated code; zero means the default.
func New(name string, maxFrames int) (Backend, error) {
	switch name {
	case "", "vm":
		return NewVM(maxFrames), nil
	case "closure":
		return NewClosure(maxFrames), nil
	}
	return nil, fmt.Errorf("unknown backend %q", name)
}
