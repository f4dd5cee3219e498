package vm

import (
	"fmt"
	"strings"
)

// RuntimeError is a failure while running generated code. Trace lists the
// active routines, innermost first.
type RuntimeError struct {
	Err   error
	Trace []string
}

func (e *RuntimeError) Error() string {
	if len(e.Trace) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (in %s)", e.Err, e.Trace[0])
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// StackTrace renders the active routines, collapsing direct recursion.
func (e *RuntimeError) StackTrace() string {
	var sb strings.Builder
	for i := 0; i < len(e.Trace); {
		j := i
		for j < len(e.Trace) && e.Trace[j] == e.Trace[i] {
			j++
		}
		if n := j - i; n > 1 {
			fmt.Fprintf(&sb, "  at %s (x%d)\n", e.Trace[i], n)
		} else {
			fmt.Fprintf(&sb, "  at %s\n", e.Trace[i])
		}
		i = j
	}
	return sb.String()
}

func (vm *VM) runtimeError(err error) *RuntimeError {
	trace := make([]string, 0, vm.frameCount)
	for i := vm.frameCount - 1; i >= 0; i-- {
		trace = append(trace, vm.frames[i].fn.Name)
	}
	return &RuntimeError{Err: err, Trace: trace}
}
