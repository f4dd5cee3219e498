package backend

import (
	"context"
	"fmt"

	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/vm"
)

// VMBackend executes programs using the bytecode VM
type VMBackend struct {
	maxFrames int
}

// NewVM creates a new VM backend
func NewVM(maxFrames int) *VMBackend {
	return &VMBackend{maxFrames: maxFrames}
}

func (b *VMBackend) Name() string {
	return "vm"
}

// Load lowers the unit to bytecode.
func (b *VMBackend) Load(unit *ir.Unit) (Program, error) {
	prog, err := vm.Compile(unit)
	if err != nil {
		return nil, fmt.Errorf("compilation error: %w", err)
	}
	machine := vm.New(prog)
	machine.SetMaxFrames(b.maxFrames)
	return &vmProgram{prog: prog, machine: machine}, nil
}

type vmProgram struct {
	prog    *vm.Program
	machine *vm.VM
}

func (p *vmProgram) Init(ctx context.Context) ([]float64, error) {
	p.machine.SetContext(ctx)
	return p.machine.RunInitializers()
}

func (p *vmProgram) Lookup(name string) (Entry, error) {
	idx, ok := p.prog.Lookup(name)
	if !ok {
		return nil, &UnknownRoutineError{Name: name}
	}
	return &vmEntry{p: p, idx: idx, fn: p.prog.Functions[idx]}, nil
}

// String returns the disassembly of the program.
func (p *vmProgram) String() string {
	return vm.DisassembleProgram(p.prog)
}

type vmEntry struct {
	p   *vmProgram
	idx int
	fn  *vm.CompiledFunction
}

func (e *vmEntry) Name() string { return e.fn.Name }
func (e *vmEntry) Arity() int   { return e.fn.Arity }

func (e *vmEntry) Call(ctx context.Context, args ...float64) (float64, error) {
	e.p.machine.SetContext(ctx)
	return e.p.machine.Call(e.idx, args...)
}
