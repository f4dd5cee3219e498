package vm

import (
	"fmt"

	"github.com/funvibe/lispjit/internal/intrinsics"
)

// CompiledFunction is one routine lowered to bytecode.
type CompiledFunction struct {
	Name  string
	Arity int
	// SlotCount is the frame size: parameters, then locals, then the
	// temporaries that hold IR values.
	SlotCount int
	Chunk     *Chunk
}

func (f *CompiledFunction) String() string {
	return fmt.Sprintf("<fn %s/%d>", f.Name, f.Arity)
}

// Program is a whole unit ready to run.
type Program struct {
	Name       string
	Functions  []*CompiledFunction
	Inits      []int // function indexes of the initializers, in order
	Globals    []string
	Intrinsics []*intrinsics.Intrinsic

	byName map[string]int
}

// Lookup returns the index of the function currently holding name.
func (p *Program) Lookup(name string) (int, bool) {
	idx, ok := p.byName[name]
	return idx, ok
}
