package ir

import "github.com/funvibe/lispjit/internal/intrinsics"

// Builder appends instructions to the routine it is positioned at.
type Builder struct {
	r *Routine
}

// NewBuilder creates a builder positioned at r.
func NewBuilder(r *Routine) *Builder {
	return &Builder{r: r}
}

// Routine returns the current insertion routine.
func (b *Builder) Routine() *Routine {
	return b.r
}

// PositionAt moves the insertion point to the end of r.
func (b *Builder) PositionAt(r *Routine) {
	b.r = r
}

func (b *Builder) emit(in Instr) Value {
	if in.Op.HasResult() {
		in.Dst = b.r.newValue()
	}
	b.r.Instrs = append(b.r.Instrs, in)
	return in.Dst
}

// Const materializes a constant.
func (b *Builder) Const(f float64) Value {
	return b.emit(Instr{Op: OpConst, Const: f})
}

// Param reads the i-th incoming argument.
func (b *Builder) Param(i int) Value {
	return b.emit(Instr{Op: OpParam, Index: i})
}

// Alloca creates a fresh local slot in the current routine.
func (b *Builder) Alloca(name string) *Slot {
	s := &Slot{Name: name, Kind: SlotLocal, Index: len(b.r.Locals), owner: b.r, unit: b.r.unit}
	b.r.Locals = append(b.r.Locals, s)
	return s
}

// Load reads a slot.
func (b *Builder) Load(s *Slot) Value {
	return b.emit(Instr{Op: OpLoad, Slot: s})
}

// Store writes v into a slot.
func (b *Builder) Store(s *Slot, v Value) {
	b.emit(Instr{Op: OpStore, Slot: s, Args: []Value{v}})
}

// Arith emits one of the binary arithmetic operations.
func (b *Builder) Arith(op Op, lhs, rhs Value) Value {
	return b.emit(Instr{Op: op, Args: []Value{lhs, rhs}})
}

// Call emits a call to a routine of the same unit.
func (b *Builder) Call(callee *Routine, args []Value) Value {
	return b.emit(Instr{Op: OpCall, Callee: callee, Args: append([]Value(nil), args...)})
}

// CallIntrinsic emits a call to a host routine.
func (b *Builder) CallIntrinsic(in *intrinsics.Intrinsic, args []Value) Value {
	return b.emit(Instr{Op: OpCallIntrinsic, Intrinsic: in, Args: append([]Value(nil), args...)})
}

// Return terminates the routine with v.
func (b *Builder) Return(v Value) {
	b.emit(Instr{Op: OpReturn, Args: []Value{v}})
}
