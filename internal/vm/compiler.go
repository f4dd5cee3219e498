package vm

import (
	"fmt"

	"github.com/funvibe/lispjit/internal/intrinsics"
	"github.com/funvibe/lispjit/internal/ir"
)

const (
	maxShortOperand = 1<<16 - 1
	maxArgCount     = 1<<8 - 1
)

var arithOpcodes = map[ir.Op]Opcode{
	ir.OpAdd: OP_ADD,
	ir.OpSub: OP_SUB,
	ir.OpMul: OP_MUL,
	ir.OpDiv: OP_DIV,
	ir.OpRem: OP_MOD,
}

// Compiler lowers the routines of one unit to bytecode.
type Compiler struct {
	prog           *Program
	fnIndex        map[*ir.Routine]int
	globalIndex    map[*ir.Slot]int
	intrinsicIndex map[*intrinsics.Intrinsic]int

	// Current function being compiled
	routine   *ir.Routine
	function  *CompiledFunction
	localBase int
	valueBase int
}

// Compile lowers every live routine of unit. Routines are verified first.
func Compile(unit *ir.Unit) (*Program, error) {
	if err := ir.VerifyUnit(unit); err != nil {
		return nil, err
	}
	c := &Compiler{
		prog: &Program{
			Name:   unit.Name,
			byName: make(map[string]int),
		},
		fnIndex:        make(map[*ir.Routine]int),
		globalIndex:    make(map[*ir.Slot]int),
		intrinsicIndex: make(map[*intrinsics.Intrinsic]int),
	}

	globals := unit.Globals()
	if len(globals) > maxShortOperand+1 {
		return nil, fmt.Errorf("unit %s: too many globals (%d)", unit.Name, len(globals))
	}
	for i, g := range globals {
		c.globalIndex[g] = i
		c.prog.Globals = append(c.prog.Globals, g.String())
	}

	routines := unit.Routines()
	if len(routines) > maxShortOperand+1 {
		return nil, fmt.Errorf("unit %s: too many routines (%d)", unit.Name, len(routines))
	}
	for i, r := range routines {
		c.fnIndex[r] = i
		if cur, ok := unit.Routine(r.Name); ok && cur == r {
			c.prog.byName[r.Name] = i
		}
	}
	for _, r := range routines {
		fn, err := c.compileRoutine(r)
		if err != nil {
			return nil, err
		}
		c.prog.Functions = append(c.prog.Functions, fn)
	}
	for _, r := range unit.Initializers() {
		c.prog.Inits = append(c.prog.Inits, c.fnIndex[r])
	}
	return c.prog, nil
}

func (c *Compiler) currentChunk() *Chunk {
	return c.function.Chunk
}

// compileRoutine assigns every parameter, local slot and IR value its own
// frame slot, then emits one short stack sequence per instruction.
func (c *Compiler) compileRoutine(r *ir.Routine) (*CompiledFunction, error) {
	c.routine = r
	c.localBase = r.Arity()
	c.valueBase = c.localBase + len(r.Locals)
	c.function = &CompiledFunction{
		Name:      r.Name,
		Arity:     r.Arity(),
		SlotCount: c.valueBase + r.NumValues(),
		Chunk:     NewChunk(),
	}
	if c.function.SlotCount > maxShortOperand+1 {
		return nil, fmt.Errorf("routine %s: frame too large (%d slots)", r.Name, c.function.SlotCount)
	}

	for _, in := range r.Instrs {
		if err := c.compileInstr(in); err != nil {
			return nil, fmt.Errorf("routine %s: %w", r.Name, err)
		}
	}
	if n := len(c.currentChunk().Constants); n > maxShortOperand+1 {
		return nil, fmt.Errorf("routine %s: too many constants (%d)", r.Name, n)
	}
	return c.function, nil
}

func (c *Compiler) compileInstr(in ir.Instr) error {
	chunk := c.currentChunk()
	switch in.Op {
	case ir.OpConst:
		chunk.WriteConstant(in.Const)

	case ir.OpParam:
		c.emitGetLocal(in.Index)

	case ir.OpLoad:
		if err := c.emitSlot(in.Slot, OP_GET_LOCAL, OP_GET_GLOBAL); err != nil {
			return err
		}

	case ir.OpStore:
		c.emitGetValue(in.Args[0])
		return c.emitSlot(in.Slot, OP_SET_LOCAL, OP_SET_GLOBAL)

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpRem:
		c.emitGetValue(in.Args[0])
		c.emitGetValue(in.Args[1])
		chunk.WriteOp(arithOpcodes[in.Op])

	case ir.OpCall:
		idx, ok := c.fnIndex[in.Callee]
		if !ok {
			return fmt.Errorf("call to %s outside the program", in.Callee.Name)
		}
		if err := c.emitArgs(in.Args); err != nil {
			return err
		}
		chunk.WriteOp(OP_CALL)
		chunk.WriteShort(idx)
		chunk.Write(byte(len(in.Args)))

	case ir.OpCallIntrinsic:
		if err := c.emitArgs(in.Args); err != nil {
			return err
		}
		chunk.WriteOp(OP_CALL_INTRINSIC)
		chunk.WriteShort(c.intrinsic(in.Intrinsic))
		chunk.Write(byte(len(in.Args)))

	case ir.OpReturn:
		c.emitGetValue(in.Args[0])
		chunk.WriteOp(OP_RETURN)
		return nil

	default:
		return fmt.Errorf("unsupported op %s", in.Op)
	}

	if in.Op.HasResult() {
		c.emitSetLocal(c.valueBase + in.Dst.ID)
	}
	return nil
}

func (c *Compiler) emitArgs(args []ir.Value) error {
	if len(args) > maxArgCount {
		return fmt.Errorf("too many arguments (%d)", len(args))
	}
	for _, a := range args {
		c.emitGetValue(a)
	}
	return nil
}

func (c *Compiler) emitGetValue(v ir.Value) {
	c.emitGetLocal(c.valueBase + v.ID)
}

func (c *Compiler) emitGetLocal(slot int) {
	c.currentChunk().WriteOp(OP_GET_LOCAL)
	c.currentChunk().WriteShort(slot)
}

func (c *Compiler) emitSetLocal(slot int) {
	c.currentChunk().WriteOp(OP_SET_LOCAL)
	c.currentChunk().WriteShort(slot)
}

func (c *Compiler) emitSlot(s *ir.Slot, localOp, globalOp Opcode) error {
	chunk := c.currentChunk()
	if s.Kind == ir.SlotLocal {
		chunk.WriteOp(localOp)
		chunk.WriteShort(c.localBase + s.Index)
		return nil
	}
	idx, ok := c.globalIndex[s]
	if !ok {
		return fmt.Errorf("unknown global %s", s)
	}
	chunk.WriteOp(globalOp)
	chunk.WriteShort(idx)
	return nil
}

func (c *Compiler) intrinsic(in *intrinsics.Intrinsic) int {
	if idx, ok := c.intrinsicIndex[in]; ok {
		return idx
	}
	idx := len(c.prog.Intrinsics)
	c.prog.Intrinsics = append(c.prog.Intrinsics, in)
	c.intrinsicIndex[in] = idx
	return idx
}
