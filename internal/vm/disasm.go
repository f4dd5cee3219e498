package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}

	return sb.String()
}

// DisassembleProgram disassembles every function of p.
func DisassembleProgram(p *Program) string {
	var sb strings.Builder
	for i, g := range p.Globals {
		sb.WriteString(fmt.Sprintf("global %d %s\n", i, g))
	}
	for i, in := range p.Intrinsics {
		sb.WriteString(fmt.Sprintf("intrinsic %d %s/%d\n", i, in.Name, in.Arity))
	}
	for _, fn := range p.Functions {
		sb.WriteString(Disassemble(fn.Chunk, fmt.Sprintf("%s/%d slots=%d", fn.Name, fn.Arity, fn.SlotCount)))
	}
	return sb.String()
}

// disassembleInstruction disassembles a single instruction
func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	op := Opcode(chunk.Code[offset])
	switch op {
	case OP_CONST:
		return constantInstruction(sb, op, chunk, offset)
	case OP_POP, OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD, OP_RETURN:
		return simpleInstruction(sb, op, offset)
	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_GLOBAL, OP_SET_GLOBAL:
		return shortInstruction(sb, op, chunk, offset)
	case OP_CALL, OP_CALL_INTRINSIC:
		return callInstruction(sb, op, chunk, offset)
	default:
		sb.WriteString(fmt.Sprintf("Unknown opcode %d\n", op))
		return offset + 1
	}
}

func simpleInstruction(sb *strings.Builder, op Opcode, offset int) int {
	sb.WriteString(fmt.Sprintf("%s\n", op))
	return offset + 1
}

func constantInstruction(sb *strings.Builder, op Opcode, chunk *Chunk, offset int) int {
	if offset+2 >= len(chunk.Code) {
		sb.WriteString(fmt.Sprintf("%s (truncated)\n", op))
		return len(chunk.Code)
	}
	idx := chunk.ReadShort(offset + 1)
	if idx < len(chunk.Constants) {
		sb.WriteString(fmt.Sprintf("%-16s %4d '%g'\n", op, idx, chunk.Constants[idx]))
	} else {
		sb.WriteString(fmt.Sprintf("%-16s %4d (invalid)\n", op, idx))
	}
	return offset + 3
}

func shortInstruction(sb *strings.Builder, op Opcode, chunk *Chunk, offset int) int {
	if offset+2 >= len(chunk.Code) {
		sb.WriteString(fmt.Sprintf("%s (truncated)\n", op))
		return len(chunk.Code)
	}
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", op, chunk.ReadShort(offset+1)))
	return offset + 3
}

func callInstruction(sb *strings.Builder, op Opcode, chunk *Chunk, offset int) int {
	if offset+3 >= len(chunk.Code) {
		sb.WriteString(fmt.Sprintf("%s (truncated)\n", op))
		return len(chunk.Code)
	}
	sb.WriteString(fmt.Sprintf("%-16s %4d argc=%d\n", op, chunk.ReadShort(offset+1), chunk.Code[offset+3]))
	return offset + 4
}
