// Package vm lowers IR units to bytecode and runs them on a stack machine.
package vm

// Opcode represents a single VM instruction
type Opcode byte

// Operands are big-endian. "slot" is a 2-byte index into the current frame,
// "global", "const", "fn" and "intrinsic" are 2-byte indexes into the
// program tables, "argc" is one byte.
const (
	OP_CONST Opcode = iota // const       push constant
	OP_POP                 //             discard top of stack

	// Arithmetic on the two topmost values
	OP_ADD
	OP_SUB
	OP_MUL
	OP_DIV
	OP_MOD

	// Variables
	OP_GET_LOCAL  // slot    push frame slot
	OP_SET_LOCAL  // slot    pop into frame slot
	OP_GET_GLOBAL // global  push global
	OP_SET_GLOBAL // global  pop into global

	// Functions
	OP_CALL           // fn argc         call with argc arguments on the stack
	OP_CALL_INTRINSIC // intrinsic argc  call a host routine
	OP_RETURN         //                 return top of stack
)

var opcodeNames = [...]string{
	OP_CONST:          "CONST",
	OP_POP:            "POP",
	OP_ADD:            "ADD",
	OP_SUB:            "SUB",
	OP_MUL:            "MUL",
	OP_DIV:            "DIV",
	OP_MOD:            "MOD",
	OP_GET_LOCAL:      "GET_LOCAL",
	OP_SET_LOCAL:      "SET_LOCAL",
	OP_GET_GLOBAL:     "GET_GLOBAL",
	OP_SET_GLOBAL:     "SET_GLOBAL",
	OP_CALL:           "CALL",
	OP_CALL_INTRINSIC: "CALL_INTRINSIC",
	OP_RETURN:         "RETURN",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return "UNKNOWN"
}
