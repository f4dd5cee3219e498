// Package ir is the emission target of the expression compiler: compilation
// units made of routines, storage slots and double-precision operations.
// Backends lower a finished Unit into something that can run.
package ir

import "github.com/funvibe/lispjit/internal/intrinsics"

// Op identifies an IR operation.
type Op uint8

const (
	OpConst         Op = iota // Dst = Const
	OpParam                   // Dst = parameter Index
	OpLoad                    // Dst = *Slot
	OpStore                   // *Slot = Args[0]
	OpAdd                     // Dst = Args[0] + Args[1]
	OpSub                     // Dst = Args[0] - Args[1]
	OpMul                     // Dst = Args[0] * Args[1]
	OpDiv                     // Dst = Args[0] / Args[1]
	OpRem                     // Dst = fmod(Args[0], Args[1])
	OpCall                    // Dst = Callee(Args...)
	OpCallIntrinsic           // Dst = Intrinsic(Args...)
	OpReturn                  // return Args[0]
)

var opNames = [...]string{
	OpConst:         "const",
	OpParam:         "param",
	OpLoad:          "load",
	OpStore:         "store",
	OpAdd:           "fadd",
	OpSub:           "fsub",
	OpMul:           "fmul",
	OpDiv:           "fdiv",
	OpRem:           "frem",
	OpCall:          "call",
	OpCallIntrinsic: "call",
	OpReturn:        "ret",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op?"
}

// IsArith reports whether op is one of the binary arithmetic operations.
func (op Op) IsArith() bool {
	return op >= OpAdd && op <= OpRem
}

// HasResult reports whether the operation defines a value.
func (op Op) HasResult() bool {
	return op != OpStore && op != OpReturn
}

// Value is a virtual register holding one double, defined by exactly one
// instruction of the routine that owns it.
type Value struct {
	ID    int
	owner *Routine
}

// Valid reports whether v was produced by a builder.
func (v Value) Valid() bool {
	return v.owner != nil
}

// Owner returns the routine that defines v.
func (v Value) Owner() *Routine {
	return v.owner
}

// Instr is a single IR instruction.
type Instr struct {
	Op        Op
	Dst       Value
	Args      []Value
	Const     float64
	Index     int
	Slot      *Slot
	Callee    *Routine
	Intrinsic *intrinsics.Intrinsic
}
