package ir

import "fmt"

// VerifyError describes why a routine is malformed.
type VerifyError struct {
	Routine string
	Index   int
	Msg     string
}

func (e *VerifyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("routine %s: %s", e.Routine, e.Msg)
	}
	return fmt.Sprintf("routine %s: instruction %d: %s", e.Routine, e.Index, e.Msg)
}

// Verify checks that r is well formed:
//   - it ends with its only return
//   - every operand is defined earlier in r
//   - local slots belong to r and globals to r's unit
//   - calls target live routines of the same unit with matching arity
func Verify(r *Routine) error {
	fail := func(i int, format string, args ...any) error {
		return &VerifyError{Routine: r.Name, Index: i, Msg: fmt.Sprintf(format, args...)}
	}

	if r.deleted {
		return fail(-1, "routine was deleted")
	}
	if len(r.Instrs) == 0 {
		return fail(-1, "empty body")
	}
	if last := r.Instrs[len(r.Instrs)-1]; last.Op != OpReturn {
		return fail(len(r.Instrs)-1, "missing terminating return")
	}

	defined := make([]bool, r.numValues)
	for i, in := range r.Instrs {
		for _, a := range in.Args {
			if a.owner != r {
				return fail(i, "operand %%%d belongs to another routine", a.ID)
			}
			if a.ID < 0 || a.ID >= len(defined) || !defined[a.ID] {
				return fail(i, "operand %%%d used before definition", a.ID)
			}
		}

		switch in.Op {
		case OpConst:
		case OpParam:
			if in.Index < 0 || in.Index >= r.Arity() {
				return fail(i, "parameter index %d out of range for arity %d", in.Index, r.Arity())
			}
		case OpLoad, OpStore:
			if err := checkSlot(r, in.Slot); err != "" {
				return fail(i, "%s", err)
			}
			if in.Op == OpStore && len(in.Args) != 1 {
				return fail(i, "store takes one operand")
			}
		case OpAdd, OpSub, OpMul, OpDiv, OpRem:
			if len(in.Args) != 2 {
				return fail(i, "%s takes two operands", in.Op)
			}
		case OpCall:
			c := in.Callee
			if c == nil || c.unit != r.unit || c.deleted {
				return fail(i, "call to a routine outside the unit")
			}
			if len(in.Args) != c.Arity() {
				return fail(i, "call to %s with %d arguments, expected %d", c.Name, len(in.Args), c.Arity())
			}
		case OpCallIntrinsic:
			if in.Intrinsic == nil {
				return fail(i, "call to unknown intrinsic")
			}
			if len(in.Args) != in.Intrinsic.Arity {
				return fail(i, "call to %s with %d arguments, expected %d", in.Intrinsic.Name, len(in.Args), in.Intrinsic.Arity)
			}
		case OpReturn:
			if i != len(r.Instrs)-1 {
				return fail(i, "return before end of routine")
			}
			if len(in.Args) != 1 {
				return fail(i, "return takes one operand")
			}
		default:
			return fail(i, "unknown op %d", in.Op)
		}

		if in.Op.HasResult() {
			if in.Dst.owner != r || in.Dst.ID >= len(defined) || defined[in.Dst.ID] {
				return fail(i, "invalid result register %%%d", in.Dst.ID)
			}
			defined[in.Dst.ID] = true
		}
	}
	return nil
}

func checkSlot(r *Routine, s *Slot) string {
	switch {
	case s == nil:
		return "missing slot"
	case s.unit != r.unit:
		return fmt.Sprintf("slot %s belongs to another unit", s)
	case s.Kind == SlotLocal && s.owner != r:
		return fmt.Sprintf("slot %s is local to %s", s, s.owner.Name)
	}
	return ""
}

// VerifyUnit verifies every live routine of u.
func VerifyUnit(u *Unit) error {
	for _, r := range u.routines {
		if err := Verify(r); err != nil {
			return err
		}
	}
	return nil
}
