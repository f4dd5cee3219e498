package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// String renders the unit in a readable assembly-like form.
func (u *Unit) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; unit %s\n", u.Name)
	for _, g := range u.globals {
		fmt.Fprintf(&sb, "%s = global double 0.0\n", g)
	}
	for _, r := range u.routines {
		sb.WriteByte('\n')
		sb.WriteString(r.String())
	}
	return sb.String()
}

// String renders a single routine.
func (r *Routine) String() string {
	var sb strings.Builder
	params := make([]string, len(r.Params))
	for i, p := range r.Params {
		params[i] = "double %" + p
	}
	fmt.Fprintf(&sb, "define double @%s(%s) {\n", r.Name, strings.Join(params, ", "))
	for _, s := range r.Locals {
		fmt.Fprintf(&sb, "  %s = alloca double\n", s)
	}
	for _, in := range r.Instrs {
		sb.WriteString("  ")
		sb.WriteString(in.String())
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (v Value) String() string {
	return "%" + strconv.Itoa(v.ID)
}

func (in Instr) String() string {
	args := make([]string, len(in.Args))
	for i, a := range in.Args {
		args[i] = "double " + a.String()
	}
	operands := strings.Join(args, ", ")

	switch in.Op {
	case OpConst:
		return fmt.Sprintf("%s = const double %s", in.Dst, strconv.FormatFloat(in.Const, 'g', -1, 64))
	case OpParam:
		return fmt.Sprintf("%s = param %d", in.Dst, in.Index)
	case OpLoad:
		return fmt.Sprintf("%s = load double, %s", in.Dst, in.Slot)
	case OpStore:
		return fmt.Sprintf("store %s, %s", operands, in.Slot)
	case OpCall:
		return fmt.Sprintf("%s = call double @%s(%s)", in.Dst, in.Callee.Name, operands)
	case OpCallIntrinsic:
		return fmt.Sprintf("%s = call double @%s(%s)", in.Dst, in.Intrinsic.Name, operands)
	case OpReturn:
		return fmt.Sprintf("ret %s", operands)
	default:
		return fmt.Sprintf("%s = %s %s", in.Dst, in.Op, operands)
	}
}
