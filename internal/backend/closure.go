package backend

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/vm"
)

// ClosureBackend turns every IR instruction into a Go closure. Calls recurse
// on the Go stack, bounded by the same frame limit as the VM.
type ClosureBackend struct {
	maxFrames int
}

// NewClosure creates a closure backend.
func NewClosure(maxFrames int) *ClosureBackend {
	if maxFrames <= 0 {
		maxFrames = vm.MaxFrameCount
	}
	return &ClosureBackend{maxFrames: maxFrames}
}

func (b *ClosureBackend) Name() string {
	return "closure"
}

// step executes one instruction against a frame.
type step func(fr *frame) error

type closureRoutine struct {
	name  string
	arity int
	slots int
	steps []step
	ret   int
}

type closureProgram struct {
	routines  []*closureRoutine
	byName    map[string]*closureRoutine
	inits     []*closureRoutine
	globals   []float64
	maxFrames int
}

// execState is shared by all frames of one top-level call.
type execState struct {
	prog  *closureProgram
	ctx   context.Context
	depth int
}

type frame struct {
	st    *execState
	slots []float64
}

func (b *ClosureBackend) Load(unit *ir.Unit) (Program, error) {
	if err := ir.VerifyUnit(unit); err != nil {
		return nil, err
	}
	p := &closureProgram{
		byName:    make(map[string]*closureRoutine),
		maxFrames: b.maxFrames,
	}

	globalIndex := make(map[*ir.Slot]int)
	for i, g := range unit.Globals() {
		globalIndex[g] = i
	}
	p.globals = make([]float64, len(globalIndex))

	routines := unit.Routines()
	index := make(map[*ir.Routine]*closureRoutine, len(routines))
	for _, r := range routines {
		cr := &closureRoutine{name: r.Name, arity: r.Arity()}
		index[r] = cr
		p.routines = append(p.routines, cr)
		if cur, ok := unit.Routine(r.Name); ok && cur == r {
			p.byName[r.Name] = cr
		}
	}

	for _, r := range routines {
		lc := &closureLowering{routine: r, target: index[r], index: index, globals: globalIndex}
		if err := lc.lower(); err != nil {
			return nil, fmt.Errorf("routine %s: %w", r.Name, err)
		}
	}
	for _, r := range unit.Initializers() {
		p.inits = append(p.inits, index[r])
	}
	return p, nil
}

type closureLowering struct {
	routine *ir.Routine
	target  *closureRoutine
	index   map[*ir.Routine]*closureRoutine
	globals map[*ir.Slot]int

	localBase int
	valueBase int
}

func (lc *closureLowering) lower() error {
	r := lc.routine
	lc.localBase = r.Arity()
	lc.valueBase = lc.localBase + len(r.Locals)
	lc.target.slots = lc.valueBase + r.NumValues()

	for _, in := range r.Instrs {
		if in.Op == ir.OpReturn {
			lc.target.ret = lc.reg(in.Args[0])
			continue
		}
		s, err := lc.lowerInstr(in)
		if err != nil {
			return err
		}
		lc.target.steps = append(lc.target.steps, s)
	}
	return nil
}

func (lc *closureLowering) reg(v ir.Value) int {
	return lc.valueBase + v.ID
}

func (lc *closureLowering) lowerInstr(in ir.Instr) (step, error) {
	switch in.Op {
	case ir.OpConst:
		dst, k := lc.reg(in.Dst), in.Const
		return func(fr *frame) error {
			fr.slots[dst] = k
			return nil
		}, nil

	case ir.OpParam:
		dst, src := lc.reg(in.Dst), in.Index
		return func(fr *frame) error {
			fr.slots[dst] = fr.slots[src]
			return nil
		}, nil

	case ir.OpLoad:
		dst := lc.reg(in.Dst)
		if in.Slot.Kind == ir.SlotLocal {
			src := lc.localBase + in.Slot.Index
			return func(fr *frame) error {
				fr.slots[dst] = fr.slots[src]
				return nil
			}, nil
		}
		g, ok := lc.globals[in.Slot]
		if !ok {
			return nil, fmt.Errorf("unknown global %s", in.Slot)
		}
		return func(fr *frame) error {
			fr.slots[dst] = fr.st.prog.globals[g]
			return nil
		}, nil

	case ir.OpStore:
		src := lc.reg(in.Args[0])
		if in.Slot.Kind == ir.SlotLocal {
			dst := lc.localBase + in.Slot.Index
			return func(fr *frame) error {
				fr.slots[dst] = fr.slots[src]
				return nil
			}, nil
		}
		g, ok := lc.globals[in.Slot]
		if !ok {
			return nil, fmt.Errorf("unknown global %s", in.Slot)
		}
		return func(fr *frame) error {
			fr.st.prog.globals[g] = fr.slots[src]
			return nil
		}, nil

	case ir.OpAdd, ir.OpSub, ir.OpMul, ir.OpDiv, ir.OpRem:
		return lc.lowerArith(in), nil

	case ir.OpCall:
		callee, ok := lc.index[in.Callee]
		if !ok {
			return nil, fmt.Errorf("call to %s outside the program", in.Callee.Name)
		}
		dst, args := lc.reg(in.Dst), lc.regs(in.Args)
		return func(fr *frame) error {
			vals := make([]float64, len(args))
			for i, a := range args {
				vals[i] = fr.slots[a]
			}
			v, err := callee.invoke(fr.st, vals)
			if err != nil {
				return err
			}
			fr.slots[dst] = v
			return nil
		}, nil

	case ir.OpCallIntrinsic:
		fn := in.Intrinsic
		dst, args := lc.reg(in.Dst), lc.regs(in.Args)
		return func(fr *frame) error {
			vals := make([]float64, len(args))
			for i, a := range args {
				vals[i] = fr.slots[a]
			}
			fr.slots[dst] = fn.Call(vals)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported op %s", in.Op)
}

func (lc *closureLowering) lowerArith(in ir.Instr) step {
	dst, a, b := lc.reg(in.Dst), lc.reg(in.Args[0]), lc.reg(in.Args[1])
	var f func(x, y float64) float64
	switch in.Op {
	case ir.OpAdd:
		f = func(x, y float64) float64 { return x + y }
	case ir.OpSub:
		f = func(x, y float64) float64 { return x - y }
	case ir.OpMul:
		f = func(x, y float64) float64 { return x * y }
	case ir.OpDiv:
		f = func(x, y float64) float64 { return x / y }
	default:
		f = math.Mod
	}
	return func(fr *frame) error {
		fr.slots[dst] = f(fr.slots[a], fr.slots[b])
		return nil
	}
}

func (lc *closureLowering) regs(vals []ir.Value) []int {
	out := make([]int, len(vals))
	for i, v := range vals {
		out[i] = lc.reg(v)
	}
	return out
}

// invoke runs r in a new frame. Errors collect the names of the frames they
// unwind through, innermost first.
func (r *closureRoutine) invoke(st *execState, args []float64) (float64, error) {
	if st.depth >= st.prog.maxFrames {
		return 0, &vm.RuntimeError{Err: vm.ErrStackOverflow}
	}
	if st.ctx != nil {
		select {
		case <-st.ctx.Done():
			return 0, &vm.RuntimeError{Err: st.ctx.Err()}
		default:
		}
	}

	st.depth++
	defer func() { st.depth-- }()

	fr := &frame{st: st, slots: make([]float64, r.slots)}
	copy(fr.slots, args)
	for _, s := range r.steps {
		if err := s(fr); err != nil {
			var re *vm.RuntimeError
			if errors.As(err, &re) {
				re.Trace = append(re.Trace, r.name)
			}
			return 0, err
		}
	}
	return fr.slots[r.ret], nil
}

func (p *closureProgram) Init(ctx context.Context) ([]float64, error) {
	results := make([]float64, 0, len(p.inits))
	for _, r := range p.inits {
		v, err := r.invoke(&execState{prog: p, ctx: ctx}, nil)
		if err != nil {
			return results, err
		}
		results = append(results, v)
	}
	return results, nil
}

func (p *closureProgram) Lookup(name string) (Entry, error) {
	r, ok := p.byName[name]
	if !ok {
		return nil, &UnknownRoutineError{Name: name}
	}
	return &closureEntry{p: p, r: r}, nil
}

type closureEntry struct {
	p *closureProgram
	r *closureRoutine
}

func (e *closureEntry) Name() string { return e.r.name }
func (e *closureEntry) Arity() int   { return e.r.arity }

func (e *closureEntry) Call(ctx context.Context, args ...float64) (float64, error) {
	if len(args) != e.r.arity {
		return 0, fmt.Errorf("%s expects %d arguments, got %d", e.r.name, e.r.arity, len(args))
	}
	return e.r.invoke(&execState{prog: e.p, ctx: ctx}, args)
}
