package vm

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	ErrStackOverflow        = errors.New("stack overflow")
	errTruncatedBytecode    = errors.New("truncated bytecode")
	errStackUnderflow       = errors.New("stack underflow")
	errInvalidConstantIndex = errors.New("invalid constant index")
)

// Initial sizes for stack and frames
const InitialStackSize = 1024
const InitialFrameCount = 64

// Growth increment when the stack needs to expand
const StackGrowthIncrement = 1024

// Maximum call stack depth to prevent infinite recursion
const MaxFrameCount = 4096

// CallFrame represents a single ongoing function call
type CallFrame struct {
	fn    *CompiledFunction
	chunk *Chunk
	ip    int
	base  int // first frame slot on the stack
}

// VM runs one Program. Globals live as long as the VM.
type VM struct {
	prog *Program

	stack []float64
	sp    int

	frames     []CallFrame
	frameCount int
	frame      *CallFrame

	globals   []float64
	maxFrames int

	// Context is checked periodically; cancelling it stops execution.
	Context context.Context
}

// New creates a VM for prog with zeroed globals.
func New(prog *Program) *VM {
	return &VM{
		prog:      prog,
		stack:     make([]float64, InitialStackSize),
		frames:    make([]CallFrame, 0, InitialFrameCount),
		globals:   make([]float64, len(prog.Globals)),
		maxFrames: MaxFrameCount,
	}
}

// SetMaxFrames changes the call depth limit. Non-positive values restore the default.
func (vm *VM) SetMaxFrames(n int) {
	if n <= 0 {
		n = MaxFrameCount
	}
	vm.maxFrames = n
}

// SetContext sets the context checked during execution
func (vm *VM) SetContext(ctx context.Context) {
	vm.Context = ctx
}

// RunInitializers calls the initializers in order and returns their results.
func (vm *VM) RunInitializers() ([]float64, error) {
	results := make([]float64, 0, len(vm.prog.Inits))
	for _, idx := range vm.prog.Inits {
		v, err := vm.Call(idx)
		if err != nil {
			return results, err
		}
		results = append(results, v)
	}
	return results, nil
}

// callByName calls the function currently holding name.
func (vm *VM) callByName(name string, args ...float64) (float64, error) {
	idx, ok := vm.prog.Lookup(name)
	if !ok {
		return 0, fmt.Errorf("no routine named %s", name)
	}
	return vm.Call(idx, args...)
}

// Call runs function idx to completion.
func (vm *VM) Call(idx int, args ...float64) (result float64, err error) {
	if idx < 0 || idx >= len(vm.prog.Functions) {
		return 0, fmt.Errorf("invalid function index %d", idx)
	}
	fn := vm.prog.Functions[idx]
	if len(args) != fn.Arity {
		return 0, fmt.Errorf("%s expects %d arguments, got %d", fn.Name, fn.Arity, len(args))
	}

	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok || !(e == errTruncatedBytecode || e == errStackUnderflow || e == errInvalidConstantIndex) {
				panic(r)
			}
			err = vm.runtimeError(e)
		}
	}()

	vm.sp = 0
	vm.frames = vm.frames[:0]
	vm.frameCount = 0
	for _, a := range args {
		vm.push(a)
	}
	if err := vm.pushFrame(fn, 0); err != nil {
		return 0, err
	}
	return vm.execute()
}

// pushFrame enters fn whose arguments are the top argc stack values.
func (vm *VM) pushFrame(fn *CompiledFunction, argc int) error {
	if vm.frameCount >= vm.maxFrames {
		return vm.runtimeError(ErrStackOverflow)
	}
	base := vm.sp - argc
	vm.checkStack(fn.SlotCount - argc)
	for i := vm.sp; i < base+fn.SlotCount; i++ {
		vm.stack[i] = 0
	}
	vm.sp = base + fn.SlotCount

	vm.frames = append(vm.frames, CallFrame{fn: fn, chunk: fn.Chunk, base: base})
	vm.frameCount++
	vm.frame = &vm.frames[vm.frameCount-1]
	return nil
}

// execute is the main interpreter loop
func (vm *VM) execute() (float64, error) {
	opsSinceCheck := 0
	const checkInterval = 1000

	for {
		opsSinceCheck++
		if opsSinceCheck >= checkInterval {
			opsSinceCheck = 0
			if vm.Context != nil {
				select {
				case <-vm.Context.Done():
					return 0, vm.runtimeError(vm.Context.Err())
				default:
				}
			}
		}

		if vm.frame.ip >= len(vm.frame.chunk.Code) {
			panic(errTruncatedBytecode)
		}
		op := Opcode(vm.readByte())

		switch op {
		case OP_CONST:
			vm.push(vm.readConstant())

		case OP_POP:
			vm.pop()

		case OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_MOD:
			b := vm.pop()
			a := vm.pop()
			vm.push(arith(op, a, b))

		case OP_GET_LOCAL:
			vm.push(vm.stack[vm.frame.base+vm.readShort()])

		case OP_SET_LOCAL:
			slot := vm.readShort()
			vm.stack[vm.frame.base+slot] = vm.pop()

		case OP_GET_GLOBAL:
			vm.push(vm.globals[vm.readShort()])

		case OP_SET_GLOBAL:
			g := vm.readShort()
			vm.globals[g] = vm.pop()

		case OP_CALL:
			fn := vm.prog.Functions[vm.readShort()]
			argc := int(vm.readByte())
			if err := vm.pushFrame(fn, argc); err != nil {
				return 0, err
			}

		case OP_CALL_INTRINSIC:
			in := vm.prog.Intrinsics[vm.readShort()]
			argc := int(vm.readByte())
			if vm.sp < argc {
				panic(errStackUnderflow)
			}
			args := make([]float64, argc)
			copy(args, vm.stack[vm.sp-argc:vm.sp])
			vm.sp -= argc
			vm.push(in.Call(args))

		case OP_RETURN:
			result := vm.pop()
			vm.frameCount--
			vm.sp = vm.frame.base
			vm.frames = vm.frames[:vm.frameCount]
			if vm.frameCount == 0 {
				vm.frame = nil
				return result, nil
			}
			vm.frame = &vm.frames[vm.frameCount-1]
			vm.push(result)

		default:
			return 0, vm.runtimeError(fmt.Errorf("unknown opcode %d", op))
		}
	}
}

func arith(op Opcode, a, b float64) float64 {
	switch op {
	case OP_ADD:
		return a + b
	case OP_SUB:
		return a - b
	case OP_MUL:
		return a * b
	case OP_DIV:
		return a / b
	default:
		return math.Mod(a, b)
	}
}

// Stack operations
func (vm *VM) push(v float64) {
	vm.checkStack(1)
	vm.stack[vm.sp] = v
	vm.sp++
}

func (vm *VM) pop() float64 {
	if vm.sp <= 0 {
		panic(errStackUnderflow)
	}
	vm.sp--
	return vm.stack[vm.sp]
}

// checkStack makes room for n more values.
func (vm *VM) checkStack(n int) {
	for vm.sp+n > len(vm.stack) {
		vm.stack = append(vm.stack, make([]float64, StackGrowthIncrement)...)
	}
}

func (vm *VM) readByte() byte {
	if vm.frame.ip >= len(vm.frame.chunk.Code) {
		panic(errTruncatedBytecode)
	}
	b := vm.frame.chunk.Code[vm.frame.ip]
	vm.frame.ip++
	return b
}

func (vm *VM) readShort() int {
	high := vm.readByte()
	low := vm.readByte()
	return int(high)<<8 | int(low)
}

func (vm *VM) readConstant() float64 {
	idx := vm.readShort()
	if idx >= len(vm.frame.chunk.Constants) {
		panic(errInvalidConstantIndex)
	}
	return vm.frame.chunk.Constants[idx]
}
