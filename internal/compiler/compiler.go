// Package compiler translates syntax trees into IR routines.
package compiler

import (
	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/intrinsics"
	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/symbols"
)

var arithOps = map[string]ir.Op{
	config.AddOpName: ir.OpAdd,
	config.SubOpName: ir.OpSub,
	config.MulOpName: ir.OpMul,
	config.DivOpName: ir.OpDiv,
	config.RemOpName: ir.OpRem,
}

// Compiler emits code for one unit. Definitions compiled earlier stay
// visible to later input through the root symbol table.
type Compiler struct {
	unit       *ir.Unit
	builder    *ir.Builder
	root       *symbols.SymbolTable
	scope      *symbols.SymbolTable
	intrinsics *intrinsics.Registry
}

// Output describes a compiled top-level form.
type Output struct {
	Form ast.FormKind
	// Name is the defined name for definitions.
	Name string
	// Routine is the defined function, the variable's initializer or the
	// anonymous routine of an expression.
	Routine *ir.Routine
}

// New creates a compiler emitting into unit. A nil registry means the
// default intrinsics.
func New(unit *ir.Unit, reg *intrinsics.Registry) *Compiler {
	if reg == nil {
		reg = intrinsics.Default()
	}
	root := symbols.NewSymbolTable()
	return &Compiler{
		unit:       unit,
		builder:    ir.NewBuilder(nil),
		root:       root,
		scope:      root,
		intrinsics: reg,
	}
}

func (c *Compiler) Unit() *ir.Unit {
	return c.unit
}

// SymbolTable returns the root scope of the unit.
func (c *Compiler) SymbolTable() *symbols.SymbolTable {
	return c.root
}

// CompileTopLevel compiles one input into its own routine.
func (c *Compiler) CompileTopLevel(expr ast.Expr) (*Output, error) {
	switch ast.Classify(expr) {
	case ast.FormFunction:
		_, args, _ := expr.(ast.List).Head()
		r, err := c.compileFunction(args[0].(ast.List), args[1])
		if err != nil {
			return nil, err
		}
		return &Output{Form: ast.FormFunction, Name: r.Name, Routine: r}, nil

	case ast.FormVariable:
		_, args, _ := expr.(ast.List).Head()
		name := string(args[0].(ast.Symbol))
		prev, existed := c.root.FindLocally(name)
		r := c.unit.NewInitializer()
		if err := c.compileRoutineBody(r, expr); err != nil {
			c.root.Restore(name, prev, existed)
			return nil, err
		}
		return &Output{Form: ast.FormVariable, Name: name, Routine: r}, nil

	default:
		r := c.unit.NewRoutine(config.AnonRoutineName, nil)
		if err := c.compileRoutineBody(r, expr); err != nil {
			return nil, err
		}
		return &Output{Form: ast.FormExpression, Routine: r}, nil
	}
}

// compileRoutineBody fills a zero-argument routine that returns expr.
// On failure the routine is removed from the unit.
func (c *Compiler) compileRoutineBody(r *ir.Routine, expr ast.Expr) error {
	saved := c.builder.Routine()
	c.builder.PositionAt(r)
	defer c.builder.PositionAt(saved)

	v, err := c.Compile(expr)
	if err != nil {
		c.unit.DeleteRoutine(r)
		return err
	}
	c.builder.Return(v)
	if err := ir.Verify(r); err != nil {
		c.unit.DeleteRoutine(r)
		return &CompileError{Kind: InvalidFunction, Name: r.Name, Msg: err.Error()}
	}
	return nil
}

// Compile emits code for node at the current insertion point and returns
// the register holding its value.
func (c *Compiler) Compile(node ast.Expr) (ir.Value, error) {
	switch n := node.(type) {
	case ast.Integer:
		return c.builder.Const(float64(n)), nil
	case ast.Float:
		return c.builder.Const(float64(n)), nil
	case ast.Symbol:
		return c.compileSymbol(string(n))
	case ast.List:
		return c.compileList(n)
	}
	return ir.Value{}, errorf(ExpectedOperator, "", "unsupported node %T", node)
}

func (c *Compiler) compileSymbol(name string) (ir.Value, error) {
	slot, ok := c.scope.FindVariable(name)
	if !ok {
		return ir.Value{}, &CompileError{Kind: UndefinedVariable, Name: name}
	}
	return c.builder.Load(slot), nil
}

func (c *Compiler) compileList(list ast.List) (ir.Value, error) {
	op, args, ok := list.Head()
	if !ok {
		if len(list) == 0 {
			return ir.Value{}, errorf(ExpectedOperator, "", "empty list")
		}
		return ir.Value{}, errorf(ExpectedOperator, "", "%s is not an operator", list[0])
	}

	if op == config.DefineFormName {
		return c.compileDefine(args)
	}
	if arith, isArith := arithOps[op]; isArith {
		return c.compileArith(op, arith, args)
	}
	return c.compileCall(op, args)
}

func (c *Compiler) compileArgs(args []ast.Expr) ([]ir.Value, error) {
	vals := make([]ir.Value, 0, len(args))
	for _, a := range args {
		v, err := c.Compile(a)
		if err != nil {
			return nil, err
		}
		vals = append(vals, v)
	}
	return vals, nil
}

// compileArith left-folds the arguments. A single argument is returned as is.
func (c *Compiler) compileArith(name string, op ir.Op, args []ast.Expr) (ir.Value, error) {
	if len(args) == 0 {
		return ir.Value{}, errorf(ArityError, name, "requires at least one argument")
	}
	vals, err := c.compileArgs(args)
	if err != nil {
		return ir.Value{}, err
	}
	acc := vals[0]
	for _, v := range vals[1:] {
		acc = c.builder.Arith(op, acc, v)
	}
	return acc, nil
}

// compileCall resolves name first as a function in scope, then as an
// intrinsic. Argument counts are left to verification.
func (c *Compiler) compileCall(name string, args []ast.Expr) (ir.Value, error) {
	vals, err := c.compileArgs(args)
	if err != nil {
		return ir.Value{}, err
	}
	if r, ok := c.scope.FindFunction(name); ok {
		return c.builder.Call(r, vals), nil
	}
	if in, ok := c.intrinsics.Lookup(name); ok {
		return c.builder.CallIntrinsic(in, vals), nil
	}
	return ir.Value{}, &CompileError{Kind: UnknownOperator, Name: name}
}
