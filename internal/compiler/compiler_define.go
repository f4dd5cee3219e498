package compiler

import (
	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/symbols"
)

func (c *Compiler) compileDefine(args []ast.Expr) (ir.Value, error) {
	if len(args) != 2 {
		return ir.Value{}, errorf(ArityError, config.DefineFormName, "requires exactly two arguments, got %d", len(args))
	}
	switch target := args[0].(type) {
	case ast.Symbol:
		return c.compileVariable(string(target), args[1])
	case ast.List:
		if _, err := c.compileFunction(target, args[1]); err != nil {
			return ir.Value{}, err
		}
		return c.builder.Const(0), nil
	}
	return ir.Value{}, errorf(InvalidDefineTarget, "", "cannot define %s", args[0])
}

// compileVariable stores the value into a fresh slot. The slot is global
// only at the top of an initializer; anywhere else it is local to the
// routine being built.
func (c *Compiler) compileVariable(name string, value ast.Expr) (ir.Value, error) {
	v, err := c.Compile(value)
	if err != nil {
		return ir.Value{}, err
	}
	var slot *ir.Slot
	if r := c.builder.Routine(); c.scope == c.root && r != nil && r.IsInitializer() {
		slot = c.unit.NewGlobal(name)
	} else {
		slot = c.builder.Alloca(name)
	}
	c.builder.Store(slot, v)
	c.scope.DefineVariable(name, slot)
	return v, nil
}

// compileFunction adds a routine for (name params...) body and binds name in
// the current scope. The binding happens before the body is compiled so the
// body can call itself. On failure the routine is deleted and the previous
// binding comes back.
func (c *Compiler) compileFunction(sig ast.List, body ast.Expr) (*ir.Routine, error) {
	if len(sig) == 0 {
		return nil, errorf(InvalidDefineTarget, "", "missing function name")
	}
	nameSym, ok := sig[0].(ast.Symbol)
	if !ok {
		return nil, errorf(InvalidDefineTarget, "", "function name must be a symbol, got %s", sig[0])
	}
	name := string(nameSym)

	params := make([]string, 0, len(sig)-1)
	seen := make(map[string]bool, len(sig)-1)
	for _, p := range sig[1:] {
		ps, ok := p.(ast.Symbol)
		if !ok {
			return nil, errorf(InvalidParameterList, name, "parameter %s is not a symbol", p)
		}
		if seen[string(ps)] {
			return nil, errorf(InvalidParameterList, name, "duplicate parameter %s", ps)
		}
		seen[string(ps)] = true
		params = append(params, string(ps))
	}

	r := c.unit.NewRoutine(name, params)
	outer := c.scope
	prev, existed := outer.FindLocally(name)
	outer.DefineFunction(name, r)

	fail := func(err error) (*ir.Routine, error) {
		c.unit.DeleteRoutine(r)
		outer.Restore(name, prev, existed)
		return nil, err
	}

	saved := c.builder.Routine()
	c.builder.PositionAt(r)
	inner := symbols.NewEnclosedSymbolTable(outer, symbols.ScopeFunction)
	for i, p := range params {
		slot := c.builder.Alloca(p)
		c.builder.Store(slot, c.builder.Param(i))
		inner.DefineVariable(p, slot)
	}

	c.scope = inner
	v, err := c.Compile(body)
	c.scope = outer
	if err == nil {
		c.builder.Return(v)
	}
	c.builder.PositionAt(saved)

	if err != nil {
		return fail(err)
	}
	if verr := ir.Verify(r); verr != nil {
		return fail(&CompileError{Kind: InvalidFunction, Name: name, Msg: verr.Error()})
	}
	return r, nil
}
