package symbols

import "github.com/funvibe/lispjit/internal/ir"

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		store:     make(map[string]Symbol),
		scopeType: ScopeGlobal,
	}
}

// NewEnclosedSymbolTable creates a scope that shadows outer.
func NewEnclosedSymbolTable(outer *SymbolTable, scopeType ScopeType) *SymbolTable {
	st := NewSymbolTable()
	st.outer = outer
	st.scopeType = scopeType
	return st
}

// Outer returns the enclosing scope, nil at the top.
func (s *SymbolTable) Outer() *SymbolTable {
	return s.outer
}

// IsGlobalScope returns true if this is the root scope of a unit.
func (s *SymbolTable) IsGlobalScope() bool {
	return s.scopeType == ScopeGlobal
}

// IsFunctionScope returns true if this scope holds routine parameters.
func (s *SymbolTable) IsFunctionScope() bool {
	return s.scopeType == ScopeFunction
}

func (s *SymbolTable) put(sym Symbol) {
	if _, exists := s.store[sym.Name]; !exists {
		s.order = append(s.order, sym.Name)
	}
	s.store[sym.Name] = sym
}

// DefineVariable binds name to a storage slot in this scope.
func (s *SymbolTable) DefineVariable(name string, slot *ir.Slot) {
	s.put(Symbol{Name: name, Kind: VariableSymbol, Slot: slot})
}

// DefineFunction binds name to a routine in this scope.
func (s *SymbolTable) DefineFunction(name string, r *ir.Routine) {
	s.put(Symbol{Name: name, Kind: FunctionSymbol, Routine: r})
}

// Restore puts back a binding captured with FindLocally, or removes name
// if it was not bound before.
func (s *SymbolTable) Restore(name string, prev Symbol, existed bool) {
	if existed {
		s.store[name] = prev
		return
	}
	delete(s.store, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
}

// FindWithScope returns the nearest binding of name and the scope holding it.
func (s *SymbolTable) FindWithScope(name string) (Symbol, *SymbolTable, bool) {
	for scope := s; scope != nil; scope = scope.outer {
		if sym, ok := scope.store[name]; ok {
			return sym, scope, true
		}
	}
	return Symbol{}, nil, false
}

func (s *SymbolTable) Find(name string) (Symbol, bool) {
	sym, _, ok := s.FindWithScope(name)
	return sym, ok
}

// FindLocally looks only at this scope.
func (s *SymbolTable) FindLocally(name string) (Symbol, bool) {
	sym, ok := s.store[name]
	return sym, ok
}

// FindVariable returns the slot of name if its nearest binding is a variable.
func (s *SymbolTable) FindVariable(name string) (*ir.Slot, bool) {
	sym, ok := s.Find(name)
	if !ok || sym.Kind != VariableSymbol {
		return nil, false
	}
	return sym.Slot, true
}

// FindFunction returns the routine of name if its nearest binding is a function.
func (s *SymbolTable) FindFunction(name string) (*ir.Routine, bool) {
	sym, ok := s.Find(name)
	if !ok || sym.Kind != FunctionSymbol {
		return nil, false
	}
	return sym.Routine, true
}

// Names returns the names bound in this scope in first-definition order.
func (s *SymbolTable) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}
