// Package symbols maps source names to the storage slots and routines of the
// compilation unit being built.
package symbols

import "github.com/funvibe/lispjit/internal/ir"

type SymbolKind int

type ScopeType int

const (
	ScopeGlobal   ScopeType = iota // Unit top level, rebuilt by replay
	ScopeFunction                  // Parameters of one routine
)

const (
	VariableSymbol SymbolKind = iota
	FunctionSymbol
)

func (k SymbolKind) String() string {
	switch k {
	case VariableSymbol:
		return "variable"
	case FunctionSymbol:
		return "function"
	default:
		return "unknown"
	}
}

// Symbol is one binding. Slot is set for variables, Routine for functions.
type Symbol struct {
	Name    string
	Kind    SymbolKind
	Slot    *ir.Slot
	Routine *ir.Routine
}

// SymbolTable is a single scope. Names are unique within a scope: binding a
// name again replaces the previous entry whatever its kind.
type SymbolTable struct {
	store     map[string]Symbol
	order     []string
	outer     *SymbolTable
	scopeType ScopeType
}
