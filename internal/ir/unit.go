package ir

import (
	"fmt"

	"github.com/funvibe/lispjit/internal/config"
)

// SlotKind is the storage class of a slot.
type SlotKind uint8

const (
	// SlotGlobal lives for the whole unit and is visible from every routine.
	SlotGlobal SlotKind = iota
	// SlotLocal lives in one activation of its owning routine.
	SlotLocal
)

// Slot is a storage location holding one double.
type Slot struct {
	Name  string
	Kind  SlotKind
	Index int

	owner *Routine
	unit  *Unit
}

// Owner returns the routine a local slot belongs to, nil for globals.
func (s *Slot) Owner() *Routine {
	return s.owner
}

func (s *Slot) String() string {
	if s.Kind == SlotGlobal {
		return fmt.Sprintf("@%s.%d", s.Name, s.Index)
	}
	return fmt.Sprintf("%%%s.addr%d", s.Name, s.Index)
}

// Routine is a named function over doubles.
type Routine struct {
	Name   string
	Params []string
	Instrs []Instr
	Locals []*Slot

	unit      *Unit
	numValues int
	deleted   bool
	init      bool
}

// Arity returns the number of parameters.
func (r *Routine) Arity() int {
	return len(r.Params)
}

// NumValues returns how many virtual registers the routine defines.
func (r *Routine) NumValues() int {
	return r.numValues
}

// Unit returns the unit the routine was created in.
func (r *Routine) Unit() *Unit {
	return r.unit
}

// Deleted reports whether the routine was removed from its unit.
func (r *Routine) Deleted() bool {
	return r.deleted
}

// IsInitializer reports whether the routine computes a global's initial value.
func (r *Routine) IsInitializer() bool {
	return r.init
}

func (r *Routine) newValue() Value {
	v := Value{ID: r.numValues, owner: r}
	r.numValues++
	return v
}

// Unit is an isolated container of routines and globals, the counterpart of
// a translation unit. A unit is compiled, executed once and discarded.
type Unit struct {
	Name string

	routines []*Routine
	byName   map[string]*Routine
	globals  []*Slot
	inits    []*Routine
}

// NewUnit creates an empty unit.
func NewUnit(name string) *Unit {
	return &Unit{
		Name:   name,
		byName: make(map[string]*Routine),
	}
}

// NewRoutine adds a routine with the given parameter names. A routine that
// reuses an existing name takes over that name; the older routine stays in
// the unit for callers that already reference it.
func (u *Unit) NewRoutine(name string, params []string) *Routine {
	r := &Routine{
		Name:   name,
		Params: append([]string(nil), params...),
		unit:   u,
	}
	u.routines = append(u.routines, r)
	u.byName[name] = r
	return r
}

// NewInitializer adds a zero-argument routine that computes the value of a
// top-level variable. Initializers run in creation order before any other
// routine of the unit is invoked.
func (u *Unit) NewInitializer() *Routine {
	r := u.NewRoutine(fmt.Sprintf(config.InitializerNameFormat, len(u.inits)), nil)
	r.init = true
	u.inits = append(u.inits, r)
	return r
}

// Routine finds the routine currently holding name.
func (u *Unit) Routine(name string) (*Routine, bool) {
	r, ok := u.byName[name]
	return r, ok
}

// Routines returns the live routines in creation order.
func (u *Unit) Routines() []*Routine {
	out := make([]*Routine, len(u.routines))
	copy(out, u.routines)
	return out
}

// Initializers returns the live initializer routines in creation order.
func (u *Unit) Initializers() []*Routine {
	out := make([]*Routine, len(u.inits))
	copy(out, u.inits)
	return out
}

// DeleteRoutine removes r from the unit. If r held its name, the most recent
// surviving routine of the same name takes it back.
func (u *Unit) DeleteRoutine(r *Routine) {
	if r == nil || r.unit != u || r.deleted {
		return
	}
	r.deleted = true
	u.routines = removeRoutine(u.routines, r)
	u.inits = removeRoutine(u.inits, r)

	if u.byName[r.Name] != r {
		return
	}
	delete(u.byName, r.Name)
	for i := len(u.routines) - 1; i >= 0; i-- {
		if u.routines[i].Name == r.Name {
			u.byName[r.Name] = u.routines[i]
			break
		}
	}
}

func removeRoutine(list []*Routine, r *Routine) []*Routine {
	for i, x := range list {
		if x == r {
			return append(list[:i:i], list[i+1:]...)
		}
	}
	return list
}

// NewGlobal allocates a fresh unit-level slot.
func (u *Unit) NewGlobal(name string) *Slot {
	s := &Slot{Name: name, Kind: SlotGlobal, Index: len(u.globals), unit: u}
	u.globals = append(u.globals, s)
	return s
}

// Globals returns all global slots in allocation order.
func (u *Unit) Globals() []*Slot {
	out := make([]*Slot, len(u.globals))
	copy(out, u.globals)
	return out
}
