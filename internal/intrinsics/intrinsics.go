// Package intrinsics provides the host math routines that compiled code
// can call by name when no user-defined function matches.
package intrinsics

import (
	"math"
	"sort"
)

// Prefix is the namespace used for the canonical intrinsic names.
const Prefix = "llvm."

// Intrinsic is a host routine over doubles with a fixed arity.
type Intrinsic struct {
	Name  string
	Arity int
	Fn    func(args []float64) float64
}

// Call invokes the routine. The caller is responsible for the argument count.
func (in *Intrinsic) Call(args []float64) float64 {
	return in.Fn(args)
}

// Registry maps names to intrinsics.
type Registry struct {
	byName map[string]*Intrinsic
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Intrinsic)}
}

// Register adds an intrinsic under its name, replacing any previous entry.
func (r *Registry) Register(in *Intrinsic) {
	r.byName[in.Name] = in
}

// Lookup finds an intrinsic by name.
func (r *Registry) Lookup(name string) (*Intrinsic, bool) {
	in, ok := r.byName[name]
	return in, ok
}

// Names returns all registered names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unary(f func(float64) float64) (int, func([]float64) float64) {
	return 1, func(a []float64) float64 { return f(a[0]) }
}

func binary(f func(float64, float64) float64) (int, func([]float64) float64) {
	return 2, func(a []float64) float64 { return f(a[0], a[1]) }
}

// Default returns a registry with the standard math intrinsics.
// Each one is available as "llvm.<name>" and as the bare "<name>".
func Default() *Registry {
	r := NewRegistry()

	add := func(name string, arity int, fn func([]float64) float64) {
		r.Register(&Intrinsic{Name: Prefix + name, Arity: arity, Fn: fn})
		r.Register(&Intrinsic{Name: name, Arity: arity, Fn: fn})
	}

	for name, f := range map[string]func(float64) float64{
		"fabs":  math.Abs,
		"sqrt":  math.Sqrt,
		"sin":   math.Sin,
		"cos":   math.Cos,
		"exp":   math.Exp,
		"exp2":  math.Exp2,
		"log":   math.Log,
		"log2":  math.Log2,
		"log10": math.Log10,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"trunc": math.Trunc,
		"round": math.Round,
	} {
		arity, fn := unary(f)
		add(name, arity, fn)
	}

	for name, f := range map[string]func(float64, float64) float64{
		"pow":      math.Pow,
		"minnum":   math.Min,
		"maxnum":   math.Max,
		"copysign": math.Copysign,
	} {
		arity, fn := binary(f)
		add(name, arity, fn)
	}

	add("fma", 3, func(a []float64) float64 { return math.FMA(a[0], a[1], a[2]) })

	return r
}
