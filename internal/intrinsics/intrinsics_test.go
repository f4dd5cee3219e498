package intrinsics

import (
	"math"
	"strings"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := Default()

	tests := []struct {
		name string
		args []float64
		want float64
	}{
		{"llvm.fabs", []float64{-2.5}, 2.5},
		{"fabs", []float64{-2.5}, 2.5},
		{"llvm.sqrt", []float64{16}, 4},
		{"llvm.pow", []float64{2, 10}, 1024},
		{"llvm.minnum", []float64{3, -1}, -1},
		{"maxnum", []float64{3, -1}, 3},
		{"llvm.floor", []float64{2.7}, 2},
		{"llvm.fma", []float64{2, 3, 4}, 10},
		{"llvm.copysign", []float64{3, -1}, -3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, ok := r.Lookup(tt.name)
			if !ok {
				t.Fatalf("intrinsic %q not registered", tt.name)
			}
			if in.Arity != len(tt.args) {
				t.Fatalf("arity mismatch: got=%d, want=%d", in.Arity, len(tt.args))
			}
			if got := in.Call(tt.args); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("%s%v = %v, want %v", tt.name, tt.args, got, tt.want)
			}
		})
	}
}

func TestLookupMissing(t *testing.T) {
	if _, ok := Default().Lookup("llvm.nope"); ok {
		t.Fatal("expected lookup of unknown intrinsic to fail")
	}
}

func TestNamesSortedAndPaired(t *testing.T) {
	names := Default().Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("names not sorted at %d: %q >= %q", i, names[i-1], names[i])
		}
	}
	seen := make(map[string]bool)
	for _, n := range names {
		seen[n] = true
	}
	for _, n := range names {
		if strings.HasPrefix(n, Prefix) && !seen[n[len(Prefix):]] {
			t.Errorf("canonical %q has no bare alias", n)
		}
	}
}
