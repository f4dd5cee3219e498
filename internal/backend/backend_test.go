package backend

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/funvibe/lispjit/internal/compiler"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/pipeline"
	"github.com/funvibe/lispjit/internal/reader"
	"github.com/funvibe/lispjit/internal/vm"
)

func backends() []Backend {
	return []Backend{NewVM(0), NewClosure(0)}
}

func compileUnit(t *testing.T, inputs ...string) *ir.Unit {
	t.Helper()
	c := compiler.New(ir.NewUnit("test"), nil)
	for _, src := range inputs {
		expr, err := reader.Read(src)
		if err != nil {
			t.Fatalf("parse error: %s", err)
		}
		if _, err := c.CompileTopLevel(expr); err != nil {
			t.Fatalf("compilation error in %q: %s", src, err)
		}
	}
	return c.Unit()
}

func run(t *testing.T, b Backend, inputs ...string) (float64, error) {
	t.Helper()
	prog, err := b.Load(compileUnit(t, inputs...))
	if err != nil {
		t.Fatalf("%s: load: %v", b.Name(), err)
	}
	if _, err := prog.Init(context.Background()); err != nil {
		return 0, err
	}
	entry, err := prog.Lookup(config.AnonRoutineName)
	if err != nil {
		t.Fatalf("%s: lookup: %v", b.Name(), err)
	}
	return entry.Call(context.Background())
}

func TestBackendsAgree(t *testing.T) {
	tests := []struct {
		name   string
		inputs []string
		want   float64
	}{
		{"literal", []string{"7"}, 7},
		{"fold", []string{"(- 10 2 3)"}, 5},
		{"nested", []string{"(+ (* 2.0 3.0) (- 10.0 4.0))"}, 12},
		{"variadic mix", []string{"(* (- 5 2) (+ 2 3))"}, 15},
		{"function", []string{"(define (square x) (* x x))", "(square 5)"}, 25},
		{"globals", []string{"(define a 2)", "(define b (* a 3))", "(+ a b)"}, 8},
		{"redefined global", []string{"(define a 2)", "(define a (+ a 1))", "a"}, 3},
		{"nested define", []string{"(define (f x) (+ (define y (* x x)) y))", "(f 3)"}, 18},
		{"intrinsics", []string{"(+ (llvm.fabs -2) (floor 2.7) (maxnum 1 3))"}, 7},
		{"functions call functions", []string{
			"(define (sq x) (* x x))",
			"(define (sumsq a b) (+ (sq a) (sq b)))",
			"(sumsq 3 4)"}, 25},
		{"remainder", []string{"(% 10 4)"}, 2},
	}
	for _, tt := range tests {
		for _, b := range backends() {
			t.Run(tt.name+"/"+b.Name(), func(t *testing.T) {
				got, err := run(t, b, tt.inputs...)
				if err != nil {
					t.Fatalf("runtime error: %v", err)
				}
				if math.Abs(got-tt.want) > 1e-12 {
					t.Errorf("got %v, want %v", got, tt.want)
				}
			})
		}
	}
}

func TestBackendsOverflowAlike(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			_, err := run(t, b, "(define (down n) (down (- n 1)))", "(down 10)")
			if !errors.Is(err, vm.ErrStackOverflow) {
				t.Fatalf("expected stack overflow, got %v", err)
			}
			var re *vm.RuntimeError
			if !errors.As(err, &re) {
				t.Fatalf("error is %T", err)
			}
			if len(re.Trace) != vm.MaxFrameCount {
				t.Errorf("trace depth %d, want %d", len(re.Trace), vm.MaxFrameCount)
			}
			if last := re.Trace[len(re.Trace)-1]; last != config.AnonRoutineName {
				t.Errorf("outermost frame %q", last)
			}
		})
	}
}

func TestCustomFrameLimit(t *testing.T) {
	for _, b := range []Backend{NewVM(8), NewClosure(8)} {
		_, err := run(t, b, "(define (down n) (down n))", "(down 1)")
		var re *vm.RuntimeError
		if !errors.As(err, &re) || len(re.Trace) != 8 {
			t.Errorf("%s: expected overflow at depth 8, got %v", b.Name(), err)
		}
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, b := range backends() {
		prog, err := b.Load(compileUnit(t, "(define (f) 1)"))
		if err != nil {
			t.Fatal(err)
		}
		_, err = prog.Lookup("g")
		var ue *UnknownRoutineError
		if !errors.As(err, &ue) || ue.Name != "g" {
			t.Errorf("%s: Lookup(g) = %v", b.Name(), err)
		}
		entry, err := prog.Lookup("f")
		if err != nil || entry.Arity() != 0 || entry.Name() != "f" {
			t.Errorf("%s: Lookup(f) = %v, %v", b.Name(), entry, err)
		}
	}
}

func TestNew(t *testing.T) {
	for _, name := range []string{"", "vm", "closure"} {
		if _, err := New(name, 0); err != nil {
			t.Errorf("New(%q): %v", name, err)
		}
	}
	if _, err := New("llvm", 0); err == nil {
		t.Errorf("New(llvm) should fail")
	}
}

func TestVMProgramDisassembles(t *testing.T) {
	prog, err := NewVM(0).Load(compileUnit(t, "(+ 1 2)"))
	if err != nil {
		t.Fatal(err)
	}
	s, ok := prog.(interface{ String() string })
	if !ok || !strings.Contains(s.String(), "ADD") {
		t.Errorf("vm program should render its bytecode")
	}
}

func evalPipeline(b Backend, src string) *pipeline.PipelineContext {
	c := compiler.New(ir.NewUnit("test"), nil)
	return pipeline.New(
		&reader.ReaderProcessor{},
		compiler.NewProcessor(c),
		NewExecutionProcessor(b),
	).Run(pipeline.NewPipelineContext(src))
}

func TestExecutionProcessor(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.Name(), func(t *testing.T) {
			ctx := evalPipeline(b, "(* 6 7)")
			if ctx.Failed() || !ctx.HasValue || ctx.Value != 42 {
				t.Fatalf("value=%v has=%v errors=%v", ctx.Value, ctx.HasValue, ctx.Errors)
			}

			ctx = evalPipeline(b, "(define x (+ 1 1))")
			if ctx.Failed() || !ctx.HasValue || ctx.Value != 2 {
				t.Fatalf("variable value=%v has=%v errors=%v", ctx.Value, ctx.HasValue, ctx.Errors)
			}

			ctx = evalPipeline(b, "(define (f x) (f x))")
			if ctx.Failed() || ctx.HasValue {
				t.Fatalf("function definitions must not run: %v", ctx.Errors)
			}

			ctx = evalPipeline(b, "(+ 1")
			if len(ctx.Errors) != 1 || ctx.Errors[0].Code != diagnostics.ErrP001 || ctx.HasValue {
				t.Fatalf("expected only a parse error, got %v", ctx.Errors)
			}
		})
	}
}

func TestExecutionProcessorRuntimeError(t *testing.T) {
	c := compiler.New(ir.NewUnit("test"), nil)
	p := pipeline.New(&reader.ReaderProcessor{}, compiler.NewProcessor(c), NewExecutionProcessor(NewClosure(16)))
	if ctx := p.Run(pipeline.NewPipelineContext("(define (f x) (f x))")); ctx.Failed() {
		t.Fatal(ctx.Errors)
	}
	ctx := p.Run(pipeline.NewPipelineContext("(f 1)"))
	if len(ctx.Errors) != 1 || ctx.Errors[0].Code != diagnostics.ErrR001 {
		t.Fatalf("expected R001, got %v", ctx.Errors)
	}
	if !strings.Contains(ctx.Errors[0].Message, "stack overflow") {
		t.Errorf("message = %q", ctx.Errors[0].Message)
	}
}
