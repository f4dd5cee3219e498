package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/compiler"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/ir"
)

func newSessions() []*Session {
	return []*Session{New("vm", backend.NewVM(0)), New("closure", backend.NewClosure(0))}
}

func mustEval(t *testing.T, s *Session, src string) *Result {
	t.Helper()
	res, err := s.Eval(context.Background(), src)
	if err != nil {
		t.Fatalf("Eval(%q): %v", src, err)
	}
	return res
}

func expectValue(t *testing.T, s *Session, src string, want float64) {
	t.Helper()
	res := mustEval(t, s, src)
	if !res.HasValue || math.Abs(res.Value-want) > 1e-12 {
		t.Errorf("Eval(%q) = %v (has=%v), want %v", src, res.Value, res.HasValue, want)
	}
}

func expectError(t *testing.T, s *Session, src string, code diagnostics.ErrorCode) *diagnostics.DiagnosticError {
	t.Helper()
	_, err := s.Eval(context.Background(), src)
	var d *diagnostics.DiagnosticError
	if !errors.As(err, &d) {
		t.Fatalf("Eval(%q) error = %v, want a diagnostic", src, err)
	}
	if d.Code != code {
		t.Fatalf("Eval(%q) code = %s (%s), want %s", src, d.Code, d.Message, code)
	}
	return d
}

func TestVariadicFolds(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"(+ 1 2 3)", 6},
		{"(* 2 3 4)", 24},
		{"(- 10 2 3)", 5},
		{"(/ 12 2 2)", 3},
		{"(+ 1.5 2.5 3)", 7},
		{"(* 1.5 2 3)", 9},
		{"(- 5.5 2.5 1)", 2},
		{"(/ 6.0 2 1.5)", 2},
		{"(+ 1 (* 2 3))", 7},
		{"(* (- 5 2) (+ 2 3))", 15},
		{"(- (/ 24 2) (* 2 3 1))", 6},
		{"(+ 5)", 5},
		{"(+ 3.2 4.5)", 7.7},
	}
	for _, s := range newSessions() {
		for _, tt := range tests {
			t.Run(s.ID+"/"+tt.input, func(t *testing.T) {
				expectValue(t, s, tt.input, tt.want)
			})
		}
		if n := len(s.Records()); n != 0 {
			t.Errorf("%s: expressions must not be recorded, got %d records", s.ID, n)
		}
	}
}

func TestDefinitionSurvivesLaterInputs(t *testing.T) {
	for _, s := range newSessions() {
		t.Run(s.ID, func(t *testing.T) {
			res := mustEval(t, s, "(define (square x) (* x x))")
			if res.Form != ast.FormFunction || res.String() != "defined square/1" || res.HasValue {
				t.Errorf("function result = %+v (%s)", res, res)
			}
			expectValue(t, s, "(square 5)", 25)

			mustEval(t, s, "(define a 1)")
			mustEval(t, s, "(define (cube x) (* x (square x)))")
			mustEval(t, s, "(define b (cube 2))")
			expectValue(t, s, "(square 5)", 25)
			expectValue(t, s, "(+ a b (cube 3))", 36)
		})
	}
}

func TestRedefinitionOverwrites(t *testing.T) {
	for _, s := range newSessions() {
		t.Run(s.ID, func(t *testing.T) {
			res := mustEval(t, s, "(define x 10)")
			if res.Form != ast.FormVariable || res.String() != "x = 10" {
				t.Errorf("variable result = %s", res)
			}
			mustEval(t, s, "(define x 32)")
			expectValue(t, s, "(+ x 0)", 32)

			recs := s.Records()
			if len(recs) != 2 || recs[0].Source != "(define x 10)" || recs[1].Source != "(define x 32)" {
				t.Fatalf("records = %+v", recs)
			}
			if recs[0].Seq != 1 || recs[1].Seq != 2 {
				t.Errorf("sequence numbers = %d, %d", recs[0].Seq, recs[1].Seq)
			}

			mustEval(t, s, "(define (f) 1)")
			mustEval(t, s, "(define (f) 2)")
			expectValue(t, s, "(f)", 2)
		})
	}
}

func TestVariableMayReferToItself(t *testing.T) {
	s := New("t", backend.NewVM(0))
	mustEval(t, s, "(define n 1)")
	mustEval(t, s, "(define n (* n 2))")
	mustEval(t, s, "(define n (* n 2))")
	expectValue(t, s, "n", 4)
}

func TestErrorsKeepSessionAlive(t *testing.T) {
	for _, s := range newSessions() {
		t.Run(s.ID, func(t *testing.T) {
			mustEval(t, s, "(define (square x) (* x x))")

			d := expectError(t, s, "(+ y 1)", diagnostics.ErrC005)
			if !strings.Contains(d.Message, "y") {
				t.Errorf("message %q does not name y", d.Message)
			}
			expectError(t, s, "(frobnicate 1)", diagnostics.ErrC006)
			expectError(t, s, "(define z (+ q 1))", diagnostics.ErrC005)
			expectError(t, s, "(define (bad x x) x)", diagnostics.ErrC004)
			expectError(t, s, "(square 1 2)", diagnostics.ErrC007)
			expectError(t, s, "(+ 1", diagnostics.ErrP001)
			expectError(t, s, "", diagnostics.ErrP001)
			expectError(t, s, "()", diagnostics.ErrC001)

			if n := len(s.Records()); n != 1 {
				t.Errorf("failed inputs were recorded: %d records", n)
			}
			expectValue(t, s, "(square 6)", 36)
			if _, err := s.Eval(context.Background(), "z"); err == nil {
				t.Errorf("z must stay undefined")
			}
		})
	}
}

func TestRuntimeFailureIsNotRecorded(t *testing.T) {
	s := New("t", backend.NewVM(32))
	mustEval(t, s, "(define (spin n) (spin n))")
	d := expectError(t, s, "(define v (spin 1))", diagnostics.ErrR001)
	if !strings.Contains(d.Message, "stack overflow") {
		t.Errorf("message = %q", d.Message)
	}
	if n := len(s.Records()); n != 1 {
		t.Errorf("records = %d, want only the function", n)
	}
	expectError(t, s, "v", diagnostics.ErrC005)
}

func TestInvalidRedefinitionKeepsOldFunction(t *testing.T) {
	s := New("t", backend.NewVM(0))
	mustEval(t, s, "(define (f x) (* x 2))")
	expectError(t, s, "(define (f x y) (f x))", diagnostics.ErrC007)
	expectValue(t, s, "(f 4)", 8)
}

func TestReplayIsIdempotent(t *testing.T) {
	s := New("t", backend.NewVM(0))
	for _, src := range []string{"(define a 1)", "(define (f x) (+ x a))", "(define a 5)", "(define (g) (f a))"} {
		mustEval(t, s, src)
	}

	replayed := func() *ir.Unit {
		c := compiler.New(ir.NewUnit("u"), nil)
		if err := s.replay(c); err != nil {
			t.Fatalf("replay: %v", err)
		}
		return c.Unit()
	}
	u1, u2 := replayed(), replayed()

	names := func(u *ir.Unit) []string {
		var out []string
		for _, r := range u.Routines() {
			out = append(out, r.Name)
		}
		for _, g := range u.Globals() {
			out = append(out, g.String())
		}
		return out
	}
	n1, n2 := names(u1), names(u2)
	if strings.Join(n1, ",") != strings.Join(n2, ",") {
		t.Errorf("replays differ:\n%v\n%v", n1, n2)
	}
	if u1.String() != u2.String() {
		t.Errorf("unit dumps differ")
	}
	if u1.Globals()[0] == u2.Globals()[0] {
		t.Errorf("replays must allocate distinct slots")
	}
	// f captured the first a at compile time.
	expectValue(t, s, "(g)", 6)
}

func TestCorruptHistoryBreaksSession(t *testing.T) {
	s := New("t", backend.NewVM(0))
	mustEval(t, s, "(define (f) 1)")

	// Simulate history that no longer compiles.
	s.records = append(s.records, Record{Seq: 2, Source: "(define x (nope))", Expr: ast.List{
		ast.Symbol("define"), ast.Symbol("x"), ast.List{ast.Symbol("nope")},
	}, Form: ast.FormVariable, Name: "x"})

	d := expectError(t, s, "(f)", diagnostics.ErrS001)
	if !errors.Is(d, ErrCorruptHistory) {
		t.Errorf("error does not wrap ErrCorruptHistory: %v", d)
	}
	if !errors.Is(s.Broken(), ErrCorruptHistory) {
		t.Errorf("session not marked broken")
	}
	expectError(t, s, "1", diagnostics.ErrS001)
}

func TestHooks(t *testing.T) {
	s := New("t", backend.NewVM(0))
	var parsed []string
	var units, loaded int
	s.OnParsed = func(e ast.Expr) { parsed = append(parsed, e.String()) }
	s.OnCompiled = func(u *ir.Unit) { units++ }
	s.OnLoaded = func(backend.Program) { loaded++ }

	mustEval(t, s, "(define (f x) x)")
	mustEval(t, s, "(f  2)")
	expectError(t, s, "(g 1)", diagnostics.ErrC006)

	if len(parsed) != 3 || parsed[1] != "(f 2)" {
		t.Errorf("parsed = %v", parsed)
	}
	if units != 2 {
		t.Errorf("OnCompiled ran %d times, want 2", units)
	}
	if loaded != 1 {
		t.Errorf("OnLoaded ran %d times, want 1 (functions are not executed)", loaded)
	}
}

type memRecorder struct {
	mu   sync.Mutex
	recs []Record
	fail bool
}

func (m *memRecorder) AppendRecord(ctx context.Context, id string, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.recs = append(m.recs, rec)
	return nil
}

func TestRecorderAndRestore(t *testing.T) {
	rec := &memRecorder{}
	s := New("t", backend.NewVM(0))
	s.Recorder = rec
	mustEval(t, s, "(define k 4)")
	mustEval(t, s, "(define (f x) (* x k))")
	mustEval(t, s, "(f 2)")
	if len(rec.recs) != 2 {
		t.Fatalf("recorder got %d records", len(rec.recs))
	}

	var sources []string
	for _, r := range rec.recs {
		sources = append(sources, r.Source)
	}
	restored := New("t2", backend.NewClosure(0))
	if err := restored.Restore(context.Background(), sources); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	expectValue(t, restored, "(f 3)", 12)
	if err := restored.Restore(context.Background(), sources); err == nil {
		t.Errorf("restoring twice should fail")
	}

	rec.fail = true
	mustEval(t, s, "(define j 1)")
	if n := len(s.Records()); n != 3 {
		t.Errorf("persistence failure must not reject the definition: %d records", n)
	}
}

func TestRestoreRejectsBadHistory(t *testing.T) {
	tests := [][]string{
		{"(+ 1 2)"},
		{"(define (f) (g))"},
		{"(define x"},
		{"(define (f n) (f n))", "(define x (f 1))"},
	}
	for _, sources := range tests {
		s := New("t", backend.NewVM(0))
		err := s.Restore(context.Background(), sources)
		if !errors.Is(err, ErrCorruptHistory) {
			t.Errorf("Restore(%q) = %v, want ErrCorruptHistory", sources, err)
		}
		if len(s.Records()) != 0 {
			t.Errorf("failed restore left records behind")
		}
	}
}

func TestConcurrentEvalIsSerialized(t *testing.T) {
	s := New("t", backend.NewVM(0))
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Eval(context.Background(), "(define (id x) x)"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	recs := s.Records()
	for i, r := range recs {
		if r.Seq != i+1 {
			t.Errorf("record %d has seq %d", i, r.Seq)
		}
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{25, "25"},
		{0.5, "0.5"},
		{-3.14, "-3.14"},
		{math.Inf(1), "+Inf"},
		{math.Inf(-1), "-Inf"},
		{math.NaN(), "NaN"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v); got != tt.want {
			t.Errorf("FormatValue(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestEvalOnce(t *testing.T) {
	got, err := EvalOnce("(/ (* (- 8.0 2.0) (+ 1.5 2.5)) 10.0)")
	if err != nil || math.Abs(got-2.4) > 1e-12 {
		t.Errorf("EvalOnce = %v, %v", got, err)
	}
}

func TestGeneratedRoutinesCannotBeShadowed(t *testing.T) {
	for _, s := range newSessions() {
		t.Run(s.ID, func(t *testing.T) {
			expectValue(t, s, "(+ 1 (define (__anon_expr) 7))", 1)
			expectValue(t, s, "(+ 1 (define (anon_expr) 7))", 1)

			res := mustEval(t, s, "(define v (+ 2 (define (__init.0) 9) (define (init.0) 9)))")
			if res.Value != 2 {
				t.Errorf("v = %v, want 2", res.Value)
			}
			expectValue(t, s, "v", 2)

			for _, name := range []string{config.AnonRoutineName, fmt.Sprintf(config.InitializerNameFormat, 0)} {
				expectError(t, s, "("+name+")", diagnostics.ErrP001)
			}
		})
	}
}
