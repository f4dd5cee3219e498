// Package session drives incremental evaluation: every input is compiled
// into a fresh unit after replaying the definitions accepted so far.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/backend"
	"github.com/funvibe/lispjit/internal/compiler"
	"github.com/funvibe/lispjit/internal/config"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/intrinsics"
	"github.com/funvibe/lispjit/internal/ir"
	"github.com/funvibe/lispjit/internal/pipeline"
	"github.com/funvibe/lispjit/internal/reader"
)

// ErrCorruptHistory means a recorded definition no longer compiles. The
// session cannot continue once this happens.
var ErrCorruptHistory = errors.New("corrupt history")

// Session owns the definition history of one user.
type Session struct {
	ID string

	// Display hooks. OnParsed sees the syntax tree of every readable input,
	// OnCompiled the unit after the input compiled, OnLoaded the program
	// handed to the backend.
	OnParsed   func(ast.Expr)
	OnCompiled func(*ir.Unit)
	OnLoaded   func(backend.Program)

	// Recorder, if set, receives every accepted definition.
	Recorder Recorder
	Logger   *log.Logger

	mu         sync.Mutex
	backend    backend.Backend
	intrinsics *intrinsics.Registry
	records    []Record
	inputs     int
	broken     error
}

// New creates an empty session running on b.
func New(id string, b backend.Backend) *Session {
	return &Session{
		ID:         id,
		backend:    b,
		intrinsics: intrinsics.Default(),
	}
}

// Backend returns the backend the session executes on.
func (s *Session) Backend() backend.Backend {
	return s.backend
}

// Intrinsics returns the host routines visible to this session's code.
// Routines registered here apply from the next input on.
func (s *Session) Intrinsics() *intrinsics.Registry {
	return s.intrinsics
}

// Records returns a copy of the accepted definitions in order.
func (s *Session) Records() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Broken returns the error that stopped the session, if any.
func (s *Session) Broken() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.broken
}

// Eval reads, compiles and runs one input. Errors are *diagnostics.DiagnosticError;
// a failed input leaves the history untouched.
func (s *Session) Eval(ctx context.Context, source string) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.broken != nil {
		return nil, diagnostics.Wrap(diagnostics.ErrS001, source, s.broken)
	}

	s.inputs++
	c := compiler.New(ir.NewUnit(fmt.Sprintf(config.UnitNameFormat, s.inputs)), s.intrinsics)
	if err := s.replay(c); err != nil {
		s.broken = err
		if s.Logger != nil {
			s.Logger.Printf("session %s: %v", s.ID, err)
		}
		return nil, diagnostics.Wrap(diagnostics.ErrS001, source, err)
	}

	exec := backend.NewExecutionProcessor(s.backend)
	exec.Context = ctx
	exec.OnLoaded = s.OnLoaded

	pctx := pipeline.New(
		&reader.ReaderProcessor{},
		pipeline.ProcessorFunc(s.afterRead),
		compiler.NewProcessor(c),
		pipeline.ProcessorFunc(s.afterCompile),
		exec,
	).Run(pipeline.NewPipelineContext(source))

	if pctx.Failed() {
		return nil, pctx.Errors[0]
	}

	res := &Result{
		Form:     pctx.Form,
		Name:     pctx.Name,
		Value:    pctx.Value,
		HasValue: pctx.HasValue,
	}
	if pctx.Form == ast.FormFunction {
		res.Arity = pctx.Entry.Arity()
	}
	if pctx.Form != ast.FormExpression {
		s.accept(ctx, Record{
			Source: source,
			Expr:   pctx.Expr,
			Form:   pctx.Form,
			Name:   pctx.Name,
		})
	}
	return res, nil
}

func (s *Session) afterRead(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if s.OnParsed != nil && ctx.Expr != nil {
		s.OnParsed(ctx.Expr)
	}
	return ctx
}

func (s *Session) afterCompile(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if s.OnCompiled != nil && ctx.Entry != nil && !ctx.Failed() {
		s.OnCompiled(ctx.Unit)
	}
	return ctx
}

// replay compiles every record into c's unit in acceptance order.
func (s *Session) replay(c *compiler.Compiler) error {
	for _, rec := range s.records {
		if _, err := c.CompileTopLevel(rec.Expr); err != nil {
			return fmt.Errorf("%w: record %d %q: %v", ErrCorruptHistory, rec.Seq, rec.Source, err)
		}
	}
	return nil
}

func (s *Session) accept(ctx context.Context, rec Record) {
	rec.Seq = len(s.records) + 1
	s.records = append(s.records, rec)
	if s.Recorder == nil {
		return
	}
	if err := s.Recorder.AppendRecord(ctx, s.ID, rec); err != nil && s.Logger != nil {
		s.Logger.Printf("session %s: persisting record %d: %v", s.ID, rec.Seq, err)
	}
}

// Restore loads previously accepted definitions into an empty session.
// Every source must read as a definition and the whole list must compile
// and initialize; otherwise ErrCorruptHistory is returned and the session
// is left unchanged.
func (s *Session) Restore(ctx context.Context, sources []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) > 0 {
		return errors.New("restore into a session that already has definitions")
	}

	c := compiler.New(ir.NewUnit("restore"), s.intrinsics)
	records := make([]Record, 0, len(sources))
	for i, src := range sources {
		expr, err := reader.Read(src)
		if err != nil {
			return fmt.Errorf("%w: record %d: %v", ErrCorruptHistory, i+1, err)
		}
		form := ast.Classify(expr)
		if form == ast.FormExpression {
			return fmt.Errorf("%w: record %d %q is not a definition", ErrCorruptHistory, i+1, src)
		}
		out, err := c.CompileTopLevel(expr)
		if err != nil {
			return fmt.Errorf("%w: record %d %q: %v", ErrCorruptHistory, i+1, src, err)
		}
		records = append(records, Record{Seq: i + 1, Source: src, Expr: expr, Form: form, Name: out.Name})
	}

	prog, err := s.backend.Load(c.Unit())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}
	if _, err := prog.Init(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrCorruptHistory, err)
	}

	s.records = records
	return nil
}

// EvalOnce evaluates a single expression in a throwaway session on the VM.
func EvalOnce(source string) (float64, error) {
	res, err := New("", backend.NewVM(0)).Eval(context.Background(), source)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}
