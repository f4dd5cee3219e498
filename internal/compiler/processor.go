package compiler

import (
	"errors"

	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/pipeline"
)

// CompilerProcessor compiles ctx.Expr into the unit of its Compiler.
type CompilerProcessor struct {
	Compiler *Compiler
}

func NewProcessor(c *Compiler) *CompilerProcessor {
	return &CompilerProcessor{Compiler: c}
}

func (cp *CompilerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	if ctx.Expr == nil || ctx.Failed() {
		return ctx
	}

	ctx.Unit = cp.Compiler.Unit()
	out, err := cp.Compiler.CompileTopLevel(ctx.Expr)
	if err != nil {
		ctx.AddError(toDiagnostic(ctx.SourceCode, err))
		return ctx
	}
	ctx.Form = out.Form
	ctx.Name = out.Name
	ctx.Entry = out.Routine
	return ctx
}

func toDiagnostic(input string, err error) *diagnostics.DiagnosticError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return diagnostics.Wrap(ce.Code(), input, err)
	}
	return diagnostics.Wrap(diagnostics.ErrC001, input, err)
}
