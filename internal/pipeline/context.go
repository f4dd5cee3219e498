package pipeline

import (
	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/ir"
)

// Processor is one stage of the pipeline.
type Processor interface {
	Process(ctx *PipelineContext) *PipelineContext
}

// ProcessorFunc adapts a plain function to Processor.
type ProcessorFunc func(ctx *PipelineContext) *PipelineContext

func (f ProcessorFunc) Process(ctx *PipelineContext) *PipelineContext {
	return f(ctx)
}

// PipelineContext carries one input from source text to its value.
type PipelineContext struct {
	SourceCode string

	// Set by the reader.
	Expr ast.Expr

	// Set by the compiler.
	Form  ast.FormKind
	Name  string
	Unit  *ir.Unit
	Entry *ir.Routine

	// Set by execution.
	Value    float64
	HasValue bool

	Errors []*diagnostics.DiagnosticError
}

func NewPipelineContext(source string) *PipelineContext {
	return &PipelineContext{SourceCode: source}
}

// Failed reports whether any stage recorded an error.
func (ctx *PipelineContext) Failed() bool {
	return len(ctx.Errors) > 0
}

// AddError records a diagnostic for the current input.
func (ctx *PipelineContext) AddError(err *diagnostics.DiagnosticError) {
	if err.Input == "" {
		err.Input = ctx.SourceCode
	}
	ctx.Errors = append(ctx.Errors, err)
}
