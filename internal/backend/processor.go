package backend

import (
	"context"
	"strings"

	"github.com/funvibe/lispjit/internal/ast"
	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/pipeline"
)

// ExecutionProcessor implements pipeline.Processor to run a Backend.
// Function definitions are not executed. Variable definitions run the
// unit's initializers; expressions run them and then the entry routine.
type ExecutionProcessor struct {
	Backend Backend
	Context context.Context

	// OnLoaded, if set, sees every program before it runs.
	OnLoaded func(Program)
}

// NewExecutionProcessor creates a new pipeline step for the given backend
func NewExecutionProcessor(b Backend) *ExecutionProcessor {
	return &ExecutionProcessor{Backend: b}
}

func (p *ExecutionProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// If previous steps failed, don't run execution
	if ctx.Unit == nil || ctx.Entry == nil || ctx.Failed() {
		return ctx
	}
	if ctx.Form == ast.FormFunction {
		return ctx
	}

	runCtx := p.Context
	if runCtx == nil {
		runCtx = context.Background()
	}

	prog, err := p.Backend.Load(ctx.Unit)
	if err != nil {
		p.handleError(ctx, err)
		return ctx
	}
	if p.OnLoaded != nil {
		p.OnLoaded(prog)
	}

	values, err := prog.Init(runCtx)
	if err != nil {
		p.handleError(ctx, err)
		return ctx
	}

	switch ctx.Form {
	case ast.FormVariable:
		for i, r := range ctx.Unit.Initializers() {
			if r == ctx.Entry && i < len(values) {
				ctx.Value = values[i]
				ctx.HasValue = true
			}
		}
	case ast.FormExpression:
		entry, err := prog.Lookup(ctx.Entry.Name)
		if err != nil {
			p.handleError(ctx, err)
			return ctx
		}
		v, err := entry.Call(runCtx)
		if err != nil {
			p.handleError(ctx, err)
			return ctx
		}
		ctx.Value = v
		ctx.HasValue = true
	}
	return ctx
}

func (p *ExecutionProcessor) handleError(ctx *pipeline.PipelineContext, err error) {
	d := diagnostics.Wrap(diagnostics.ErrR001, ctx.SourceCode, err)
	d.Message = strings.TrimPrefix(d.Message, "runtime error: ")
	ctx.AddError(d)
}
