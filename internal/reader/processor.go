package reader

import (
	"errors"

	"github.com/funvibe/lispjit/internal/diagnostics"
	"github.com/funvibe/lispjit/internal/pipeline"
)

// ReaderProcessor parses ctx.SourceCode into ctx.Expr.
type ReaderProcessor struct{}

func (rp *ReaderProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	expr, err := Read(ctx.SourceCode)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			ctx.AddError(&diagnostics.DiagnosticError{
				Code:    diagnostics.ErrP001,
				Input:   ctx.SourceCode,
				Message: pe.Msg,
				Cause:   err,
			})
		} else {
			ctx.AddError(diagnostics.Wrap(diagnostics.ErrP001, ctx.SourceCode, err))
		}
		return ctx
	}
	ctx.Expr = expr
	return ctx
}
