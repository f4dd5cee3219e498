package pipeline

import (
	"testing"

	"github.com/funvibe/lispjit/internal/diagnostics"
)

func TestRunVisitsEveryStage(t *testing.T) {
	var order []string
	stage := func(name string, fail bool) Processor {
		return ProcessorFunc(func(ctx *PipelineContext) *PipelineContext {
			order = append(order, name)
			if fail {
				ctx.AddError(diagnostics.NewError(diagnostics.ErrP001, "", name+" failed"))
			}
			return ctx
		})
	}

	ctx := New(stage("a", false), stage("b", true), stage("c", false)).Run(NewPipelineContext("(+ 1 2)"))

	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Fatalf("stages ran as %v", order)
	}
	if !ctx.Failed() {
		t.Fatalf("expected the context to carry the error")
	}
	if got := ctx.Errors[0].Input; got != "(+ 1 2)" {
		t.Errorf("error input = %q, want the source text", got)
	}
}
