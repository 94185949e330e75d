package trace_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/gt"
)

func TestMultiHandlerFanOut(t *testing.T) {
	rec1 := trace.New()
	rec2 := trace.New()
	multi := trace.Multi(rec1, rec2)

	turnCtx := multi.StartTurn(context.Background(), trace.SpanKindChat)

	llmCtx := multi.StartLLMCall(turnCtx)
	multi.EndLLMCall(llmCtx, &trace.LLMCallData{InputTokens: 10}, nil)

	multi.AddEvent(turnCtx, "recall", nil)
	multi.EndTurn(turnCtx, nil)

	for _, rec := range []*trace.Recorder{rec1, rec2} {
		tr := rec.Trace()
		gt.Value(t, tr).NotNil()
		gt.A(t, tr.RootSpan.Children).Length(2)
	}

	// Each recorder owns its own spans.
	gt.NotEqual(t, rec1.Trace().RootSpan.SpanID, rec2.Trace().RootSpan.SpanID)
}

func TestMultiHandlerAction(t *testing.T) {
	rec1 := trace.New()
	rec2 := trace.New()
	multi := trace.Multi(rec1, rec2)

	turnCtx := multi.StartTurn(context.Background(), trace.SpanKindPlan)
	actionCtx := multi.StartAction(turnCtx, trace.Action{ID: "a1", Type: "MEMORIZE"})
	multi.EndAction(actionCtx, true, "", nil)
	multi.EndTurn(turnCtx, nil)

	for _, rec := range []*trace.Recorder{rec1, rec2} {
		children := rec.Trace().RootSpan.Children
		gt.A(t, children).Length(1)
		gt.Equal(t, children[0].Kind, trace.SpanKindAction)
		gt.Equal(t, children[0].Action.ID, "a1")
		gt.True(t, children[0].Action.Applied)
	}
}

type failingRepository struct{}

func (failingRepository) Save(context.Context, *trace.Trace) error {
	return errors.New("save failed")
}

func TestMultiHandlerFinishJoinsErrors(t *testing.T) {
	ok := trace.New()
	failing := trace.New(trace.WithRepository(failingRepository{}))
	multi := trace.Multi(ok, failing)

	ctx := multi.StartTurn(context.Background(), trace.SpanKindChat)
	multi.EndTurn(ctx, nil)

	err := multi.Finish(ctx)
	gt.Error(t, err)
	gt.S(t, err.Error()).Contains("save failed")
}
