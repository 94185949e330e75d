package trace_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/gt"
)

func TestRecorderContextPropagation(t *testing.T) {
	rec := trace.New()
	ctx := context.Background()

	gt.Value(t, trace.HandlerFrom(ctx)).Nil()

	ctx = trace.WithHandler(ctx, rec)
	gt.Equal[trace.Handler](t, trace.HandlerFrom(ctx), rec)
}

func TestRecorderTurnSpan(t *testing.T) {
	rec := trace.New()
	ctx := rec.StartTurn(context.Background(), trace.SpanKindChat)

	span := trace.CurrentSpanFrom(ctx)
	gt.Value(t, span).NotNil()
	gt.Equal(t, span.Kind, trace.SpanKindChat)
	gt.Equal(t, span.Name, "chat")

	tr := rec.Trace()
	gt.Value(t, tr).NotNil()
	gt.Equal(t, tr.RootSpan, span)
	gt.Equal(t, rec.TraceID(), tr.TraceID)

	rec.EndTurn(ctx, nil)
	gt.Equal(t, span.Status, trace.SpanStatusOK)
	gt.False(t, tr.EndedAt.IsZero())
}

func TestRecorderTurnWithError(t *testing.T) {
	rec := trace.New()
	ctx := rec.StartTurn(context.Background(), trace.SpanKindChat)
	rec.EndTurn(ctx, errors.New("llm unavailable"))

	span := trace.CurrentSpanFrom(ctx)
	gt.Equal(t, span.Status, trace.SpanStatusError)
	gt.Equal(t, span.Error, "llm unavailable")
}

func TestRecorderCustomTraceID(t *testing.T) {
	rec := trace.New(trace.WithTraceID("fixed-id"))
	gt.Equal(t, rec.TraceID(), "fixed-id")

	rec.StartTurn(context.Background(), trace.SpanKindPlan)
	gt.Equal(t, rec.Trace().TraceID, "fixed-id")
}

func TestRecorderLLMCallSpan(t *testing.T) {
	rec := trace.New()
	turnCtx := rec.StartTurn(context.Background(), trace.SpanKindChat)
	llmCtx := rec.StartLLMCall(turnCtx)

	llmSpan := trace.CurrentSpanFrom(llmCtx)
	gt.Equal(t, llmSpan.Kind, trace.SpanKindLLMCall)

	rec.EndLLMCall(llmCtx, &trace.LLMCallData{
		InputTokens:  100,
		OutputTokens: 50,
		Model:        "test-model",
		Request: &trace.LLMRequest{
			SystemPrompt: "You are a planner",
			Messages:     []trace.Message{{Role: "user", Content: "book a meeting"}},
		},
		Response: &trace.LLMResponse{
			Texts:   []string{`{"reply":"ok","actions":[]}`},
			Reply:   "ok",
			Actions: []trace.Action{},
		},
	}, nil)

	gt.Equal(t, llmSpan.LLMCall.InputTokens, 100)
	gt.Equal(t, llmSpan.LLMCall.Response.Reply, "ok")
	gt.Equal(t, rec.Trace().Metadata.Model, "test-model")

	root := rec.Trace().RootSpan
	gt.A(t, root.Children).Length(1)
	gt.Equal(t, root.Children[0].ParentID, root.SpanID)
}

func TestRecorderActionSpan(t *testing.T) {
	rec := trace.New()
	turnCtx := rec.StartTurn(context.Background(), trace.SpanKindPlan)

	ctx := rec.StartAction(turnCtx, trace.Action{ID: "a1", Type: "SET_FOCUS"})
	rec.EndAction(ctx, false, "focusText is required", nil)

	ctx = rec.StartAction(turnCtx, trace.Action{ID: "a2", Type: "CREATE_MEETING"})
	rec.EndAction(ctx, true, "", errors.New("write failed"))

	children := rec.Trace().RootSpan.Children
	gt.A(t, children).Length(2)

	gt.Equal(t, children[0].Name, "SET_FOCUS")
	gt.False(t, children[0].Action.Applied)
	gt.Equal(t, children[0].Action.Reason, "focusText is required")
	gt.Equal(t, children[0].Status, trace.SpanStatusOK)

	gt.True(t, children[1].Action.Applied)
	gt.Equal(t, children[1].Action.Error, "write failed")
	gt.Equal(t, children[1].Status, trace.SpanStatusError)
}

func TestRecorderEndIgnoresMismatchedSpan(t *testing.T) {
	rec := trace.New()
	turnCtx := rec.StartTurn(context.Background(), trace.SpanKindChat)

	// Ending an LLM call on the root context must not touch the root span.
	rec.EndLLMCall(turnCtx, &trace.LLMCallData{Model: "x"}, errors.New("boom"))
	gt.Equal(t, rec.Trace().RootSpan.Status, trace.SpanStatusOK)
}

func TestRecorderAddEvent(t *testing.T) {
	rec := trace.New()
	turnCtx := rec.StartTurn(context.Background(), trace.SpanKindChat)
	rec.AddEvent(turnCtx, "recall", map[string]any{"hits": 2})

	children := rec.Trace().RootSpan.Children
	gt.A(t, children).Length(1)
	gt.Equal(t, children[0].Kind, trace.SpanKindEvent)
	gt.Equal(t, children[0].Event.Kind, "recall")
}

func TestRecorderWithoutTurnIsNoop(t *testing.T) {
	rec := trace.New()
	ctx := context.Background()

	ctx2 := rec.StartLLMCall(ctx)
	rec.EndLLMCall(ctx2, nil, nil)
	rec.AddEvent(ctx, "x", nil)

	gt.Value(t, rec.Trace()).Nil()
	gt.NoError(t, rec.Finish(ctx))
}

type memoryRepository struct {
	mu    sync.Mutex
	saved []*trace.Trace
	err   error
}

func (r *memoryRepository) Save(_ context.Context, t *trace.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, t)
	return nil
}

func TestRecorderFinishSaves(t *testing.T) {
	repo := &memoryRepository{}
	rec := trace.New(
		trace.WithRepository(repo),
		trace.WithMetadata(trace.TraceMetadata{Mode: "focus"}),
	)

	ctx := rec.StartTurn(context.Background(), trace.SpanKindChat)
	rec.EndTurn(ctx, nil)
	gt.NoError(t, rec.Finish(ctx))

	gt.A(t, repo.saved).Length(1)
	gt.Equal(t, repo.saved[0].Metadata.Mode, "focus")
}

func TestRecorderFinishReturnsSaveError(t *testing.T) {
	repo := &memoryRepository{err: errors.New("disk full")}
	rec := trace.New(trace.WithRepository(repo))

	ctx := rec.StartTurn(context.Background(), trace.SpanKindChat)
	rec.EndTurn(ctx, nil)
	gt.Error(t, rec.Finish(ctx))
}

func TestRecorderConcurrentActions(t *testing.T) {
	rec := trace.New()
	turnCtx := rec.StartTurn(context.Background(), trace.SpanKindPlan)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := rec.StartAction(turnCtx, trace.Action{Type: "MEMORIZE"})
			rec.EndAction(ctx, true, "", nil)
		}()
	}
	wg.Wait()

	gt.A(t, rec.Trace().RootSpan.Children).Length(20)
}
