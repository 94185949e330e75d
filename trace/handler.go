package trace

import "context"

// Handler is the interface for trace backends.
// Implementations receive lifecycle events during a chat turn or a plan
// execution and can record, export, or forward them as needed.
type Handler interface {
	// StartTurn starts the root span. kind is SpanKindChat or SpanKindPlan.
	StartTurn(ctx context.Context, kind SpanKind) context.Context
	// EndTurn ends the root span.
	EndTurn(ctx context.Context, err error)

	// StartLLMCall starts an LLM call span.
	StartLLMCall(ctx context.Context) context.Context
	// EndLLMCall ends an LLM call span with the given data.
	EndLLMCall(ctx context.Context, data *LLMCallData, err error)

	// StartAction starts a span for applying one planner action.
	StartAction(ctx context.Context, action Action) context.Context
	// EndAction ends the action span. applied is false when the action was skipped.
	EndAction(ctx context.Context, applied bool, reason string, err error)

	// AddEvent adds an event to the current span.
	AddEvent(ctx context.Context, kind string, data any)

	// Finish completes the trace and performs any final operations.
	Finish(ctx context.Context) error
}
