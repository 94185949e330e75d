package trace

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Option is a functional option for configuring a Recorder.
type Option func(*Recorder)

// WithRepository sets the repository for persisting trace data.
func WithRepository(repo Repository) Option {
	return func(r *Recorder) {
		r.repo = repo
	}
}

// WithMetadata sets the metadata for the trace.
func WithMetadata(meta TraceMetadata) Option {
	return func(r *Recorder) {
		r.metadata = meta
	}
}

// WithTraceID sets a custom trace ID.
// If not set or set to an empty string, a UUID v7 is generated automatically.
func WithTraceID(id string) Option {
	return func(r *Recorder) {
		r.traceID = id
	}
}

// WithLogger sets the logger used to report persistence failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// Recorder collects tracing data into an in-memory Trace structure.
// It implements the Handler interface and provides access to the collected Trace via Trace().
// A Recorder records one turn; create a new one per chat request.
type Recorder struct {
	trace    *Trace
	mu       sync.Mutex
	repo     Repository
	metadata TraceMetadata
	traceID  string
	logger   *slog.Logger
}

// New creates a new Recorder with the given options.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// context key types
type handlerKey struct{}
type currentSpanKey struct{}

// WithHandler stores the Handler in the context.
func WithHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey{}, h)
}

// HandlerFrom retrieves the Handler from the context. Returns nil if not set.
func HandlerFrom(ctx context.Context) Handler {
	h, _ := ctx.Value(handlerKey{}).(Handler)
	return h
}

func withCurrentSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, currentSpanKey{}, span)
}

func currentSpanFrom(ctx context.Context) *Span {
	s, _ := ctx.Value(currentSpanKey{}).(*Span)
	return s
}

func newSpanID() string {
	return uuid.New().String()
}

// TraceID returns the id of the trace being recorded, or the configured id
// before StartTurn.
func (r *Recorder) TraceID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.trace != nil {
		return r.trace.TraceID
	}
	return r.traceID
}

// StartTurn starts the root span.
func (r *Recorder) StartTurn(ctx context.Context, kind SpanKind) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	span := &Span{
		SpanID:    newSpanID(),
		Kind:      kind,
		Name:      string(kind),
		StartedAt: now,
		Status:    SpanStatusOK,
	}

	traceID := r.traceID
	if traceID == "" {
		traceID = uuid.Must(uuid.NewV7()).String()
		r.traceID = traceID
	}

	r.trace = &Trace{
		TraceID:   traceID,
		RootSpan:  span,
		Metadata:  r.metadata,
		StartedAt: now,
	}

	return withCurrentSpan(ctx, span)
}

// EndTurn ends the root span.
func (r *Recorder) EndTurn(ctx context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil {
		return
	}

	now := time.Now()
	endSpan(span, now, err)

	if r.trace != nil {
		r.trace.EndedAt = now
	}
}

// StartLLMCall starts an llm_call span as a child of the current span.
func (r *Recorder) StartLLMCall(ctx context.Context) context.Context {
	return r.startChildSpan(ctx, SpanKindLLMCall, "llm_call")
}

// EndLLMCall ends the llm_call span with the given data.
func (r *Recorder) EndLLMCall(ctx context.Context, data *LLMCallData, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindLLMCall {
		return
	}

	span.LLMCall = data
	if data != nil && data.Model != "" && r.trace != nil && r.trace.Metadata.Model == "" {
		r.trace.Metadata.Model = data.Model
	}
	endSpan(span, time.Now(), err)
}

// StartAction starts an action span as a child of the current span.
func (r *Recorder) StartAction(ctx context.Context, action Action) context.Context {
	ctx = r.startChildSpan(ctx, SpanKindAction, action.Type)

	r.mu.Lock()
	defer r.mu.Unlock()
	if span := currentSpanFrom(ctx); span != nil && span.Kind == SpanKindAction {
		span.Action = &ActionData{Action: action}
	}
	return ctx
}

// EndAction ends the action span.
func (r *Recorder) EndAction(ctx context.Context, applied bool, reason string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	span := currentSpanFrom(ctx)
	if span == nil || span.Kind != SpanKindAction {
		return
	}

	if span.Action != nil {
		span.Action.Applied = applied
		span.Action.Reason = reason
		if err != nil {
			span.Action.Error = err.Error()
		}
	}
	endSpan(span, time.Now(), err)
}

// AddEvent adds an event span as a child of the current span.
func (r *Recorder) AddEvent(ctx context.Context, kind string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := currentSpanFrom(ctx)
	if parent == nil {
		return
	}

	now := time.Now()
	parent.Children = append(parent.Children, &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      SpanKindEvent,
		Name:      kind,
		StartedAt: now,
		EndedAt:   now,
		Status:    SpanStatusOK,
		Event: &EventData{
			Kind: kind,
			Data: data,
		},
	})
}

// Finish completes the trace and persists it to the Repository.
func (r *Recorder) Finish(ctx context.Context) error {
	r.mu.Lock()
	trace := r.trace
	repo := r.repo
	r.mu.Unlock()

	if trace == nil || repo == nil {
		return nil
	}

	if err := repo.Save(ctx, trace); err != nil {
		r.logger.Warn("failed to save trace", "error", err, "trace_id", trace.TraceID)
		return err
	}

	return nil
}

// Trace returns the current trace data. Returns nil if no trace is active.
func (r *Recorder) Trace() *Trace {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.trace
}

func (r *Recorder) startChildSpan(ctx context.Context, kind SpanKind, name string) context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent := currentSpanFrom(ctx)
	if parent == nil {
		return ctx
	}

	span := &Span{
		SpanID:    newSpanID(),
		ParentID:  parent.SpanID,
		Kind:      kind,
		Name:      name,
		StartedAt: time.Now(),
		Status:    SpanStatusOK,
	}

	parent.Children = append(parent.Children, span)
	return withCurrentSpan(ctx, span)
}

func endSpan(span *Span, now time.Time, err error) {
	span.EndedAt = now
	span.Duration = now.Sub(span.StartedAt)
	if err != nil {
		span.Status = SpanStatusError
		span.Error = err.Error()
	}
}
