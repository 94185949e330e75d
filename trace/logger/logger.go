package logger

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/digiself/trace"
)

// Event represents a trace event type that can be selectively enabled.
type Event int

const (
	// Turn enables logging of chat turn and plan execution start/end.
	Turn Event = iota
	// LLMRequest enables logging of LLM request details (system prompt, messages).
	LLMRequest
	// LLMResponse enables logging of LLM response details (texts, parsed actions, token usage).
	LLMResponse
	// Action enables logging of applied and skipped planner actions.
	Action
	// CustomEvent enables logging of events such as memory recall.
	CustomEvent

	eventCount
)

type config struct {
	logger *slog.Logger
	events map[Event]bool
}

// Option configures the logger handler.
type Option func(*config)

// WithLogger sets a custom slog.Logger. Default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithEvents enables only the specified event types.
// When not specified, all events are enabled.
func WithEvents(events ...Event) Option {
	return func(c *config) {
		c.events = make(map[Event]bool, len(events))
		for _, e := range events {
			c.events[e] = true
		}
	}
}

type handler struct {
	cfg config
}

// New creates a new trace.Handler that logs trace events via slog.
func New(opts ...Option) trace.Handler {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.events == nil {
		cfg.events = make(map[Event]bool, eventCount)
		for i := Event(0); i < eventCount; i++ {
			cfg.events[i] = true
		}
	}

	return &handler{cfg: cfg}
}

func (h *handler) logger() *slog.Logger {
	if h.cfg.logger != nil {
		return h.cfg.logger
	}
	return slog.Default()
}

func (h *handler) enabled(e Event) bool {
	return h.cfg.events[e]
}

type startTimeKey struct{}

func withStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeKey{}, t)
}

func startTimeFrom(ctx context.Context) time.Time {
	t, _ := ctx.Value(startTimeKey{}).(time.Time)
	return t
}

type turnKindKey struct{}

type actionKey struct{}

func (h *handler) StartTurn(ctx context.Context, kind trace.SpanKind) context.Context {
	if h.enabled(Turn) {
		h.logger().InfoContext(ctx, "turn started", slog.String("kind", string(kind)))
	}
	ctx = context.WithValue(ctx, turnKindKey{}, kind)
	return withStartTime(ctx, time.Now())
}

func (h *handler) EndTurn(ctx context.Context, err error) {
	if !h.enabled(Turn) {
		return
	}

	kind, _ := ctx.Value(turnKindKey{}).(trace.SpanKind)
	attrs := []any{
		slog.String("kind", string(kind)),
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "turn ended", attrs...)
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	return withStartTime(ctx, time.Now())
}

// EndLLMCall logs LLM call details. If either LLMRequest or LLMResponse is
// enabled, model and token usage are included.
func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	reqEnabled := h.enabled(LLMRequest)
	respEnabled := h.enabled(LLMResponse)
	if !reqEnabled && !respEnabled {
		return
	}

	attrs := []any{
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}

	if data != nil {
		attrs = append(attrs,
			slog.String("model", data.Model),
			slog.Int("input_tokens", data.InputTokens),
			slog.Int("output_tokens", data.OutputTokens),
		)

		if reqEnabled && data.Request != nil {
			attrs = append(attrs, slog.Any("request", data.Request))
		}
		if respEnabled && data.Response != nil {
			attrs = append(attrs, slog.Any("response", data.Response))
		}
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	h.logger().InfoContext(ctx, "llm call", attrs...)
}

func (h *handler) StartAction(ctx context.Context, action trace.Action) context.Context {
	ctx = context.WithValue(ctx, actionKey{}, action)
	return withStartTime(ctx, time.Now())
}

func (h *handler) EndAction(ctx context.Context, applied bool, reason string, err error) {
	if !h.enabled(Action) {
		return
	}

	action, _ := ctx.Value(actionKey{}).(trace.Action)
	attrs := []any{
		slog.String("action_id", action.ID),
		slog.String("type", action.Type),
		slog.Any("payload", action.Payload),
		slog.Bool("applied", applied),
		slog.Duration("duration", time.Since(startTimeFrom(ctx))),
	}
	if reason != "" {
		attrs = append(attrs, slog.String("reason", reason))
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	h.logger().InfoContext(ctx, "planner action", attrs...)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	if !h.enabled(CustomEvent) {
		return
	}

	h.logger().InfoContext(ctx, "event",
		slog.String("kind", kind),
		slog.Any("data", data),
	)
}

// Finish is a no-op. Persistence is the Recorder's responsibility.
func (h *handler) Finish(_ context.Context) error {
	return nil
}
