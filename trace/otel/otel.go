// Package otel provides an OpenTelemetry trace handler.
//
// It bridges chat turn and plan execution events to OpenTelemetry spans,
// allowing integration with any OTel-compatible backend.
//
//	assistant := digiself.NewAssistant(llm, digiself.WithTraceHandler(otel.New()))
package otel

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/digiself/trace"
	otelAPI "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/m-mizutani/digiself"
)

// Option is a functional option for configuring the OTel handler.
type Option func(*handler)

// WithTracerProvider sets an explicit TracerProvider.
// If not set, the global TracerProvider is used.
func WithTracerProvider(tp otelTrace.TracerProvider) Option {
	return func(h *handler) {
		h.tracerProvider = tp
	}
}

type handler struct {
	tracerProvider otelTrace.TracerProvider
	tracer         otelTrace.Tracer
}

// New creates a new OTel trace handler.
func New(opts ...Option) trace.Handler {
	h := &handler{}
	for _, opt := range opts {
		opt(h)
	}

	if h.tracerProvider == nil {
		h.tracerProvider = otelAPI.GetTracerProvider()
	}
	h.tracer = h.tracerProvider.Tracer(tracerName)

	return h
}

func (h *handler) StartTurn(ctx context.Context, kind trace.SpanKind) context.Context {
	ctx, _ = h.tracer.Start(ctx, string(kind),
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	return ctx
}

func (h *handler) EndTurn(ctx context.Context, err error) {
	endSpan(ctx, err)
}

func (h *handler) StartLLMCall(ctx context.Context) context.Context {
	ctx, _ = h.tracer.Start(ctx, "llm_call",
		otelTrace.WithSpanKind(otelTrace.SpanKindClient),
	)
	return ctx
}

func (h *handler) EndLLMCall(ctx context.Context, data *trace.LLMCallData, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if data != nil {
		span.SetAttributes(
			llmModelAttr(data.Model),
			llmInputTokensAttr(data.InputTokens),
			llmOutputTokensAttr(data.OutputTokens),
		)
		if data.Response != nil {
			span.SetAttributes(llmActionCountAttr(len(data.Response.Actions)))
		}
	}
	endSpan(ctx, err)
}

func (h *handler) StartAction(ctx context.Context, action trace.Action) context.Context {
	ctx, _ = h.tracer.Start(ctx, fmt.Sprintf("action:%s", action.Type),
		otelTrace.WithSpanKind(otelTrace.SpanKindInternal),
	)
	span := otelTrace.SpanFromContext(ctx)
	span.SetAttributes(actionTypeAttr(action.Type), actionIDAttr(action.ID))
	if action.Payload != nil {
		if b, err := json.Marshal(action.Payload); err == nil {
			span.SetAttributes(actionPayloadAttr(string(b)))
		}
	}
	return ctx
}

func (h *handler) EndAction(ctx context.Context, applied bool, reason string, err error) {
	span := otelTrace.SpanFromContext(ctx)
	span.SetAttributes(actionAppliedAttr(applied))
	if reason != "" {
		span.SetAttributes(actionReasonAttr(reason))
	}
	endSpan(ctx, err)
}

func (h *handler) AddEvent(ctx context.Context, kind string, data any) {
	span := otelTrace.SpanFromContext(ctx)
	if data == nil {
		span.AddEvent(kind)
		return
	}
	b, err := json.Marshal(data)
	if err != nil {
		span.AddEvent(kind)
		return
	}
	span.AddEvent(kind, otelTrace.WithAttributes(eventDataAttr(string(b))))
}

// Finish is a no-op. Spans are exported by the TracerProvider's SpanProcessor.
func (h *handler) Finish(_ context.Context) error {
	return nil
}

func endSpan(ctx context.Context, err error) {
	span := otelTrace.SpanFromContext(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
