package trace

import (
	"time"
)

// SpanKind represents the type of a span.
type SpanKind string

const (
	SpanKindChat    SpanKind = "chat"
	SpanKindPlan    SpanKind = "plan"
	SpanKindLLMCall SpanKind = "llm_call"
	SpanKindAction  SpanKind = "action"
	SpanKindEvent   SpanKind = "event"
)

// SpanStatus represents the status of a span.
type SpanStatus string

const (
	SpanStatusOK    SpanStatus = "ok"
	SpanStatusError SpanStatus = "error"
)

// Trace is the record of one chat turn or one plan execution.
type Trace struct {
	TraceID   string        `json:"trace_id"`
	RootSpan  *Span         `json:"root_span"`
	Metadata  TraceMetadata `json:"metadata"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
}

// TraceMetadata holds metadata for a trace.
type TraceMetadata struct {
	Model  string            `json:"model,omitempty"`
	Mode   string            `json:"mode,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Span represents a single unit of operation in the trace hierarchy.
type Span struct {
	SpanID    string        `json:"span_id"`
	ParentID  string        `json:"parent_id,omitempty"`
	Kind      SpanKind      `json:"kind"`
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Duration  time.Duration `json:"duration"`
	Status    SpanStatus    `json:"status"`
	Error     string        `json:"error,omitempty"`
	Children  []*Span       `json:"children,omitempty"`

	// Kind-specific data (only one is non-nil based on Kind)
	LLMCall *LLMCallData `json:"llm_call,omitempty"`
	Action  *ActionData  `json:"action,omitempty"`
	Event   *EventData   `json:"event,omitempty"`
}

// Summary is a light view of a Trace used for listings.
type Summary struct {
	TraceID   string        `json:"trace_id"`
	Kind      SpanKind      `json:"kind"`
	Status    SpanStatus    `json:"status"`
	Model     string        `json:"model,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	LLMCalls  int           `json:"llm_calls"`
	Actions   int           `json:"actions"`
}

// Summarize builds a Summary of t.
func Summarize(t *Trace) Summary {
	s := Summary{
		TraceID:   t.TraceID,
		Model:     t.Metadata.Model,
		StartedAt: t.StartedAt,
	}
	if t.RootSpan == nil {
		return s
	}
	s.Kind = t.RootSpan.Kind
	s.Status = t.RootSpan.Status
	s.Duration = t.RootSpan.Duration

	var walk func(span *Span)
	walk = func(span *Span) {
		switch span.Kind {
		case SpanKindLLMCall:
			s.LLMCalls++
		case SpanKindAction:
			s.Actions++
		}
		for _, child := range span.Children {
			walk(child)
		}
	}
	walk(t.RootSpan)
	return s
}
