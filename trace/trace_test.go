package trace_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/gt"
)

func TestSpanKindValues(t *testing.T) {
	gt.Equal(t, trace.SpanKindChat, trace.SpanKind("chat"))
	gt.Equal(t, trace.SpanKindPlan, trace.SpanKind("plan"))
	gt.Equal(t, trace.SpanKindLLMCall, trace.SpanKind("llm_call"))
	gt.Equal(t, trace.SpanKindAction, trace.SpanKind("action"))
	gt.Equal(t, trace.SpanKindEvent, trace.SpanKind("event"))
}

func newSampleTrace(id string, startedAt time.Time) *trace.Trace {
	return &trace.Trace{
		TraceID: id,
		RootSpan: &trace.Span{
			SpanID:    "root",
			Kind:      trace.SpanKindPlan,
			Name:      "plan",
			StartedAt: startedAt,
			EndedAt:   startedAt.Add(time.Second),
			Duration:  time.Second,
			Status:    trace.SpanStatusOK,
			Children: []*trace.Span{
				{
					SpanID:   "llm",
					ParentID: "root",
					Kind:     trace.SpanKindLLMCall,
					LLMCall:  &trace.LLMCallData{Model: "test-model"},
				},
				{
					SpanID:   "a1",
					ParentID: "root",
					Kind:     trace.SpanKindAction,
					Action: &trace.ActionData{
						Action:  trace.Action{Type: "CREATE_DIARY"},
						Applied: true,
					},
				},
				{
					SpanID:   "a2",
					ParentID: "root",
					Kind:     trace.SpanKindAction,
					Action: &trace.ActionData{
						Action: trace.Action{Type: "SET_FOCUS"},
						Reason: "focusText is required",
					},
				},
			},
		},
		Metadata:  trace.TraceMetadata{Model: "test-model"},
		StartedAt: startedAt,
		EndedAt:   startedAt.Add(time.Second),
	}
}

func TestSummarize(t *testing.T) {
	now := time.Now()
	s := trace.Summarize(newSampleTrace("t1", now))

	gt.Equal(t, s.TraceID, "t1")
	gt.Equal(t, s.Kind, trace.SpanKindPlan)
	gt.Equal(t, s.Status, trace.SpanStatusOK)
	gt.Equal(t, s.Model, "test-model")
	gt.Equal(t, s.LLMCalls, 1)
	gt.Equal(t, s.Actions, 2)
	gt.Equal(t, s.Duration, time.Second)
}

func TestSummarizeWithoutRootSpan(t *testing.T) {
	s := trace.Summarize(&trace.Trace{TraceID: "empty"})
	gt.Equal(t, s.TraceID, "empty")
	gt.Equal(t, s.LLMCalls, 0)
}

func TestActionDataJSONIsFlat(t *testing.T) {
	data, err := json.Marshal(trace.ActionData{
		Action:  trace.Action{ID: "a", Type: "SET_MODE", Payload: map[string]any{"mode": "work"}},
		Applied: true,
	})
	gt.NoError(t, err)

	var m map[string]any
	gt.NoError(t, json.Unmarshal(data, &m))
	gt.Equal(t, m["type"], any("SET_MODE"))
	gt.Equal(t, m["applied"], any(true))
}
