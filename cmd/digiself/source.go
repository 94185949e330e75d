package main

import (
	"context"
	"time"

	"github.com/m-mizutani/digiself/trace"
)

const defaultPageSize = 20

// traceSummary describes one stored trace. Sources that read the trace
// itself fill Summary; object stores only know size and update time.
type traceSummary struct {
	TraceID   string         `json:"trace_id"`
	Size      int64          `json:"size,omitempty"`
	UpdatedAt time.Time      `json:"updated_at,omitzero"`
	Summary   *trace.Summary `json:"summary,omitempty"`
}

type listRequest struct {
	pageSize  int
	pageToken string
}

type listResponse struct {
	traces        []traceSummary
	nextPageToken string
}

// traceSource provides access to trace data from various backends.
type traceSource interface {
	List(ctx context.Context, req listRequest) (*listResponse, error)
	Get(ctx context.Context, traceID string) (*trace.Trace, error)
}
