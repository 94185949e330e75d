package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/app"
	"github.com/m-mizutani/digiself/client"
	"github.com/m-mizutani/digiself/trace"
)

type ListTracesResponse = listTracesResponse
type TraceSummary = traceSummary

var (
	WithSource      = withSource
	WithToken       = withToken
	SummarizeEffect = summarizeEffect
	NewLogger       = newLogger
)

// NewServer panics on schema compile failure.
func NewServer(x *app.App, opts ...serverOption) *server {
	s, err := newServer(x, opts...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *server) Handler() http.Handler {
	return s.handler()
}

type ListResult struct {
	Traces        []TraceSummary
	NextPageToken string
}

// TestableSource wraps a traceSource for external test access.
type TestableSource struct {
	src traceSource
}

func NewLocalSource(dir string) *TestableSource {
	return &TestableSource{src: newLocalSource(dir)}
}

func (ts *TestableSource) List(ctx context.Context, pageSize int, pageToken string) (*ListResult, error) {
	resp, err := ts.src.List(ctx, listRequest{pageSize: pageSize, pageToken: pageToken})
	if err != nil {
		return nil, err
	}
	return &ListResult{Traces: resp.traces, NextPageToken: resp.nextPageToken}, nil
}

func (ts *TestableSource) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	return ts.src.Get(ctx, traceID)
}

func WithTestSource(ts *TestableSource) serverOption {
	return withSource(ts.src)
}

type LineReader = lineReader

func RunChat(ctx context.Context, rl LineReader, ws *client.Workspace) error {
	return runChat(ctx, rl, ws, slog.New(slog.DiscardHandler))
}

func PrintState(w io.Writer, state digiself.State) {
	printState(w, state)
}
