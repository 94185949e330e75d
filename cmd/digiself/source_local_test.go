package main_test

import (
	"context"
	"errors"
	"testing"
	"time"

	main "github.com/m-mizutani/digiself/cmd/digiself"
	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/gt"
)

func writeTraces(t *testing.T, dir string, ids ...string) {
	t.Helper()
	repo := trace.NewFileRepository(dir)
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, id := range ids {
		gt.NoError(t, repo.Save(context.Background(), &trace.Trace{
			TraceID:   id,
			StartedAt: start.Add(time.Duration(i) * time.Minute),
			RootSpan:  &trace.Span{Kind: trace.SpanKindChat, Status: trace.SpanStatusOK},
		}))
	}
}

func TestLocalSourceList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTraces(t, dir, "trace-001", "trace-002", "trace-003")

	t.Run("newest first", func(t *testing.T) {
		resp := gt.R1(main.NewLocalSource(dir).List(ctx, 10, "")).NoError(t)
		gt.A(t, resp.Traces).Length(3)
		gt.Equal(t, resp.Traces[0].TraceID, "trace-003")
		gt.Equal(t, resp.Traces[2].TraceID, "trace-001")
		gt.Equal(t, resp.Traces[0].Summary.Kind, trace.SpanKindChat)
		gt.Equal(t, resp.NextPageToken, "")
	})

	t.Run("pagination", func(t *testing.T) {
		src := main.NewLocalSource(dir)
		first := gt.R1(src.List(ctx, 2, "")).NoError(t)
		gt.A(t, first.Traces).Length(2)
		gt.True(t, first.NextPageToken != "")

		second := gt.R1(src.List(ctx, 2, first.NextPageToken)).NoError(t)
		gt.A(t, second.Traces).Length(1)
		gt.Equal(t, second.Traces[0].TraceID, "trace-001")
		gt.Equal(t, second.NextPageToken, "")
	})

	t.Run("invalid page token", func(t *testing.T) {
		_, err := main.NewLocalSource(dir).List(ctx, 2, "!!!")
		gt.Error(t, err)
	})

	t.Run("missing directory is empty", func(t *testing.T) {
		resp := gt.R1(main.NewLocalSource(dir+"/none").List(ctx, 2, "")).NoError(t)
		gt.A(t, resp.Traces).Length(0)
	})
}

func TestLocalSourceGet(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeTraces(t, dir, "trace-001")

	got := gt.R1(main.NewLocalSource(dir).Get(ctx, "trace-001")).NoError(t)
	gt.Equal(t, got.TraceID, "trace-001")

	_, err := main.NewLocalSource(dir).Get(ctx, "../etc/passwd")
	gt.True(t, errors.Is(err, trace.ErrTraceNotFound))

	_, err = main.NewLocalSource(dir).Get(ctx, "missing")
	gt.True(t, errors.Is(err, trace.ErrTraceNotFound))
}
