package main

import (
	"context"
	"encoding/base64"

	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/goerr/v2"
)

// localSource serves traces written by trace.FileRepository, newest first.
type localSource struct {
	repo *trace.FileRepository
}

func newLocalSource(dir string) traceSource {
	return &localSource{repo: trace.NewFileRepository(dir)}
}

func (s *localSource) List(ctx context.Context, req listRequest) (*listResponse, error) {
	summaries, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	startIdx := 0
	if req.pageToken != "" {
		lastID, err := decodePageToken(req.pageToken)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid page token")
		}
		startIdx = len(summaries)
		for i, sum := range summaries {
			if sum.TraceID == lastID {
				startIdx = i + 1
				break
			}
		}
	}

	pageSize := req.pageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	endIdx := min(startIdx+pageSize, len(summaries))

	resp := &listResponse{}
	for _, sum := range summaries[startIdx:endIdx] {
		resp.traces = append(resp.traces, traceSummary{
			TraceID: sum.TraceID,
			Summary: &sum,
		})
	}

	if endIdx < len(summaries) {
		resp.nextPageToken = encodePageToken(summaries[endIdx-1].TraceID)
	}

	return resp, nil
}

func (s *localSource) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	return s.repo.Get(ctx, traceID)
}

func encodePageToken(traceID string) string {
	return base64.URLEncoding.EncodeToString([]byte(traceID))
}

func decodePageToken(token string) (string, error) {
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", goerr.Wrap(err, "failed to decode page token")
	}
	return string(b), nil
}
