package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// csSource reads traces stored as {prefix}{trace_id}.json in a Cloud
// Storage bucket.
type csSource struct {
	bucket string
	prefix string
	client *storage.Client
}

func newCSSource(ctx context.Context, bucket, prefix string) (traceSource, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Cloud Storage client")
	}
	return &csSource{
		bucket: bucket,
		prefix: prefix,
		client: client,
	}, nil
}

func (s *csSource) List(ctx context.Context, req listRequest) (*listResponse, error) {
	pageSize := req.pageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})
	pager := iterator.NewPager(it, pageSize, req.pageToken)

	var attrs []*storage.ObjectAttrs
	nextToken, err := pager.NextPage(&attrs)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list objects",
			goerr.V("bucket", s.bucket),
			goerr.V("prefix", s.prefix),
		)
	}

	resp := &listResponse{nextPageToken: nextToken}
	for _, attr := range attrs {
		name := strings.TrimPrefix(attr.Name, s.prefix)
		traceID, ok := strings.CutSuffix(name, ".json")
		if !ok || traceID == "" || strings.Contains(traceID, "/") {
			continue
		}

		resp.traces = append(resp.traces, traceSummary{
			TraceID:   traceID,
			Size:      attr.Size,
			UpdatedAt: attr.Updated,
		})
	}

	return resp, nil
}

func (s *csSource) Get(ctx context.Context, traceID string) (*trace.Trace, error) {
	objectName := s.prefix + traceID + ".json"
	reader, err := s.client.Bucket(s.bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, goerr.Wrap(trace.ErrTraceNotFound, "no trace object", goerr.V("object", objectName))
		}
		return nil, goerr.Wrap(err, "failed to read trace object",
			goerr.V("bucket", s.bucket),
			goerr.V("object", objectName),
		)
	}
	defer func() { _ = reader.Close() }()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read trace data", goerr.V("object", objectName))
	}

	var t trace.Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to parse trace data", goerr.V("object", objectName))
	}

	return &t, nil
}
