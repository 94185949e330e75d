package trace

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// ErrTraceNotFound is returned by Get when no trace has the given id.
var ErrTraceNotFound = errors.New("trace not found")

// Repository is the interface for persisting trace data.
type Repository interface {
	Save(ctx context.Context, trace *Trace) error
}

// Reader reads persisted traces back.
type Reader interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, traceID string) (*Trace, error)
}

// FileRepository persists trace data as JSON files.
type FileRepository struct {
	dir string
}

// NewFileRepository creates a new FileRepository that writes to the given directory.
func NewFileRepository(dir string) *FileRepository {
	return &FileRepository{dir: dir}
}

// Save writes the trace as JSON to {dir}/{trace_id}.json.
func (r *FileRepository) Save(_ context.Context, trace *Trace) error {
	if err := os.MkdirAll(r.dir, 0750); err != nil {
		return goerr.Wrap(err, "failed to create trace directory", goerr.V("dir", r.dir))
	}

	data, err := json.MarshalIndent(trace, "", "  ")
	if err != nil {
		return goerr.Wrap(err, "failed to marshal trace")
	}

	filePath := filepath.Join(r.dir, trace.TraceID+".json")
	if err := os.WriteFile(filePath, data, 0600); err != nil {
		return goerr.Wrap(err, "failed to write trace file", goerr.V("path", filePath))
	}

	return nil
}

// List returns summaries of all traces in the directory, newest first.
// A missing directory yields an empty list.
func (r *FileRepository) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Summary{}, nil
		}
		return nil, goerr.Wrap(err, "failed to read trace directory", goerr.V("dir", r.dir))
	}

	summaries := []Summary{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		t, err := r.Get(ctx, strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summarize(t))
	}

	sort.Slice(summaries, func(i, j int) bool {
		if !summaries[i].StartedAt.Equal(summaries[j].StartedAt) {
			return summaries[i].StartedAt.After(summaries[j].StartedAt)
		}
		return summaries[i].TraceID > summaries[j].TraceID
	})
	return summaries, nil
}

// Get reads one trace by id.
func (r *FileRepository) Get(_ context.Context, traceID string) (*Trace, error) {
	if traceID == "" || strings.ContainsAny(traceID, `/\`) || strings.Contains(traceID, "..") {
		return nil, goerr.Wrap(ErrTraceNotFound, "invalid trace id", goerr.V("trace_id", traceID))
	}

	filePath := filepath.Join(r.dir, traceID+".json")
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerr.Wrap(ErrTraceNotFound, "no trace file", goerr.V("trace_id", traceID))
		}
		return nil, goerr.Wrap(err, "failed to read trace file", goerr.V("path", filePath))
	}

	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal trace", goerr.V("path", filePath))
	}
	return &t, nil
}
