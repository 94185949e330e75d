// Package rag keeps memories searchable by meaning. Memories are embedded
// when stored and recalled by cosine similarity to the query.
package rag

import (
	"context"
	"log/slog"
	"math"
	"sort"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

// DefaultDimension is the embedding size requested from the embedder.
const DefaultDimension = 256

// Index embeds and ranks memories. It holds no memories itself; the caller
// passes the candidates to Recall.
type Index struct {
	embedder  digiself.Embedder
	dimension int
	logger    *slog.Logger
}

// Option configures an Index.
type Option func(*Index)

// WithDimension sets the embedding dimension.
func WithDimension(dimension int) Option {
	return func(x *Index) {
		x.dimension = dimension
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *Index) {
		x.logger = logger
	}
}

// New creates an Index backed by embedder.
func New(embedder digiself.Embedder, opts ...Option) *Index {
	x := &Index{
		embedder:  embedder,
		dimension: DefaultDimension,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Memorize returns memory with its embedding filled in. When the embedder
// fails the memory is returned without an embedding; it is still stored by
// the caller but never recalled.
func (x *Index) Memorize(ctx context.Context, memory digiself.Memory) digiself.Memory {
	vectors, err := x.embedder.GenerateEmbedding(ctx, x.dimension, []string{memory.Content})
	if err != nil {
		x.logger.Warn("failed to embed memory, store it without embedding",
			"memory_id", memory.ID,
			"error", err,
		)
		return memory
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		x.logger.Warn("embedder returned no vector, store memory without embedding",
			"memory_id", memory.ID,
		)
		return memory
	}

	memory.Embedding = vectors[0]
	return memory
}

type scored struct {
	memory digiself.Memory
	score  float64
}

// Recall returns up to k memories most similar to query, best first.
// Memories without an embedding or with a different dimension than the query
// are ignored. It implements digiself.Recaller.
func (x *Index) Recall(ctx context.Context, query string, memories []digiself.Memory, k int) ([]digiself.Memory, error) {
	if k <= 0 || len(memories) == 0 {
		return nil, nil
	}

	vectors, err := x.embedder.GenerateEmbedding(ctx, x.dimension, []string{query})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to embed query")
	}
	if len(vectors) == 0 {
		return nil, goerr.New("embedder returned no vector for query")
	}
	queryVec := vectors[0]

	candidates := make([]scored, 0, len(memories))
	for _, m := range memories {
		if len(m.Embedding) == 0 || len(m.Embedding) != len(queryVec) {
			continue
		}
		candidates = append(candidates, scored{memory: m, score: CosineSimilarity(queryVec, m.Embedding)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}

	out := make([]digiself.Memory, len(candidates))
	for i, c := range candidates {
		out[i] = c.memory
	}

	x.logger.Debug("recalled memories",
		"candidates", len(memories),
		"returned", len(out),
	)
	return out, nil
}

// CosineSimilarity returns the cosine of the angle between a and b. It is 0
// when the lengths differ or either vector has zero norm.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ digiself.Recaller = (*Index)(nil)
