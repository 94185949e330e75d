// Package llm selects and builds an LLM provider client from configuration.
package llm

import (
	"context"
	"log/slog"
	"strings"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/llm/claude"
	"github.com/m-mizutani/digiself/llm/gemini"
	"github.com/m-mizutani/digiself/llm/openai"
	"github.com/m-mizutani/goerr/v2"
)

// Provider is the name of an LLM service.
type Provider string

const (
	ProviderOpenAI       Provider = "openai"
	ProviderGemini       Provider = "gemini"
	ProviderClaude       Provider = "claude"
	ProviderClaudeVertex Provider = "claude-vertex"
)

// Providers returns all supported provider names.
func Providers() []Provider {
	return []Provider{ProviderOpenAI, ProviderGemini, ProviderClaude, ProviderClaudeVertex}
}

// Config holds the settings for every provider. Only the fields of the
// selected Provider are used.
type Config struct {
	Provider Provider
	Model    string

	OpenAIAPIKey string
	ClaudeAPIKey string
	GeminiAPIKey string

	// GCPProjectID and GCPLocation are used by Gemini on Vertex AI and Claude
	// on Vertex AI.
	GCPProjectID string
	GCPLocation  string

	EmbeddingModel string
}

// LogValue implements slog.LogValuer. API keys are not logged.
func (x Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("provider", string(x.Provider)),
		slog.String("model", x.Model),
		slog.String("gcp_project_id", x.GCPProjectID),
		slog.String("gcp_location", x.GCPLocation),
	)
}

// Client is what every provider client implements.
type Client interface {
	digiself.LLMClient
	digiself.TokenCounter
}

// New builds the client of cfg.Provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	switch Provider(strings.ToLower(string(cfg.Provider))) {
	case ProviderOpenAI:
		var opts []openai.Option
		if cfg.Model != "" {
			opts = append(opts, openai.WithModel(cfg.Model))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		return build(openai.New(ctx, cfg.OpenAIAPIKey, opts...))

	case ProviderGemini:
		var opts []gemini.Option
		if cfg.Model != "" {
			opts = append(opts, gemini.WithModel(cfg.Model))
		}
		if cfg.EmbeddingModel != "" {
			opts = append(opts, gemini.WithEmbeddingModel(cfg.EmbeddingModel))
		}
		if cfg.GeminiAPIKey != "" {
			opts = append(opts, gemini.WithAPIKey(cfg.GeminiAPIKey))
		}
		return build(gemini.New(ctx, cfg.GCPProjectID, cfg.GCPLocation, opts...))

	case ProviderClaude:
		var opts []claude.Option
		if cfg.Model != "" {
			opts = append(opts, claude.WithModel(cfg.Model))
		}
		return build(claude.New(ctx, cfg.ClaudeAPIKey, opts...))

	case ProviderClaudeVertex:
		var opts []claude.Option
		if cfg.Model != "" {
			opts = append(opts, claude.WithModel(cfg.Model))
		}
		return build(claude.NewWithVertex(ctx, cfg.GCPLocation, cfg.GCPProjectID, opts...))

	default:
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, "unknown LLM provider",
			goerr.V("provider", cfg.Provider))
	}
}

// build drops the typed nil of a failed constructor.
func build[T Client](client T, err error) (Client, error) {
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Embedder returns client as a digiself.Embedder when the provider supports
// embeddings. Claude does not.
func Embedder(client Client) (digiself.Embedder, bool) {
	e, ok := client.(digiself.Embedder)
	return e, ok
}
