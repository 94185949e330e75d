package digiself

import (
	"context"
	"log/slog"
	"strings"
)

// ContentType is the format the model is asked to produce.
type ContentType string

const (
	ContentTypeText ContentType = "text"
	ContentTypeJSON ContentType = "json"
)

// Role is the speaker of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the chat history.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// ContentRequest is a single stateless generation request. History holds the
// previous turns, Prompt is the new user input.
type ContentRequest struct {
	SystemPrompt string
	History      []Message
	Prompt       string
	ContentType  ContentType
}

// LogValue implements slog.LogValuer. Prompt bodies are not logged here.
func (x *ContentRequest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("history", len(x.History)),
		slog.Int("prompt_len", len(x.Prompt)),
		slog.String("content_type", string(x.ContentType)),
	)
}

// Response is a general response type for each LLM provider.
type Response struct {
	Texts       []string
	InputToken  int
	OutputToken int
	Model       string
}

// Text joins all text parts of the response.
func (r *Response) Text() string {
	if r == nil {
		return ""
	}
	return strings.Join(r.Texts, "")
}

// LLMClient is a client for each LLM service.
type LLMClient interface {
	GenerateContent(ctx context.Context, req *ContentRequest) (*Response, error)
}

// Embedder converts text into embedding vectors.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error)
}

// TokenCounter counts tokens of a text for the model in use. It is optional;
// history is not trimmed when the client does not implement it.
type TokenCounter interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
