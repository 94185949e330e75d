package openai

import "github.com/sashabaranov/go-openai"

type APIClient = apiClient

var (
	TokenLimitErrorOptions = tokenLimitErrorOptions
	BuildMessages          = buildMessages
)

// NewWithAPIClient creates a client backed by a custom API client for testing.
func NewWithAPIClient(api apiClient, options ...Option) *Client {
	c := &Client{
		defaultModel:   DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
	}
	for _, opt := range options {
		opt(c)
	}
	c.api = api
	return c
}

// ChatRequest is exported for assertions on the built request.
type ChatRequest = openai.ChatCompletionRequest
