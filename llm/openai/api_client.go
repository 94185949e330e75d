package openai

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// apiClient is the subset of the OpenAI API used by Client.
type apiClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
	CreateEmbeddings(ctx context.Context, req openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}
