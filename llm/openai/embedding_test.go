package openai_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/digiself/llm/openai"
	"github.com/m-mizutani/gt"
	openaiapi "github.com/sashabaranov/go-openai"
)

func TestGenerateEmbedding(t *testing.T) {
	api := &mockAPIClient{
		embeddingResp: openaiapi.EmbeddingResponse{
			Data: []openaiapi.Embedding{
				{Embedding: []float32{0.5, 0.25}},
				{Embedding: []float32{1, 0}},
			},
		},
	}
	client := openai.NewWithAPIClient(api)

	vectors, err := client.GenerateEmbedding(context.Background(), 2, []string{"a", "b"})
	gt.NoError(t, err)
	gt.Equal(t, vectors, [][]float64{{0.5, 0.25}, {1, 0}})

	req, ok := api.embeddingReq.(openaiapi.EmbeddingRequest)
	gt.True(t, ok)
	gt.Equal(t, req.Model, openaiapi.SmallEmbedding3)
	gt.Equal(t, req.Dimensions, 2)
}

func TestGenerateEmbeddingErrors(t *testing.T) {
	t.Run("unsupported model", func(t *testing.T) {
		client := openai.NewWithAPIClient(&mockAPIClient{}, openai.WithEmbeddingModel("nope"))
		_, err := client.GenerateEmbedding(context.Background(), 2, []string{"a"})
		gt.Error(t, err)
	})

	t.Run("api error", func(t *testing.T) {
		client := openai.NewWithAPIClient(&mockAPIClient{embeddingErr: errors.New("down")})
		_, err := client.GenerateEmbedding(context.Background(), 2, []string{"a"})
		gt.Error(t, err)
	})

	t.Run("empty data", func(t *testing.T) {
		client := openai.NewWithAPIClient(&mockAPIClient{})
		_, err := client.GenerateEmbedding(context.Background(), 2, []string{"a"})
		gt.Error(t, err)
	})
}
