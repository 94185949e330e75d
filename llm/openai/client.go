package openai

import (
	"context"
	"errors"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"
)

var (
	openaiPromptScope   = ctxlog.NewScope("openai_prompt", ctxlog.EnabledBy("DIGISELF_LOGGING_OPENAI_PROMPT"))
	openaiResponseScope = ctxlog.NewScope("openai_response", ctxlog.EnabledBy("DIGISELF_LOGGING_OPENAI_RESPONSE"))
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	Temperature float32

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int

	// ReasoningEffort tunes how much reasoning time the model spends ("minimal", "medium", "high").
	ReasoningEffort string
}

// Client is a client for the OpenAI API. It implements digiself.LLMClient,
// digiself.Embedder and digiself.TokenCounter.
type Client struct {
	api apiClient

	// defaultModel is the model to use for chat completions.
	defaultModel string

	// embeddingModel is the model to use for embeddings.
	embeddingModel string

	// baseURL is the custom base URL for the OpenAI API.
	baseURL string

	params generationParameters
}

const (
	DefaultModel          = "gpt-5-mini"
	DefaultEmbeddingModel = "text-embedding-3-small"
)

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for chat completions.
// See default model in [DefaultModel].
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithEmbeddingModel sets the embedding model.
// See default embedding model in [DefaultEmbeddingModel].
func WithEmbeddingModel(modelName string) Option {
	return func(c *Client) {
		c.embeddingModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

// WithReasoningEffort sets the reasoning_effort parameter for reasoning models.
func WithReasoningEffort(effort string) Option {
	return func(c *Client) {
		c.params.ReasoningEffort = effort
	}
}

// WithBaseURL sets a custom base URL for OpenAI compatible endpoints.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// New creates a new client for the OpenAI API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(digiself.ErrMissingCredential, "OpenAI API key is required")
	}

	client := &Client{
		defaultModel:   DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
		params: generationParameters{
			ReasoningEffort: "minimal",
		},
	}

	for _, option := range options {
		option(client)
	}

	config := openai.DefaultConfig(apiKey)
	if client.baseURL != "" {
		config.BaseURL = client.baseURL
	}
	client.api = openai.NewClientWithConfig(config)

	return client, nil
}

// buildMessages converts a digiself request into the chat message list.
func buildMessages(req *digiself.ContentRequest) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.History {
		role := openai.ChatMessageRoleUser
		if m.Role == digiself.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Text,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})
	return messages
}

func (c *Client) createRequest(req *digiself.ContentRequest) openai.ChatCompletionRequest {
	openaiReq := openai.ChatCompletionRequest{
		Model:       c.defaultModel,
		Messages:    buildMessages(req),
		Temperature: c.params.Temperature,
		MaxTokens:   c.params.MaxTokens,
	}
	if c.params.ReasoningEffort != "" {
		openaiReq.ReasoningEffort = c.params.ReasoningEffort
	}
	if req.ContentType == digiself.ContentTypeJSON {
		openaiReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return openaiReq
}

// GenerateContent sends one chat completion request.
func (c *Client) GenerateContent(ctx context.Context, req *digiself.ContentRequest) (*digiself.Response, error) {
	openaiReq := c.createRequest(req)

	ctxlog.From(ctx, openaiPromptScope).Info("OpenAI prompt",
		"model", openaiReq.Model,
		"messages", openaiReq.Messages,
	)

	resp, err := c.api.CreateChatCompletion(ctx, openaiReq)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create chat completion",
			append(tokenLimitErrorOptions(err), goerr.V("model", openaiReq.Model))...)
	}

	response := &digiself.Response{
		Texts:       []string{},
		InputToken:  resp.Usage.PromptTokens,
		OutputToken: resp.Usage.CompletionTokens,
		Model:       resp.Model,
	}
	if len(resp.Choices) == 0 {
		return response, nil
	}

	message := resp.Choices[0].Message
	if message.Content != "" {
		response.Texts = append(response.Texts, message.Content)
	}

	ctxlog.From(ctx, openaiResponseScope).Info("OpenAI response",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"usage", map[string]any{
			"prompt_tokens":     resp.Usage.PromptTokens,
			"completion_tokens": resp.Usage.CompletionTokens,
			"total_tokens":      resp.Usage.TotalTokens,
		},
		"content", message.Content,
	)

	return response, nil
}

// CountTokens counts tokens locally with tiktoken. Models unknown to tiktoken
// fall back to the cl100k_base encoding.
func (c *Client) CountTokens(_ context.Context, text string) (int, error) {
	encoding, err := tiktoken.EncodingForModel(c.defaultModel)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return 0, goerr.Wrap(err, "failed to get encoding")
		}
	}
	return len(encoding.Encode(text, nil, nil)), nil
}

// tokenLimitErrorOptions tags context length errors with digiself.ErrTagTokenExceeded.
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr *openai.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.Type != "invalid_request_error" {
		return nil
	}

	codeStr, ok := apiErr.Code.(string)
	if !ok {
		return nil
	}

	if codeStr == "context_length_exceeded" {
		return []goerr.Option{goerr.Tag(digiself.ErrTagTokenExceeded)}
	}

	return nil
}
