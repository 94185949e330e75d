package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultModel = "claude-sonnet-4-5"

	// DefaultVertexModel is the default model of Claude on Vertex AI.
	DefaultVertexModel = "claude-sonnet-4-5@20250929"

	// jsonInstruction is appended to the system prompt in JSON mode.
	jsonInstruction = "Respond with a single JSON object only. Do not wrap it in markdown."
)

var (
	claudePromptScope   = ctxlog.NewScope("claude_prompt", ctxlog.EnabledBy("DIGISELF_LOGGING_CLAUDE_PROMPT"))
	claudeResponseScope = ctxlog.NewScope("claude_response", ctxlog.EnabledBy("DIGISELF_LOGGING_CLAUDE_RESPONSE"))
)

// generationParameters represents the parameters for text generation.
type generationParameters struct {
	// Temperature controls randomness in the output.
	// Higher values make the output more random, lower values make it more focused.
	Temperature float64

	// TopP controls diversity via nucleus sampling.
	// Higher values allow more diverse outputs.
	TopP float64

	// MaxTokens limits the number of tokens to generate.
	MaxTokens int64
}

// Client is a client for the Claude API, either direct or via Vertex AI.
// It implements digiself.LLMClient and digiself.TokenCounter.
type Client struct {
	api apiClient

	// defaultModel is the model to use for content generation.
	// It can be overridden using WithModel option.
	defaultModel string

	// generation parameters
	params generationParameters
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for content generation.
// The model name should be a valid Claude model identifier.
// Default: [DefaultModel], or [DefaultVertexModel] for NewWithVertex
func WithModel(modelName string) Option {
	return func(c *Client) {
		c.defaultModel = modelName
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Range: 0.0 to 1.0
// Default: 0.7
func WithTemperature(temp float64) Option {
	return func(c *Client) {
		c.params.Temperature = temp
	}
}

// WithTopP sets the top_p parameter for text generation.
// Zero leaves it unset; recent models reject temperature and top_p together.
func WithTopP(topP float64) Option {
	return func(c *Client) {
		c.params.TopP = topP
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
// Default: 4096
func WithMaxTokens(maxTokens int64) Option {
	return func(c *Client) {
		c.params.MaxTokens = maxTokens
	}
}

func newClient(model string, options ...Option) *Client {
	client := &Client{
		defaultModel: model,
		params: generationParameters{
			Temperature: 0.7,
			MaxTokens:   4096,
		},
	}
	for _, opt := range options {
		opt(client)
	}
	return client
}

// New creates a new client for the Claude API.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, goerr.Wrap(digiself.ErrMissingCredential, "Claude API key is required")
	}

	client := newClient(DefaultModel, options...)
	anthropicClient := anthropic.NewClient(
		option.WithAPIKey(apiKey),
	)
	client.api = &realAPIClient{client: &anthropicClient}

	return client, nil
}

// NewWithVertex creates a new client for Claude models on Vertex AI. It
// authenticates with Google application default credentials.
func NewWithVertex(ctx context.Context, region, projectID string, options ...Option) (*Client, error) {
	if region == "" {
		return nil, goerr.Wrap(digiself.ErrMissingCredential, "region is required")
	}
	if projectID == "" {
		return nil, goerr.Wrap(digiself.ErrMissingCredential, "projectID is required")
	}

	client := newClient(DefaultVertexModel, options...)
	anthropicClient := anthropic.NewClient(
		vertex.WithGoogleAuth(ctx, region, projectID),
	)
	client.api = &realAPIClient{client: &anthropicClient}

	return client, nil
}

// buildMessages converts history and prompt of a request to Claude messages.
func buildMessages(req *digiself.ContentRequest) []anthropic.MessageParam {
	messages := make([]anthropic.MessageParam, 0, len(req.History)+1)
	for _, m := range req.History {
		block := anthropic.NewTextBlock(m.Text)
		if m.Role == digiself.RoleAssistant {
			messages = append(messages, anthropic.NewAssistantMessage(block))
		} else {
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}
	messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)))
	return messages
}

// createSystemPrompt returns the system blocks of a request. JSON mode adds
// an instruction since the API has no response format switch.
func createSystemPrompt(req *digiself.ContentRequest) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	if req.SystemPrompt != "" {
		blocks = append(blocks, anthropic.TextBlockParam{Text: req.SystemPrompt})
	}
	if req.ContentType == digiself.ContentTypeJSON {
		blocks = append(blocks, anthropic.TextBlockParam{Text: jsonInstruction})
	}
	return blocks
}

func (c *Client) createRequest(req *digiself.ContentRequest) anthropic.MessageNewParams {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.defaultModel),
		MaxTokens:   c.params.MaxTokens,
		Temperature: anthropic.Float(c.params.Temperature),
		System:      createSystemPrompt(req),
		Messages:    buildMessages(req),
	}
	if c.params.TopP > 0 {
		params.TopP = anthropic.Float(c.params.TopP)
	}
	return params
}

// GenerateContent sends one Messages API request.
func (c *Client) GenerateContent(ctx context.Context, req *digiself.ContentRequest) (*digiself.Response, error) {
	params := c.createRequest(req)

	ctxlog.From(ctx, claudePromptScope).Info("Claude prompt",
		"model", c.defaultModel,
		"system", params.System,
		"messages", params.Messages,
	)

	resp, err := c.api.MessagesNew(ctx, params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create message",
			append(tokenLimitErrorOptions(err), goerr.V("model", c.defaultModel))...)
	}

	response := processResponse(resp, req.ContentType)

	ctxlog.From(ctx, claudeResponseScope).Info("Claude response",
		"model", response.Model,
		"stop_reason", resp.StopReason,
		"input_token", response.InputToken,
		"output_token", response.OutputToken,
		"texts", response.Texts,
	)

	return response, nil
}

// processResponse collects the text blocks of a message.
func processResponse(resp *anthropic.Message, contentType digiself.ContentType) *digiself.Response {
	response := &digiself.Response{
		Texts:       []string{},
		InputToken:  int(resp.Usage.InputTokens),
		OutputToken: int(resp.Usage.OutputTokens),
		Model:       string(resp.Model),
	}

	for _, content := range resp.Content {
		if content.Type != "text" || content.Text == "" {
			continue
		}
		response.Texts = append(response.Texts, content.Text)
	}

	if contentType == digiself.ContentTypeJSON && len(response.Texts) > 0 {
		response.Texts = []string{unwrapJSON(strings.Join(response.Texts, ""))}
	}
	return response
}

// CountTokens counts tokens of text with the count_tokens endpoint.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	result, err := c.api.MessagesCountTokens(ctx, anthropic.MessageCountTokensParams{
		Model:    anthropic.Model(c.defaultModel),
		Messages: []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(text))},
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count tokens", goerr.V("model", c.defaultModel))
	}
	return int(result.InputTokens), nil
}

// tokenLimitErrorOptions tags "prompt is too long" errors with digiself.ErrTagTokenExceeded.
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return nil
	}

	if apiErr.StatusCode != http.StatusBadRequest {
		return nil
	}

	if strings.Contains(apiErr.RawJSON(), "prompt is too long") {
		return []goerr.Option{goerr.Tag(digiself.ErrTagTokenExceeded)}
	}
	return nil
}
