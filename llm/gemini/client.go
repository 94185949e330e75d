package gemini

import (
	"context"
	"errors"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

const (
	DefaultModel          = "gemini-2.5-flash"
	DefaultEmbeddingModel = "text-embedding-004"
)

var (
	// geminiPromptScope is the logging scope for Gemini prompts
	geminiPromptScope = ctxlog.NewScope("gemini_prompt", ctxlog.EnabledBy("DIGISELF_LOGGING_GEMINI_PROMPT"))

	// geminiResponseScope is the logging scope for Gemini responses
	geminiResponseScope = ctxlog.NewScope("gemini_response", ctxlog.EnabledBy("DIGISELF_LOGGING_GEMINI_RESPONSE"))
)

// Client is a client for the Gemini API on Vertex AI or Google AI. It
// implements digiself.LLMClient, digiself.Embedder and digiself.TokenCounter.
type Client struct {
	api apiClient

	projectID string
	location  string

	// apiKey switches the backend from Vertex AI to the Gemini API.
	apiKey string

	// defaultModel is the model to use for content generation.
	// It can be overridden using WithModel option.
	defaultModel string

	// embeddingModel is the model to use for embeddings.
	// It can be overridden using WithEmbeddingModel option.
	embeddingModel string

	// generationConfig contains the default generation parameters
	generationConfig *genai.GenerateContentConfig
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithModel sets the default model to use for content generation.
// See default model in [DefaultModel].
func WithModel(model string) Option {
	return func(c *Client) {
		c.defaultModel = model
	}
}

// WithEmbeddingModel sets the embedding model.
// See default embedding model in [DefaultEmbeddingModel].
func WithEmbeddingModel(model string) Option {
	return func(c *Client) {
		c.embeddingModel = model
	}
}

// WithAPIKey uses the Gemini API with an API key instead of Vertex AI.
// projectID and location are not required then.
func WithAPIKey(apiKey string) Option {
	return func(c *Client) {
		c.apiKey = apiKey
	}
}

// WithTemperature sets the temperature parameter for text generation.
// Higher values make the output more random, lower values make it more focused.
// Range: 0.0 to 1.0
func WithTemperature(temp float32) Option {
	return func(c *Client) {
		c.generationConfig.Temperature = &temp
	}
}

// WithTopP sets the top_p parameter for text generation.
func WithTopP(topP float32) Option {
	return func(c *Client) {
		c.generationConfig.TopP = &topP
	}
}

// WithTopK sets the top_k parameter for text generation.
func WithTopK(topK float32) Option {
	return func(c *Client) {
		c.generationConfig.TopK = &topK
	}
}

// WithMaxTokens sets the maximum number of tokens to generate.
func WithMaxTokens(maxTokens int32) Option {
	return func(c *Client) {
		c.generationConfig.MaxOutputTokens = maxTokens
	}
}

// WithThinkingBudget sets the thinking budget for text generation.
// A value of -1 enables automatic thinking budget allocation.
func WithThinkingBudget(budget int32) Option {
	return func(c *Client) {
		if c.generationConfig.ThinkingConfig == nil {
			c.generationConfig.ThinkingConfig = &genai.ThinkingConfig{}
		}
		c.generationConfig.ThinkingConfig.ThinkingBudget = &budget
	}
}

func newClient(options ...Option) *Client {
	var budget int32 = 0

	client := &Client{
		defaultModel:   DefaultModel,
		embeddingModel: DefaultEmbeddingModel,
		generationConfig: &genai.GenerateContentConfig{
			ThinkingConfig: &genai.ThinkingConfig{
				ThinkingBudget: &budget,
			},
		},
	}

	for _, option := range options {
		option(client)
	}
	return client
}

// New creates a new client for the Gemini API.
// It requires a project ID and location unless WithAPIKey is given.
func New(ctx context.Context, projectID, location string, options ...Option) (*Client, error) {
	client := newClient(options...)
	client.projectID = projectID
	client.location = location

	config := &genai.ClientConfig{}
	if client.apiKey != "" {
		config.APIKey = client.apiKey
		config.Backend = genai.BackendGeminiAPI
	} else {
		if projectID == "" {
			return nil, goerr.Wrap(digiself.ErrMissingCredential, "projectID is required")
		}
		if location == "" {
			return nil, goerr.Wrap(digiself.ErrMissingCredential, "location is required")
		}
		config.Project = projectID
		config.Location = location
		config.Backend = genai.BackendVertexAI
	}

	genaiClient, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project_id", projectID),
			goerr.V("location", location),
		)
	}

	client.api = &realAPIClient{client: genaiClient}
	return client, nil
}

// buildContents converts history and prompt of a request to Gemini contents.
// Assistant turns use the "model" role.
func buildContents(req *digiself.ContentRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, m := range req.History {
		role := genai.RoleUser
		if m.Role == digiself.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Text}},
		})
	}
	contents = append(contents, &genai.Content{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: req.Prompt}},
	})
	return contents
}

// buildConfig copies the client generation config and applies the request
// specific system instruction and response MIME type.
func (c *Client) buildConfig(req *digiself.ContentRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if c.generationConfig != nil {
		*config = *c.generationConfig
	}

	switch req.ContentType {
	case digiself.ContentTypeJSON:
		config.ResponseMIMEType = "application/json"
	default:
		config.ResponseMIMEType = "text/plain"
	}

	if req.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	return config
}

// GenerateContent sends one stateless generation request.
func (c *Client) GenerateContent(ctx context.Context, req *digiself.ContentRequest) (*digiself.Response, error) {
	contents := buildContents(req)
	config := c.buildConfig(req)

	ctxlog.From(ctx, geminiPromptScope).Info("Gemini prompt",
		"model", c.defaultModel,
		"system_prompt", req.SystemPrompt,
		"contents", contents,
	)

	resp, err := c.api.GenerateContent(ctx, c.defaultModel, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content",
			append(tokenLimitErrorOptions(err), goerr.V("model", c.defaultModel))...)
	}

	response := processResponse(resp)
	if response.Model == "" {
		response.Model = c.defaultModel
	}

	ctxlog.From(ctx, geminiResponseScope).Info("Gemini response",
		"model", response.Model,
		"input_token", response.InputToken,
		"output_token", response.OutputToken,
		"texts", response.Texts,
	)

	return response, nil
}

// processResponse collects the text parts of all candidates. Thought parts
// are not part of the answer and are skipped.
func processResponse(resp *genai.GenerateContentResponse) *digiself.Response {
	response := &digiself.Response{Texts: []string{}}
	if resp == nil {
		return response
	}

	response.Model = resp.ModelVersion
	if resp.UsageMetadata != nil {
		response.InputToken = int(resp.UsageMetadata.PromptTokenCount)
		response.OutputToken = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.Thought || part.Text == "" {
				continue
			}
			response.Texts = append(response.Texts, part.Text)
		}
	}
	return response
}

// CountTokens counts tokens of text with the model's tokenizer.
func (c *Client) CountTokens(ctx context.Context, text string) (int, error) {
	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: text}}},
	}

	result, err := c.api.CountTokens(ctx, c.defaultModel, contents, nil)
	if err != nil {
		return 0, goerr.Wrap(err, "failed to count tokens", goerr.V("model", c.defaultModel))
	}
	return int(result.TotalTokens), nil
}

// tokenLimitErrorOptions tags input token limit errors with digiself.ErrTagTokenExceeded.
func tokenLimitErrorOptions(err error) []goerr.Option {
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
	case errors.As(err, &apiErrPtr) && apiErrPtr != nil:
		apiErr = *apiErrPtr
	default:
		return nil
	}

	if apiErr.Code != 400 {
		return nil
	}

	msg := strings.ToLower(apiErr.Message)
	if strings.Contains(msg, "token") && strings.Contains(msg, "exceeds") {
		return []goerr.Option{goerr.Tag(digiself.ErrTagTokenExceeded)}
	}
	return nil
}
