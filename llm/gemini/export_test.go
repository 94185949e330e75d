package gemini

import "google.golang.org/genai"

type APIClient = apiClient

var (
	BuildContents          = buildContents
	TokenLimitErrorOptions = tokenLimitErrorOptions
)

// GetGenerationConfig returns the generationConfig for testing
func (c *Client) GetGenerationConfig() *genai.GenerateContentConfig {
	return c.generationConfig
}

// NewWithAPIClient creates a client backed by a custom API client for testing.
func NewWithAPIClient(api apiClient, options ...Option) *Client {
	c := newClient(options...)
	c.api = api
	return c
}
