package claude

type APIClient = apiClient

var (
	BuildMessages          = buildMessages
	CreateSystemPrompt     = createSystemPrompt
	UnwrapJSON             = unwrapJSON
	TokenLimitErrorOptions = tokenLimitErrorOptions
)

// NewWithAPIClient creates a client backed by a custom API client for testing.
func NewWithAPIClient(api apiClient, options ...Option) *Client {
	c := newClient(DefaultModel, options...)
	c.api = api
	return c
}
