package trace

// LLMCallData holds data specific to an LLM call span.
type LLMCallData struct {
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
	Model        string `json:"model,omitempty"`

	Request  *LLMRequest  `json:"request"`
	Response *LLMResponse `json:"response"`
}

// LLMRequest represents the request sent to an LLM.
type LLMRequest struct {
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Messages     []Message `json:"messages"`
}

// LLMResponse represents the raw response from an LLM and what was parsed out of it.
type LLMResponse struct {
	Texts   []string `json:"texts,omitempty"`
	Reply   string   `json:"reply,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Message represents a chat message in the trace.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Action represents a planner action in the trace.
type Action struct {
	ID      string         `json:"id,omitempty"`
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

// ActionData holds data specific to an action span.
type ActionData struct {
	Action
	Applied bool   `json:"applied"`
	Reason  string `json:"reason,omitempty"`
	Error   string `json:"error,omitempty"`
}

// EventData holds data of an event span, e.g. memories recalled for a prompt.
type EventData struct {
	Kind string `json:"kind"`
	Data any    `json:"data"`
}
