package digiself

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/goerr/v2"
)

var (
	promptScope   = ctxlog.NewScope("prompt", ctxlog.EnabledBy("DIGISELF_LOGGING_PROMPT"))
	responseScope = ctxlog.NewScope("response", ctxlog.EnabledBy("DIGISELF_LOGGING_RESPONSE"))
)

const (
	DefaultMaxHistory        = 20
	DefaultHistoryTokenLimit = 8000
	DefaultRecallLimit       = 5
)

// Recaller finds the memories most relevant to a query.
type Recaller interface {
	Recall(ctx context.Context, query string, memories []Memory, k int) ([]Memory, error)
}

// ChatRequest is one user turn. History holds the previous turns, oldest first.
type ChatRequest struct {
	Message string    `json:"message"`
	History []Message `json:"history"`
	State   State     `json:"-"`
}

// Assistant turns a user message into an AssistantResponse. It does not
// apply the actions; that is left to the caller.
type Assistant struct {
	llm               LLMClient
	recaller          Recaller
	personas          *Personas
	newTrace          func() trace.Handler
	maxHistory        int
	historyTokenLimit int
	recallLimit       int
	now               func() time.Time
	logger            *slog.Logger
}

// AssistantOption configures an Assistant.
type AssistantOption func(*Assistant)

// WithRecaller enables memory recall for the system prompt.
func WithRecaller(r Recaller) AssistantOption {
	return func(a *Assistant) {
		a.recaller = r
	}
}

// WithPersonas sets the persona set used to resolve the user's mode.
func WithPersonas(p *Personas) AssistantOption {
	return func(a *Assistant) {
		a.personas = p
	}
}

// WithTrace sets a factory for the per-turn trace handler. A new handler is
// created for every Chat call and finished at its end.
func WithTrace(newHandler func() trace.Handler) AssistantOption {
	return func(a *Assistant) {
		a.newTrace = newHandler
	}
}

// WithMaxHistory caps the number of history messages sent to the model.
func WithMaxHistory(n int) AssistantOption {
	return func(a *Assistant) {
		a.maxHistory = n
	}
}

// WithHistoryTokenLimit sets the token budget of system prompt, history and
// message. It applies only when the LLM client implements TokenCounter.
func WithHistoryTokenLimit(n int) AssistantOption {
	return func(a *Assistant) {
		a.historyTokenLimit = n
	}
}

// WithRecallLimit sets how many memories are recalled per turn.
func WithRecallLimit(n int) AssistantOption {
	return func(a *Assistant) {
		a.recallLimit = n
	}
}

// WithAssistantClock sets the time source used for the prompt.
func WithAssistantClock(now func() time.Time) AssistantOption {
	return func(a *Assistant) {
		a.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) AssistantOption {
	return func(a *Assistant) {
		a.logger = logger
	}
}

// NewAssistant creates an Assistant backed by llm.
func NewAssistant(llm LLMClient, opts ...AssistantOption) *Assistant {
	a := &Assistant{
		llm:               llm,
		personas:          DefaultPersonas(),
		maxHistory:        DefaultMaxHistory,
		historyTokenLimit: DefaultHistoryTokenLimit,
		recallLimit:       DefaultRecallLimit,
		now:               time.Now,
		logger:            slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Chat sends the user message with context from req.State to the model and
// parses the answer. A model answer that is not a response object is
// returned as the reply with no actions. An error is returned only when the
// model could not be called or returned nothing.
func (x *Assistant) Chat(ctx context.Context, req ChatRequest) (resp *AssistantResponse, err error) {
	if x.llm == nil {
		return nil, goerr.Wrap(ErrMissingCredential, "LLM client is not configured")
	}
	if req.Message == "" {
		return nil, goerr.Wrap(ErrInvalidParameter, "message is empty")
	}

	ctx = ctxlog.With(ctx, x.logger)

	if x.newTrace != nil {
		h := x.newTrace()
		ctx = trace.WithHandler(ctx, h)
		ctx = h.StartTurn(ctx, trace.SpanKindChat)
		defer func() {
			h.EndTurn(ctx, err)
			if finishErr := h.Finish(ctx); finishErr != nil {
				x.logger.Warn("failed to finish trace", "error", finishErr)
			}
		}()
	}

	memories := x.recall(ctx, req)

	systemPrompt, err := buildSystemPrompt(x.personas, req.State, memories, x.now())
	if err != nil {
		return nil, err
	}

	history := x.trimHistory(ctx, systemPrompt, req.Message, req.History)
	contentReq := &ContentRequest{
		SystemPrompt: systemPrompt,
		History:      history,
		Prompt:       req.Message,
		ContentType:  ContentTypeJSON,
	}

	promptLogger := ctxlog.From(ctx, promptScope)
	promptLogger.Info("assistant prompt",
		"system_prompt", systemPrompt,
		"history", history,
		"message", req.Message,
	)

	llmResp, err := x.generate(ctx, contentReq)
	if err != nil {
		return nil, err
	}

	text := llmResp.Text()
	resp = ParseAssistantResponse(text)

	ctxlog.From(ctx, responseScope).Info("assistant response",
		"text", text,
		"reply", resp.Reply,
		"actions", resp.Actions,
	)
	x.logger.Debug("assistant answered",
		"actions", len(resp.Actions),
		"input_token", llmResp.InputToken,
		"output_token", llmResp.OutputToken,
	)

	return resp, nil
}

func (x *Assistant) generate(ctx context.Context, req *ContentRequest) (resp *Response, err error) {
	h := trace.HandlerFrom(ctx)
	if h != nil {
		ctx = h.StartLLMCall(ctx)
		defer func() {
			h.EndLLMCall(ctx, llmCallData(req, resp), err)
		}()
	}

	resp, err = x.llm.GenerateContent(ctx, req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate content")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.Wrap(ErrEmptyResponse, "no text in LLM response")
	}
	return resp, nil
}

func llmCallData(req *ContentRequest, resp *Response) *trace.LLMCallData {
	messages := make([]trace.Message, 0, len(req.History)+1)
	for _, m := range req.History {
		messages = append(messages, trace.Message{Role: string(m.Role), Content: m.Text})
	}
	messages = append(messages, trace.Message{Role: string(RoleUser), Content: req.Prompt})

	data := &trace.LLMCallData{
		Request: &trace.LLMRequest{
			SystemPrompt: req.SystemPrompt,
			Messages:     messages,
		},
	}
	if resp == nil {
		return data
	}

	parsed := ParseAssistantResponse(resp.Text())
	data.InputTokens = resp.InputToken
	data.OutputTokens = resp.OutputToken
	data.Model = resp.Model
	data.Response = &trace.LLMResponse{
		Texts:   resp.Texts,
		Reply:   parsed.Reply,
		Actions: TraceActions(parsed.Actions),
	}
	return data
}

// TraceActions converts planner actions to their trace representation.
func TraceActions(actions []PlannerAction) []trace.Action {
	out := make([]trace.Action, len(actions))
	for i, a := range actions {
		out[i] = TraceAction(a)
	}
	return out
}

// TraceAction converts a planner action to its trace representation.
func TraceAction(a PlannerAction) trace.Action {
	return trace.Action{ID: a.ID, Type: string(a.Type), Payload: a.Payload}
}

func (x *Assistant) recall(ctx context.Context, req ChatRequest) []Memory {
	if x.recaller == nil || len(req.State.Memories) == 0 {
		return nil
	}

	memories, err := x.recaller.Recall(ctx, req.Message, req.State.Memories, x.recallLimit)
	if err != nil {
		x.logger.Warn("failed to recall memories, continue without them", "error", err)
		return nil
	}

	if h := trace.HandlerFrom(ctx); h != nil {
		contents := make([]string, len(memories))
		for i, m := range memories {
			contents[i] = m.Content
		}
		h.AddEvent(ctx, "recall", map[string]any{"memories": contents})
	}
	return memories
}

// trimHistory keeps the newest messages within maxHistory and, when the LLM
// counts tokens, within historyTokenLimit.
func (x *Assistant) trimHistory(ctx context.Context, systemPrompt, message string, history []Message) []Message {
	if x.maxHistory >= 0 && len(history) > x.maxHistory {
		history = history[len(history)-x.maxHistory:]
	}

	counter, ok := x.llm.(TokenCounter)
	if !ok || x.historyTokenLimit <= 0 || len(history) == 0 {
		return history
	}

	used, err := counter.CountTokens(ctx, systemPrompt+"\n"+message)
	if err != nil {
		x.logger.Warn("failed to count tokens, history is not trimmed", "error", err)
		return history
	}

	// Walk from the newest message and stop at the first one over budget.
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n, err := counter.CountTokens(ctx, history[i].Text)
		if err != nil {
			x.logger.Warn("failed to count tokens, history is not trimmed", "error", err)
			return history
		}
		if used+n > x.historyTokenLimit {
			break
		}
		used += n
		start = i
	}

	if start > 0 {
		if h := trace.HandlerFrom(ctx); h != nil {
			h.AddEvent(ctx, "history_trimmed", map[string]any{"dropped": start})
		}
	}
	return history[start:]
}
