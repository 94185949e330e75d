// Package app implements the server-side use cases: CRUD per entity,
// meeting creation mirrored to the calendar, calendar sync, chat and plan
// execution.
package app

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/calendar"
	"github.com/m-mizutani/digiself/rag"
	"github.com/m-mizutani/digiself/trace"
	"github.com/m-mizutani/goerr/v2"
)

// App holds the dependencies of every use case. Only the repository is
// required; without an assistant chat fails with ErrMissingCredential and
// without a calendar meetings stay local.
type App struct {
	repo      digiself.Repository
	reducer   *digiself.Reducer
	assistant *digiself.Assistant
	calendar  calendar.Provider
	syncer    *calendar.Syncer
	index     *rag.Index
	newTrace  func() trace.Handler
	logger    *slog.Logger

	reducerOpts []digiself.ReducerOption
	syncOpts    []calendar.SyncOption
}

// Option configures an App.
type Option func(*App)

// WithAssistant enables chat.
func WithAssistant(a *digiself.Assistant) Option {
	return func(x *App) {
		x.assistant = a
	}
}

// WithCalendar connects an external calendar for mirroring and sync.
func WithCalendar(p calendar.Provider) Option {
	return func(x *App) {
		x.calendar = p
	}
}

// WithMemoryIndex enables embeddings for stored memories.
func WithMemoryIndex(index *rag.Index) Option {
	return func(x *App) {
		x.index = index
	}
}

// WithTrace sets a factory for the trace handler of each plan execution.
func WithTrace(newHandler func() trace.Handler) Option {
	return func(x *App) {
		x.newTrace = newHandler
	}
}

// WithReducerOptions passes options to the reducer, e.g. a fixed clock.
func WithReducerOptions(opts ...digiself.ReducerOption) Option {
	return func(x *App) {
		x.reducerOpts = append(x.reducerOpts, opts...)
	}
}

// WithSyncOptions passes options to the calendar syncer.
func WithSyncOptions(opts ...calendar.SyncOption) Option {
	return func(x *App) {
		x.syncOpts = append(x.syncOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(x *App) {
		x.logger = logger
	}
}

// New creates an App over repo.
func New(repo digiself.Repository, opts ...Option) *App {
	x := &App{
		repo:   repo,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(x)
	}

	x.reducer = digiself.NewReducer(append([]digiself.ReducerOption{
		digiself.WithReducerLogger(x.logger),
	}, x.reducerOpts...)...)

	if x.calendar != nil {
		x.syncer = calendar.NewSyncer(x.calendar, repo, append([]calendar.SyncOption{
			calendar.WithLogger(x.logger),
		}, x.syncOpts...)...)
	}
	return x
}

// CalendarConnected reports whether a calendar provider is configured.
func (x *App) CalendarConnected() bool {
	return x.calendar != nil
}

// State loads the whole application state.
func (x *App) State(ctx context.Context) (digiself.State, error) {
	return digiself.LoadState(ctx, x.repo)
}

// Chat answers message with the current state as context. The returned
// actions are not applied.
func (x *App) Chat(ctx context.Context, message string, history []digiself.Message) (*digiself.AssistantResponse, error) {
	if x.assistant == nil {
		return nil, goerr.Wrap(digiself.ErrMissingCredential, "LLM provider is not configured")
	}

	state, err := x.State(ctx)
	if err != nil {
		return nil, err
	}

	return x.assistant.Chat(ctx, digiself.ChatRequest{
		Message: message,
		History: history,
		State:   state,
	})
}

// SyncCalendar pulls the next days of calendar events into meetings.
func (x *App) SyncCalendar(ctx context.Context) (*calendar.SyncResult, error) {
	if x.syncer == nil {
		return nil, goerr.Wrap(digiself.ErrCalendarNotConnected, "calendar sync requires a calendar provider")
	}
	return x.syncer.Sync(ctx)
}
