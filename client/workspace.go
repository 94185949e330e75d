package client

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

// collection names a part of the state that is refetched as a whole.
type collection string

const (
	collectionDiary         collection = "diary"
	collectionMeetings      collection = "meetings"
	collectionNotifications collection = "notifications"
	collectionMemories      collection = "memories"
	collectionFocus         collection = "focus"
	collectionProfile       collection = "profile"
	collectionMode          collection = "mode"
)

// Workspace mirrors the server state in memory. Changes are applied locally
// first and then written to the server. When a write fails the affected
// collection is fetched again and replaces the local copy; the write is not
// retried.
//
// Writes are serialized by writeMu so the server sees them in apply order.
// mu guards state and messages only and is never held during a request, so
// State and Messages do not wait for the network.
type Workspace struct {
	client      *Client
	reducer     *digiself.Reducer
	reducerOpts []digiself.ReducerOption
	logger      *slog.Logger

	writeMu sync.Mutex

	mu       sync.Mutex
	state    digiself.State
	messages []digiself.Message
}

// WorkspaceOption configures a Workspace.
type WorkspaceOption func(*Workspace)

// WithReducerOptions passes options to the local reducer.
func WithReducerOptions(opts ...digiself.ReducerOption) WorkspaceOption {
	return func(x *Workspace) {
		x.reducerOpts = append(x.reducerOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) WorkspaceOption {
	return func(x *Workspace) {
		x.logger = logger
	}
}

// NewWorkspace creates an empty workspace. Call Load to fetch the state.
func NewWorkspace(client *Client, opts ...WorkspaceOption) *Workspace {
	x := &Workspace{
		client: client,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(x)
	}
	x.reducer = digiself.NewReducer(append([]digiself.ReducerOption{
		digiself.WithReducerLogger(x.logger),
	}, x.reducerOpts...)...)
	return x
}

// Load replaces the local state with the server state.
func (x *Workspace) Load(ctx context.Context) error {
	state, err := x.client.State(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to load state")
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.state = state
	return nil
}

// State returns a copy of the local state.
func (x *Workspace) State() digiself.State {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.state.Clone()
}

// Messages returns a copy of the chat messages of this workspace.
func (x *Workspace) Messages() []digiself.Message {
	x.mu.Lock()
	defer x.mu.Unlock()
	return slices.Clone(x.messages)
}

// Chat sends message with the chat history, records both turns and applies
// the returned actions. A reply without actions changes only the messages.
func (x *Workspace) Chat(ctx context.Context, message string) (*digiself.AssistantResponse, []digiself.Effect, error) {
	history := x.Messages()

	resp, err := x.client.Chat(ctx, message, history)
	if err != nil {
		return nil, nil, err
	}

	x.mu.Lock()
	x.messages = append(x.messages,
		digiself.Message{Role: digiself.RoleUser, Text: message},
		digiself.Message{Role: digiself.RoleAssistant, Text: resp.Reply},
	)
	x.mu.Unlock()

	return resp, x.Apply(ctx, resp.Actions), nil
}

// Apply applies actions in order. Each applied action is written to the
// server before the next one is applied. A failed write sets Effect.Error
// and reconciles the affected collection; the remaining actions still run.
func (x *Workspace) Apply(ctx context.Context, actions []digiself.PlannerAction) []digiself.Effect {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	effects := make([]digiself.Effect, 0, len(actions))
	for _, action := range actions {
		x.mu.Lock()
		var eff digiself.Effect
		x.state, eff = x.reducer.Apply(x.state, action)
		x.mu.Unlock()

		if eff.Applied {
			if err := x.write(ctx, eff); err != nil {
				eff.Error = err.Error()
				x.reconcile(ctx, collectionOf(eff), err)
			}
		}
		effects = append(effects, eff)
	}
	return effects
}

// AddDiary creates a diary entry from payload.
func (x *Workspace) AddDiary(ctx context.Context, payload digiself.Payload) (*digiself.DiaryEntry, error) {
	eff, err := x.applyOne(ctx, digiself.ActionCreateDiary, payload)
	if err != nil {
		return nil, err
	}
	return eff.Diary, nil
}

// AddMeeting creates a meeting from payload.
func (x *Workspace) AddMeeting(ctx context.Context, payload digiself.Payload) (*digiself.Meeting, error) {
	eff, err := x.applyOne(ctx, digiself.ActionCreateMeeting, payload)
	if err != nil {
		return nil, err
	}
	return eff.Meeting, nil
}

// DeleteDiary removes an entry locally, then on the server.
func (x *Workspace) DeleteDiary(ctx context.Context, id string) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	x.mu.Lock()
	x.state.Diary = slices.DeleteFunc(slices.Clone(x.state.Diary), func(e digiself.DiaryEntry) bool {
		return e.ID == id
	})
	x.mu.Unlock()

	if err := x.client.DeleteDiary(ctx, id); err != nil {
		x.reconcile(ctx, collectionDiary, err)
		return err
	}
	return nil
}

// DeleteMeeting removes a meeting locally, then on the server.
func (x *Workspace) DeleteMeeting(ctx context.Context, id string) error {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	x.mu.Lock()
	x.state.Meetings = slices.DeleteFunc(slices.Clone(x.state.Meetings), func(m digiself.Meeting) bool {
		return m.ID == id
	})
	x.mu.Unlock()

	if err := x.client.DeleteMeeting(ctx, id); err != nil {
		x.reconcile(ctx, collectionMeetings, err)
		return err
	}
	return nil
}

func (x *Workspace) applyOne(ctx context.Context, typ digiself.ActionType, payload digiself.Payload) (*digiself.Effect, error) {
	x.writeMu.Lock()
	defer x.writeMu.Unlock()

	x.mu.Lock()
	next, eff := x.reducer.Apply(x.state, digiself.PlannerAction{Type: typ, Payload: payload})
	if eff.Applied {
		x.state = next
	}
	x.mu.Unlock()

	if !eff.Applied {
		return nil, goerr.Wrap(digiself.ErrInvalidParameter, eff.Reason, goerr.V("type", typ))
	}

	if err := x.write(ctx, eff); err != nil {
		x.reconcile(ctx, collectionOf(eff), err)
		return nil, err
	}
	return &eff, nil
}

// write sends the REST request that persists eff.
func (x *Workspace) write(ctx context.Context, eff digiself.Effect) error {
	var err error
	switch {
	case eff.Diary != nil:
		_, err = x.client.CreateDiary(ctx, *eff.Diary)
	case eff.Meeting != nil:
		_, err = x.client.CreateMeeting(ctx, *eff.Meeting)
	case eff.Notification != nil:
		_, err = x.client.AddNotification(ctx, *eff.Notification)
	case eff.Memory != nil:
		_, err = x.client.Memorize(ctx, *eff.Memory)
	case eff.Type == digiself.ActionSetFocus:
		_, err = x.client.PutFocus(ctx, eff.Focus)
	case eff.Profile != nil:
		_, err = x.client.UpdateProfile(ctx, profileFields(*eff.Profile))
	case eff.Type == digiself.ActionSetMode:
		_, err = x.client.PutMode(ctx, eff.Mode)
	}
	return err
}

func profileFields(p digiself.Profile) map[string]any {
	fields := map[string]any{
		"name":     p.Name,
		"bio":      p.Bio,
		"timezone": p.Timezone,
	}
	for k, v := range p.Preferences {
		fields[k] = v
	}
	return fields
}

func collectionOf(eff digiself.Effect) collection {
	switch eff.Type {
	case digiself.ActionCreateDiary:
		return collectionDiary
	case digiself.ActionCreateMeeting:
		return collectionMeetings
	case digiself.ActionAddNotification, digiself.ActionSendEmail, digiself.ActionGenerateVideoLink:
		return collectionNotifications
	case digiself.ActionMemorize:
		return collectionMemories
	case digiself.ActionSetFocus:
		return collectionFocus
	case digiself.ActionUpdateProfile:
		return collectionProfile
	case digiself.ActionSetMode:
		return collectionMode
	}
	return ""
}

// reconcile replaces one collection with the server's copy. The fetch runs
// without x.mu. A failed refetch leaves the local state as it is.
func (x *Workspace) reconcile(ctx context.Context, c collection, cause error) {
	x.logger.Warn("write failed, refetching from server",
		slog.String("collection", string(c)),
		slog.Any("error", cause),
	)

	set, err := x.refetch(ctx, c)
	if err != nil {
		x.logger.Error("failed to refetch collection",
			slog.String("collection", string(c)),
			slog.Any("error", err),
		)
		return
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	set(&x.state)
}

// refetch fetches c and returns a setter that stores it into a state.
func (x *Workspace) refetch(ctx context.Context, c collection) (func(*digiself.State), error) {
	switch c {
	case collectionDiary:
		v, err := x.client.ListDiary(ctx)
		return func(s *digiself.State) { s.Diary = v }, err
	case collectionMeetings:
		v, err := x.client.ListMeetings(ctx)
		return func(s *digiself.State) { s.Meetings = v }, err
	case collectionNotifications:
		v, err := x.client.ListNotifications(ctx)
		return func(s *digiself.State) { s.Notifications = v }, err
	case collectionMemories:
		v, err := x.client.ListMemories(ctx)
		return func(s *digiself.State) { s.Memories = v }, err
	case collectionFocus:
		v, err := x.client.GetFocus(ctx)
		return func(s *digiself.State) { s.Focus = v }, err
	case collectionProfile:
		v, err := x.client.GetProfile(ctx)
		if err != nil {
			return nil, err
		}
		return func(s *digiself.State) { s.Profile = *v }, nil
	case collectionMode:
		v, err := x.client.GetMode(ctx)
		return func(s *digiself.State) { s.Mode = v }, err
	}
	return func(*digiself.State) {}, nil
}
