package digiself

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultDiaryType       = "Reflection"
	DefaultDiaryTitle      = "New Entry"
	DefaultMeetingTitle    = "New Meeting"
	DefaultNotification    = "New notification"
	DefaultEmailRecipient  = "recipient"
	DefaultEmailSubject    = "(no subject)"
	DefaultVideoPlatform   = "Google Meet"
	DefaultMeetingOffset   = time.Hour
	DefaultMeetingDuration = time.Hour
)

// Effect describes what a single planner action did to the state. Exactly
// one of the entity fields is set when Applied is true, matching Type.
// Callers use it to queue the persistence write for the change.
type Effect struct {
	ActionID string     `json:"actionId"`
	Type     ActionType `json:"type"`
	Applied  bool       `json:"applied"`
	Reason   string     `json:"reason,omitempty"`

	Diary        *DiaryEntry   `json:"diary,omitempty"`
	Meeting      *Meeting      `json:"meeting,omitempty"`
	Notification *Notification `json:"notification,omitempty"`
	Memory       *Memory       `json:"memory,omitempty"`
	Focus        []string      `json:"focus,omitempty"`
	Profile      *Profile      `json:"profile,omitempty"`
	Mode         string        `json:"mode,omitempty"`

	// Error is set by callers when persisting the effect failed.
	Error string `json:"error,omitempty"`
}

// LogValue implements slog.LogValuer.
func (x Effect) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("action_id", x.ActionID),
		slog.String("type", string(x.Type)),
		slog.Bool("applied", x.Applied),
	}
	if x.Reason != "" {
		attrs = append(attrs, slog.String("reason", x.Reason))
	}
	if x.Error != "" {
		attrs = append(attrs, slog.String("error", x.Error))
	}
	return slog.GroupValue(attrs...)
}

// Reducer applies planner actions to a State. Apply is a pure function of its
// inputs plus the injected clock and id generator: the given state is never
// modified and a new State is returned.
type Reducer struct {
	now      func() time.Time
	newID    func() string
	location *time.Location
	logger   *slog.Logger
}

// ReducerOption configures a Reducer.
type ReducerOption func(*Reducer)

// WithClock sets the time source. Default is time.Now.
func WithClock(now func() time.Time) ReducerOption {
	return func(r *Reducer) {
		r.now = now
	}
}

// WithIDGenerator sets the id generator for new entities. Default is UUID v7.
func WithIDGenerator(newID func() string) ReducerOption {
	return func(r *Reducer) {
		r.newID = newID
	}
}

// WithLocation sets the location used to interpret zone-less times in payloads.
// Default is time.Local.
func WithLocation(loc *time.Location) ReducerOption {
	return func(r *Reducer) {
		r.location = loc
	}
}

// WithReducerLogger sets the logger that receives skipped-action warnings.
func WithReducerLogger(logger *slog.Logger) ReducerOption {
	return func(r *Reducer) {
		r.logger = logger
	}
}

// NewReducer creates a Reducer.
func NewReducer(opts ...ReducerOption) *Reducer {
	r := &Reducer{
		now:      time.Now,
		newID:    NewID,
		location: time.Local,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewID returns a new UUID v7 string, the id format of every entity.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// ApplyAll folds Apply over actions in order. It never stops early: a skipped
// action leaves the state as it was and processing continues.
func (x *Reducer) ApplyAll(state State, actions []PlannerAction) (State, []Effect) {
	effects := make([]Effect, 0, len(actions))
	for _, action := range actions {
		var eff Effect
		state, eff = x.Apply(state, action)
		effects = append(effects, eff)
	}
	return state, effects
}

// Apply applies a single action. Unknown types and actions missing a field
// that has no default are the identity transform; the returned Effect has
// Applied=false and a Reason.
func (x *Reducer) Apply(state State, action PlannerAction) (next State, eff Effect) {
	if action.ID == "" {
		action.ID = x.newID()
	}
	if action.Payload == nil {
		action.Payload = Payload{}
	}

	defer func() {
		if r := recover(); r != nil {
			next = state
			eff = x.skip(action, fmt.Sprintf("panic while applying action: %v", r))
		}
	}()

	switch action.Type {
	case ActionCreateDiary:
		return x.createDiary(state, action)
	case ActionCreateMeeting:
		return x.createMeeting(state, action)
	case ActionAddNotification:
		return x.addNotification(state, action)
	case ActionSendEmail:
		return x.sendEmail(state, action)
	case ActionGenerateVideoLink:
		return x.generateVideoLink(state, action)
	case ActionSetFocus:
		return x.setFocus(state, action)
	case ActionMemorize:
		return x.memorize(state, action)
	case ActionUpdateProfile:
		return x.updateProfile(state, action)
	case ActionSetMode:
		return x.setMode(state, action)
	default:
		return state, x.skip(action, "unknown action type")
	}
}

func (x *Reducer) skip(action PlannerAction, reason string) Effect {
	x.logger.Warn("skip planner action",
		slog.Any("action", action),
		slog.String("reason", reason),
	)
	return Effect{
		ActionID: action.ID,
		Type:     action.Type,
		Reason:   reason,
	}
}

func applied(action PlannerAction) Effect {
	return Effect{
		ActionID: action.ID,
		Type:     action.Type,
		Applied:  true,
	}
}

func (x *Reducer) createDiary(state State, action PlannerAction) (State, Effect) {
	p := action.Payload
	entry := DiaryEntry{
		ID:        x.newID(),
		Type:      p.StringOr(DefaultDiaryType, "diaryType", "type"),
		Title:     p.StringOr(DefaultDiaryTitle, "title"),
		Content:   p.StringOr("", "content", "text"),
		CreatedAt: x.now(),
	}

	state.Diary = append(slices.Clip(state.Diary), entry)

	eff := applied(action)
	eff.Diary = &entry
	return state, eff
}

func (x *Reducer) createMeeting(state State, action PlannerAction) (State, Effect) {
	p := action.Payload
	now := x.now()

	start, ok := p.Time(x.location, "startTime", "time", "start")
	if !ok {
		start = now.Add(DefaultMeetingOffset)
	}
	end, ok := p.Time(x.location, "endTime", "end")
	if !ok || !end.After(start) {
		end = start.Add(DefaultMeetingDuration)
	}

	meeting := Meeting{
		ID:        x.newID(),
		Title:     p.StringOr(DefaultMeetingTitle, "title"),
		StartTime: start,
		EndTime:   end,
		Attendees: p.Strings("attendees"),
		CreatedAt: now,
	}

	state.Meetings = insertMeeting(state.Meetings, meeting)

	eff := applied(action)
	eff.Meeting = &meeting
	return state, eff
}

func (x *Reducer) appendNotification(state State, action PlannerAction, n Notification) (State, Effect) {
	n.ID = x.newID()
	n.CreatedAt = x.now()
	state.Notifications = append(slices.Clip(state.Notifications), n)

	eff := applied(action)
	eff.Notification = &n
	return state, eff
}

func (x *Reducer) addNotification(state State, action PlannerAction) (State, Effect) {
	return x.appendNotification(state, action, Notification{
		Kind:    NotificationKindDefault,
		Message: action.Payload.StringOr(DefaultNotification, "message", "text", "title"),
	})
}

// sendEmail does not dispatch mail. It records a notification saying it did.
func (x *Reducer) sendEmail(state State, action PlannerAction) (State, Effect) {
	p := action.Payload
	recipient := p.StringOr(DefaultEmailRecipient, "recipient", "to")
	subject := p.StringOr(DefaultEmailSubject, "subject")

	return x.appendNotification(state, action, Notification{
		Kind:    NotificationKindEmail,
		Message: fmt.Sprintf("Email sent to %s: %s", recipient, subject),
	})
}

// generateVideoLink does not call any conferencing provider. The link is synthesized.
func (x *Reducer) generateVideoLink(state State, action PlannerAction) (State, Effect) {
	platform := action.Payload.StringOr(DefaultVideoPlatform, "platform")

	return x.appendNotification(state, action, Notification{
		Kind:    NotificationKindVideo,
		Message: fmt.Sprintf("Video link generated on %s", platform),
		Link:    synthesizeVideoLink(platform, x.newID()),
	})
}

func (x *Reducer) setFocus(state State, action PlannerAction) (State, Effect) {
	text, ok := action.Payload.String("focusText", "focus", "text")
	if !ok {
		return state, x.skip(action, "focusText is required")
	}

	state.Focus = pushFocus(state.Focus, text)

	eff := applied(action)
	eff.Focus = slices.Clone(state.Focus)
	return state, eff
}

func (x *Reducer) memorize(state State, action PlannerAction) (State, Effect) {
	content, ok := action.Payload.String("content", "fact", "text")
	if !ok {
		return state, x.skip(action, "content is required")
	}

	memory := Memory{
		ID:        x.newID(),
		Content:   content,
		CreatedAt: x.now(),
	}
	state.Memories = append(slices.Clip(state.Memories), memory)

	eff := applied(action)
	eff.Memory = &memory
	return state, eff
}

var profileReservedKeys = map[string]bool{
	"name":     true,
	"bio":      true,
	"timezone": true,
}

func (x *Reducer) updateProfile(state State, action PlannerAction) (State, Effect) {
	p := action.Payload
	profile := state.Profile.Clone()
	changed := false

	if v, ok := p.String("name"); ok {
		profile.Name = v
		changed = true
	}
	if v, ok := p.String("bio"); ok {
		profile.Bio = v
		changed = true
	}
	if v, ok := p.String("timezone"); ok {
		profile.Timezone = v
		changed = true
	}
	for key := range p {
		if profileReservedKeys[key] {
			continue
		}
		v, ok := p.String(key)
		if !ok {
			continue
		}
		if profile.Preferences == nil {
			profile.Preferences = map[string]string{}
		}
		profile.Preferences[key] = v
		changed = true
	}

	if !changed {
		return state, x.skip(action, "no profile field in payload")
	}

	state.Profile = profile

	eff := applied(action)
	snapshot := profile.Clone()
	eff.Profile = &snapshot
	return state, eff
}

func (x *Reducer) setMode(state State, action PlannerAction) (State, Effect) {
	mode, ok := action.Payload.String("mode")
	if !ok {
		return state, x.skip(action, "mode is required")
	}

	state.Mode = mode

	eff := applied(action)
	eff.Mode = mode
	return state, eff
}

func synthesizeVideoLink(platform, id string) string {
	code := id
	if len(code) > 12 {
		code = code[len(code)-12:]
	}
	switch platform {
	case "Zoom", "zoom":
		return "https://zoom.us/j/" + code
	case "Teams", "teams", "Microsoft Teams":
		return "https://teams.microsoft.com/l/meetup-join/" + code
	default:
		return "https://meet.google.com/" + code
	}
}
