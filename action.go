package digiself

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ActionType is the kind of a planner action emitted by the assistant.
type ActionType string

const (
	ActionCreateDiary       ActionType = "CREATE_DIARY"
	ActionCreateMeeting     ActionType = "CREATE_MEETING"
	ActionAddNotification   ActionType = "ADD_NOTIFICATION"
	ActionSendEmail         ActionType = "SEND_EMAIL"
	ActionGenerateVideoLink ActionType = "GENERATE_VIDEO_LINK"
	ActionSetFocus          ActionType = "SET_FOCUS"
	ActionMemorize          ActionType = "MEMORIZE"
	ActionUpdateProfile     ActionType = "UPDATE_PROFILE"
	ActionSetMode           ActionType = "SET_MODE"
)

// ActionTypes returns all known action types in declaration order.
func ActionTypes() []ActionType {
	return []ActionType{
		ActionCreateDiary,
		ActionCreateMeeting,
		ActionAddNotification,
		ActionSendEmail,
		ActionGenerateVideoLink,
		ActionSetFocus,
		ActionMemorize,
		ActionUpdateProfile,
		ActionSetMode,
	}
}

// Valid reports whether x is one of the known action types.
func (x ActionType) Valid() bool {
	for _, t := range ActionTypes() {
		if x == t {
			return true
		}
	}
	return false
}

// normalizeActionType trims and upper-cases a type tag. The assistant is not a
// reliable producer, so "create_diary" and " Create_Diary" are accepted.
func normalizeActionType(s string) ActionType {
	return ActionType(strings.ToUpper(strings.TrimSpace(s)))
}

// PlannerAction is a typed instruction emitted by the assistant. Payload keys
// depend on Type and every one of them is optional.
type PlannerAction struct {
	ID      string     `json:"id,omitempty"`
	Type    ActionType `json:"type"`
	Payload Payload    `json:"payload,omitempty"`
}

// UnmarshalJSON decodes an action leniently. A non-string id is formatted,
// a non-string type becomes empty (and is later skipped as unknown) and a
// non-object payload decodes as an empty payload.
func (x *PlannerAction) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID      any             `json:"id"`
		Type    any             `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	action := PlannerAction{Payload: Payload{}}
	if raw.ID != nil {
		action.ID = stringify(raw.ID)
	}
	if s, ok := raw.Type.(string); ok {
		action.Type = normalizeActionType(s)
	}
	if len(raw.Payload) > 0 {
		var payload map[string]any
		if err := json.Unmarshal(raw.Payload, &payload); err == nil && payload != nil {
			action.Payload = payload
		}
	}

	*x = action
	return nil
}

// LogValue implements slog.LogValuer.
func (x PlannerAction) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("id", x.ID),
		slog.String("type", string(x.Type)),
	}
	if len(x.Payload) > 0 {
		attrs = append(attrs, slog.Any("payload", map[string]any(x.Payload)))
	}
	return slog.GroupValue(attrs...)
}

// Payload is the untyped argument map of a PlannerAction. Accessors never
// fail: a missing or unusable value is reported as absent.
type Payload map[string]any

// String returns the first non-blank value among keys, formatted as a string.
// Numbers and booleans are formatted; objects and lists are ignored.
func (p Payload) String(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := p[key]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		s := strings.TrimSpace(stringify(v))
		if s != "" {
			return s, true
		}
	}
	return "", false
}

// StringOr returns the value of String or def when absent.
func (p Payload) StringOr(def string, keys ...string) string {
	if s, ok := p.String(keys...); ok {
		return s
	}
	return def
}

// Strings returns a list value for the first present key. A JSON list of
// scalars and a comma separated string are both accepted.
func (p Payload) Strings(keys ...string) []string {
	for _, key := range keys {
		v, ok := p[key]
		if !ok || v == nil {
			continue
		}

		var out []string
		switch t := v.(type) {
		case []any:
			for _, item := range t {
				switch item.(type) {
				case map[string]any, []any, nil:
					continue
				}
				if s := strings.TrimSpace(stringify(item)); s != "" {
					out = append(out, s)
				}
			}
		case []string:
			for _, item := range t {
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, s)
				}
			}
		case string:
			for _, item := range strings.Split(t, ",") {
				if s := strings.TrimSpace(item); s != "" {
					out = append(out, s)
				}
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

var payloadTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Time parses the first parseable value among keys. Zone-less layouts are
// interpreted in loc.
func (p Payload) Time(loc *time.Location, keys ...string) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	for _, key := range keys {
		s, ok := p.String(key)
		if !ok {
			continue
		}
		for _, layout := range payloadTimeLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
