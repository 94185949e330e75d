package digiself

import (
	"maps"
	"slices"
	"sort"
	"time"
)

// MaxFocusItems is the number of focus items kept visible. Older items are dropped.
const MaxFocusItems = 3

// DiaryEntry is a single diary record.
type DiaryEntry struct {
	ID        string    `json:"id"`
	Type      string    `json:"diaryType"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Meeting is a scheduled meeting. ExternalEventID and VideoLink are set only
// when the meeting was mirrored into an external calendar.
type Meeting struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
	Attendees       []string  `json:"attendees,omitempty"`
	ExternalEventID string    `json:"externalEventId,omitempty"`
	VideoLink       string    `json:"videoLink,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NotificationKind distinguishes plain notifications from simulated dispatches.
type NotificationKind string

const (
	NotificationKindDefault NotificationKind = "notification"
	NotificationKindEmail   NotificationKind = "email"
	NotificationKindVideo   NotificationKind = "video"
)

// Notification is an entry in the user's notification list.
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	Link      string           `json:"link,omitempty"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Memory is a fact the assistant was asked to remember. Embedding is empty
// when the embedding backend was unavailable at write time.
type Memory struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float64 `json:"embedding,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Profile is the user's profile.
type Profile struct {
	Name        string            `json:"name"`
	Bio         string            `json:"bio"`
	Timezone    string            `json:"timezone"`
	Preferences map[string]string `json:"preferences,omitempty"`
}

// Clone returns a deep copy of the profile.
func (x Profile) Clone() Profile {
	x.Preferences = maps.Clone(x.Preferences)
	return x
}

// State is the application state the planner actions operate on.
type State struct {
	Diary         []DiaryEntry   `json:"diary"`
	Meetings      []Meeting      `json:"meetings"`
	Notifications []Notification `json:"notifications"`
	Focus         []string       `json:"focus"`
	Memories      []Memory       `json:"memories"`
	Profile       Profile        `json:"profile"`
	Mode          string         `json:"mode"`
}

// Clone returns a copy of the state that shares no slices or maps with x.
// Nil collections stay nil.
func (x State) Clone() State {
	var meetings []Meeting
	if x.Meetings != nil {
		meetings = make([]Meeting, len(x.Meetings))
		for i, m := range x.Meetings {
			m.Attendees = slices.Clone(m.Attendees)
			meetings[i] = m
		}
	}
	var memories []Memory
	if x.Memories != nil {
		memories = make([]Memory, len(x.Memories))
		for i, m := range x.Memories {
			m.Embedding = slices.Clone(m.Embedding)
			memories[i] = m
		}
	}

	return State{
		Diary:         slices.Clone(x.Diary),
		Meetings:      meetings,
		Notifications: slices.Clone(x.Notifications),
		Focus:         slices.Clone(x.Focus),
		Memories:      memories,
		Profile:       x.Profile.Clone(),
		Mode:          x.Mode,
	}
}

// UpcomingMeetings returns meetings starting at or after now, at most limit.
func (x State) UpcomingMeetings(now time.Time, limit int) []Meeting {
	var out []Meeting
	for _, m := range x.Meetings {
		if m.StartTime.Before(now) {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// SortMeetings sorts meetings ascending by start time. Meetings with equal
// start keep their relative order.
func SortMeetings(meetings []Meeting) {
	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].StartTime.Before(meetings[j].StartTime)
	})
}

// insertMeeting returns a new sorted slice containing meetings and m. m is
// placed after any meeting with the same start time.
func insertMeeting(meetings []Meeting, m Meeting) []Meeting {
	out := make([]Meeting, 0, len(meetings)+1)
	out = append(out, meetings...)
	out = append(out, m)
	SortMeetings(out)
	return out
}

// pushFocus returns a new focus list with text first, capped at MaxFocusItems.
func pushFocus(focus []string, text string) []string {
	out := make([]string, 0, MaxFocusItems)
	out = append(out, text)
	for _, f := range focus {
		if len(out) >= MaxFocusItems {
			break
		}
		out = append(out, f)
	}
	return out
}

// CapFocus trims a focus list to MaxFocusItems, keeping the head.
func CapFocus(focus []string) []string {
	if len(focus) <= MaxFocusItems {
		return slices.Clone(focus)
	}
	return slices.Clone(focus[:MaxFocusItems])
}
