package digiself_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/internal"
	"github.com/m-mizutani/gt"
)

var baseTime = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func newTestReducer() *digiself.Reducer {
	seq := 0
	return digiself.NewReducer(
		digiself.WithClock(func() time.Time { return baseTime }),
		digiself.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("id-%03d", seq)
		}),
		digiself.WithLocation(time.UTC),
		digiself.WithReducerLogger(internal.TestLogger()),
	)
}

func action(t digiself.ActionType, payload digiself.Payload) digiself.PlannerAction {
	return digiself.PlannerAction{Type: t, Payload: payload}
}

func TestApplyAllContinuesAfterUnknownType(t *testing.T) {
	r := newTestReducer()
	state, effects := r.ApplyAll(digiself.State{}, []digiself.PlannerAction{
		action(digiself.ActionCreateDiary, digiself.Payload{"title": "first"}),
		action("SUMMON_DRAGON", digiself.Payload{"name": "x"}),
		action(digiself.ActionAddNotification, digiself.Payload{"message": "after"}),
	})

	gt.A(t, effects).Length(3)
	gt.True(t, effects[0].Applied)
	gt.False(t, effects[1].Applied)
	gt.Equal(t, effects[1].Reason, "unknown action type")
	gt.True(t, effects[2].Applied)

	gt.A(t, state.Diary).Length(1)
	gt.A(t, state.Notifications).Length(1)
	gt.Equal(t, state.Notifications[0].Message, "after")
}

func TestCreateDiaryDefaults(t *testing.T) {
	r := newTestReducer()
	state, eff := r.Apply(digiself.State{}, action(digiself.ActionCreateDiary, digiself.Payload{}))

	gt.True(t, eff.Applied)
	gt.A(t, state.Diary).Length(1)

	entry := state.Diary[0]
	gt.Equal(t, entry.Type, "Reflection")
	gt.Equal(t, entry.Title, "New Entry")
	gt.Equal(t, entry.Content, "")
	gt.Equal(t, entry.CreatedAt, baseTime)
	gt.NotEqual(t, entry.ID, "")
	gt.Equal(t, *eff.Diary, entry)
}

func TestCreateDiaryWithPayload(t *testing.T) {
	r := newTestReducer()
	state, _ := r.Apply(digiself.State{}, action(digiself.ActionCreateDiary, digiself.Payload{
		"diaryType": "Gratitude",
		"title":     "Sunny day",
		"content":   "Walked in the park",
	}))

	gt.Equal(t, state.Diary[0].Type, "Gratitude")
	gt.Equal(t, state.Diary[0].Title, "Sunny day")
	gt.Equal(t, state.Diary[0].Content, "Walked in the park")
}

func TestCreateMeetingKeepsOrder(t *testing.T) {
	starts := []string{
		"2025-06-03T15:00:00Z",
		"2025-06-03T09:00:00Z",
		"2025-06-05T10:00:00Z",
		"2025-06-02T18:30:00Z",
		"2025-06-03T09:00:00Z",
	}

	r := newTestReducer()
	state := digiself.State{}
	for i, s := range starts {
		state, _ = r.Apply(state, action(digiself.ActionCreateMeeting, digiself.Payload{
			"title":     fmt.Sprintf("m%d", i),
			"startTime": s,
		}))
	}

	gt.A(t, state.Meetings).Length(len(starts))
	for i := 1; i < len(state.Meetings); i++ {
		gt.False(t, state.Meetings[i].StartTime.Before(state.Meetings[i-1].StartTime))
	}

	// equal starts keep insertion order
	gt.Equal(t, state.Meetings[1].Title, "m1")
	gt.Equal(t, state.Meetings[2].Title, "m4")
}

func TestCreateMeetingDefaults(t *testing.T) {
	r := newTestReducer()

	t.Run("empty payload", func(t *testing.T) {
		state, eff := r.Apply(digiself.State{}, action(digiself.ActionCreateMeeting, nil))
		gt.True(t, eff.Applied)
		m := state.Meetings[0]
		gt.Equal(t, m.Title, "New Meeting")
		gt.Equal(t, m.StartTime, baseTime.Add(time.Hour))
		gt.Equal(t, m.EndTime, baseTime.Add(2*time.Hour))
		gt.A(t, m.Attendees).Length(0)
	})

	t.Run("unparseable start", func(t *testing.T) {
		state, _ := r.Apply(digiself.State{}, action(digiself.ActionCreateMeeting, digiself.Payload{
			"startTime": "tomorrow-ish",
		}))
		gt.Equal(t, state.Meetings[0].StartTime, baseTime.Add(time.Hour))
	})

	t.Run("time alias and end before start", func(t *testing.T) {
		state, _ := r.Apply(digiself.State{}, action(digiself.ActionCreateMeeting, digiself.Payload{
			"time":    "2025-06-10 14:00",
			"endTime": "2025-06-10T13:00:00Z",
		}))
		m := state.Meetings[0]
		gt.Equal(t, m.StartTime, time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC))
		gt.Equal(t, m.EndTime, m.StartTime.Add(time.Hour))
	})

	t.Run("attendees as comma separated string", func(t *testing.T) {
		state, _ := r.Apply(digiself.State{}, action(digiself.ActionCreateMeeting, digiself.Payload{
			"attendees": "a@example.com, b@example.com,",
		}))
		gt.Equal(t, state.Meetings[0].Attendees, []string{"a@example.com", "b@example.com"})
	})

	t.Run("attendees as list", func(t *testing.T) {
		state, _ := r.Apply(digiself.State{}, action(digiself.ActionCreateMeeting, digiself.Payload{
			"attendees": []any{"a@example.com", 42.0, map[string]any{"x": 1}},
		}))
		gt.Equal(t, state.Meetings[0].Attendees, []string{"a@example.com", "42"})
	})
}

func TestSetFocusCapsAtThree(t *testing.T) {
	r := newTestReducer()
	state := digiself.State{}
	for _, text := range []string{"one", "two", "three", "four"} {
		state, _ = r.Apply(state, action(digiself.ActionSetFocus, digiself.Payload{"focusText": text}))
	}

	gt.Equal(t, state.Focus, []string{"four", "three", "two"})
}

func TestSetFocusWithoutTextIsSkipped(t *testing.T) {
	r := newTestReducer()
	before := digiself.State{Focus: []string{"keep"}}
	after, eff := r.Apply(before, action(digiself.ActionSetFocus, digiself.Payload{"focusText": "   "}))

	gt.False(t, eff.Applied)
	gt.Equal(t, after.Focus, []string{"keep"})
}

func TestNotificationKinds(t *testing.T) {
	r := newTestReducer()
	state, _ := r.ApplyAll(digiself.State{}, []digiself.PlannerAction{
		action(digiself.ActionAddNotification, nil),
		action(digiself.ActionSendEmail, digiself.Payload{"recipient": "bob@example.com", "subject": "Hello"}),
		action(digiself.ActionSendEmail, nil),
		action(digiself.ActionGenerateVideoLink, nil),
		action(digiself.ActionGenerateVideoLink, digiself.Payload{"platform": "Zoom"}),
	})

	n := state.Notifications
	gt.A(t, n).Length(5)

	gt.Equal(t, n[0].Kind, digiself.NotificationKindDefault)
	gt.Equal(t, n[0].Message, "New notification")

	gt.Equal(t, n[1].Kind, digiself.NotificationKindEmail)
	gt.Equal(t, n[1].Message, "Email sent to bob@example.com: Hello")
	gt.Equal(t, n[2].Message, "Email sent to recipient: (no subject)")

	gt.Equal(t, n[3].Kind, digiself.NotificationKindVideo)
	gt.Equal(t, n[3].Message, "Video link generated on Google Meet")
	gt.S(t, n[3].Link).HasPrefix("https://meet.google.com/")
	gt.S(t, n[4].Link).HasPrefix("https://zoom.us/j/")
}

func TestMemorize(t *testing.T) {
	r := newTestReducer()

	state, eff := r.Apply(digiself.State{}, action(digiself.ActionMemorize, digiself.Payload{"fact": "likes green tea"}))
	gt.True(t, eff.Applied)
	gt.Equal(t, state.Memories[0].Content, "likes green tea")
	gt.Equal(t, eff.Memory.Content, "likes green tea")

	_, eff = r.Apply(state, action(digiself.ActionMemorize, digiself.Payload{}))
	gt.False(t, eff.Applied)
}

func TestUpdateProfile(t *testing.T) {
	r := newTestReducer()
	before := digiself.State{Profile: digiself.Profile{
		Name:        "Old",
		Preferences: map[string]string{"coffee": "black"},
	}}

	after, eff := r.Apply(before, action(digiself.ActionUpdateProfile, digiself.Payload{
		"name":     "Alex",
		"timezone": "Asia/Tokyo",
		"language": "ja",
		"nested":   map[string]any{"ignored": true},
	}))

	gt.True(t, eff.Applied)
	gt.Equal(t, after.Profile.Name, "Alex")
	gt.Equal(t, after.Profile.Timezone, "Asia/Tokyo")
	gt.Equal(t, after.Profile.Preferences, map[string]string{"coffee": "black", "language": "ja"})

	// input state is untouched
	gt.Equal(t, before.Profile.Name, "Old")
	gt.Equal(t, before.Profile.Preferences, map[string]string{"coffee": "black"})

	_, eff = r.Apply(after, action(digiself.ActionUpdateProfile, digiself.Payload{}))
	gt.False(t, eff.Applied)
}

func TestSetMode(t *testing.T) {
	r := newTestReducer()

	state, eff := r.Apply(digiself.State{}, action(digiself.ActionSetMode, digiself.Payload{"mode": "focus"}))
	gt.True(t, eff.Applied)
	gt.Equal(t, state.Mode, "focus")

	state, eff = r.Apply(state, action(digiself.ActionSetMode, nil))
	gt.False(t, eff.Applied)
	gt.Equal(t, state.Mode, "focus")
}

func TestApplyIsNotIdempotent(t *testing.T) {
	r := newTestReducer()
	a := digiself.PlannerAction{ID: "same", Type: digiself.ActionCreateDiary}

	state, _ := r.ApplyAll(digiself.State{}, []digiself.PlannerAction{a, a})
	gt.A(t, state.Diary).Length(2)
	gt.NotEqual(t, state.Diary[0].ID, state.Diary[1].ID)
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	r := newTestReducer()
	before := digiself.State{
		Diary:    make([]digiself.DiaryEntry, 1, 8),
		Focus:    []string{"a", "b", "c"},
		Meetings: []digiself.Meeting{{ID: "m", StartTime: baseTime}},
	}
	snapshot := before.Clone()

	_, _ = r.ApplyAll(before, []digiself.PlannerAction{
		action(digiself.ActionCreateDiary, nil),
		action(digiself.ActionSetFocus, digiself.Payload{"focusText": "d"}),
		action(digiself.ActionCreateMeeting, digiself.Payload{"startTime": "2025-01-01T00:00:00Z"}),
	})

	gt.Equal(t, before, snapshot)
	gt.Equal(t, before.Diary[:cap(before.Diary)][1], digiself.DiaryEntry{})
}

func TestApplyAssignsActionID(t *testing.T) {
	r := newTestReducer()
	_, eff := r.Apply(digiself.State{}, action("NOPE", nil))
	gt.NotEqual(t, eff.ActionID, "")

	_, eff = r.Apply(digiself.State{}, digiself.PlannerAction{ID: "given", Type: digiself.ActionSetMode})
	gt.Equal(t, eff.ActionID, "given")
}

func TestEveryActionTypeIsHandled(t *testing.T) {
	r := newTestReducer()
	for _, typ := range digiself.ActionTypes() {
		t.Run(string(typ), func(t *testing.T) {
			for _, payload := range []digiself.Payload{nil, {}, {"x": nil}, {"title": []any{}}} {
				_, eff := r.Apply(digiself.State{}, action(typ, payload))
				gt.Equal(t, eff.Type, typ)
			}
		})
	}
}
