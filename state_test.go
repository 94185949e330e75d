package digiself_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/gt"
)

func TestStateCloneIsDeep(t *testing.T) {
	orig := digiself.State{
		Meetings: []digiself.Meeting{{ID: "m", Attendees: []string{"a"}}},
		Memories: []digiself.Memory{{ID: "x", Embedding: []float64{1, 2}}},
		Profile:  digiself.Profile{Preferences: map[string]string{"k": "v"}},
		Focus:    []string{"f"},
	}
	clone := orig.Clone()

	clone.Meetings[0].Attendees[0] = "changed"
	clone.Memories[0].Embedding[0] = 9
	clone.Profile.Preferences["k"] = "changed"
	clone.Focus[0] = "changed"

	gt.Equal(t, orig.Meetings[0].Attendees[0], "a")
	gt.Equal(t, orig.Memories[0].Embedding[0], 1.0)
	gt.Equal(t, orig.Profile.Preferences["k"], "v")
	gt.Equal(t, orig.Focus[0], "f")
}

func TestUpcomingMeetings(t *testing.T) {
	now := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)
	state := digiself.State{Meetings: []digiself.Meeting{
		{ID: "past", StartTime: now.Add(-time.Hour)},
		{ID: "a", StartTime: now},
		{ID: "b", StartTime: now.Add(time.Hour)},
		{ID: "c", StartTime: now.Add(2 * time.Hour)},
	}}

	got := state.UpcomingMeetings(now, 2)
	gt.A(t, got).Length(2)
	gt.Equal(t, got[0].ID, "a")
	gt.Equal(t, got[1].ID, "b")

	gt.A(t, state.UpcomingMeetings(now, 0)).Length(3)
}

func TestCapFocus(t *testing.T) {
	gt.Equal(t, digiself.CapFocus([]string{"a", "b", "c", "d"}), []string{"a", "b", "c"})
	gt.Equal(t, digiself.CapFocus([]string{"a"}), []string{"a"})
}
