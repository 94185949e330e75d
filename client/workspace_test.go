package client_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/client"
	"github.com/m-mizutani/digiself/internal"
	"github.com/m-mizutani/gt"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newWorkspace(t *testing.T) (*fakeServer, *client.Workspace) {
	t.Helper()
	fs, c := newFakeServer(t)

	n := 0
	ws := client.NewWorkspace(c,
		client.WithLogger(internal.TestLogger()),
		client.WithReducerOptions(
			digiself.WithClock(func() time.Time { return baseTime }),
			digiself.WithIDGenerator(func() string {
				n++
				return fmt.Sprintf("local-%d", n)
			}),
			digiself.WithLocation(time.UTC),
		),
	)
	return fs, ws
}

func TestWorkspaceLoad(t *testing.T) {
	fs, ws := newWorkspace(t)
	fs.state = digiself.State{
		Diary: []digiself.DiaryEntry{{ID: "d1", Title: "Server"}},
		Focus: []string{"ship"},
		Mode:  "coach",
	}

	gt.NoError(t, ws.Load(t.Context()))
	state := ws.State()
	gt.A(t, state.Diary).Length(1)
	gt.Equal(t, state.Focus, []string{"ship"})
	gt.Equal(t, state.Mode, "coach")
}

func TestWorkspaceApply(t *testing.T) {
	fs, ws := newWorkspace(t)
	ctx := t.Context()

	effects := ws.Apply(ctx, []digiself.PlannerAction{
		{Type: digiself.ActionCreateDiary, Payload: digiself.Payload{"title": "Day 1"}},
		{Type: "TELEPORT"},
		{Type: digiself.ActionCreateMeeting, Payload: digiself.Payload{"title": "B", "startTime": "2025-03-12T10:00:00Z"}},
		{Type: digiself.ActionCreateMeeting, Payload: digiself.Payload{"title": "A", "startTime": "2025-03-11T10:00:00Z"}},
		{Type: digiself.ActionSendEmail, Payload: digiself.Payload{"recipient": "bob", "subject": "hi"}},
		{Type: digiself.ActionSetFocus, Payload: digiself.Payload{"focusText": "write"}},
		{Type: digiself.ActionSetMode, Payload: digiself.Payload{"mode": "coach"}},
	})
	gt.A(t, effects).Length(7)
	gt.False(t, effects[1].Applied)
	for _, eff := range effects {
		gt.Equal(t, eff.Error, "")
	}

	state := ws.State()
	gt.A(t, state.Diary).Length(1)
	gt.Equal(t, state.Diary[0].ID, effects[0].Diary.ID)
	gt.True(t, state.Diary[0].ID != effects[0].ActionID)
	gt.A(t, state.Meetings).Length(2)
	gt.Equal(t, state.Meetings[0].Title, "A")
	gt.Equal(t, state.Notifications[0].Message, "Email sent to bob: hi")

	gt.Equal(t, fs.writes, []string{
		"POST /api/diary",
		"POST /api/meetings",
		"POST /api/meetings",
		"POST /api/notifications",
		"PUT /api/focus",
		"PUT /api/mode",
	})
	gt.Equal(t, fs.state.Diary[0].ID, effects[0].Diary.ID)
	gt.Equal(t, fs.state.Notifications[0].Kind, digiself.NotificationKindEmail)
	gt.Equal(t, fs.state.Focus, []string{"write"})
}

func TestWorkspaceReconcilesFailedWrite(t *testing.T) {
	fs, ws := newWorkspace(t)
	ctx := t.Context()
	fs.state.Diary = []digiself.DiaryEntry{{ID: "server-1", Title: "Kept"}}
	gt.NoError(t, ws.Load(ctx))

	fs.fail["POST /api/diary"] = true
	effects := ws.Apply(ctx, []digiself.PlannerAction{
		{Type: digiself.ActionCreateDiary, Payload: digiself.Payload{"title": "Lost"}},
		{Type: digiself.ActionSetMode, Payload: digiself.Payload{"mode": "calm"}},
	})
	gt.NotEqual(t, effects[0].Error, "")
	gt.Equal(t, effects[1].Error, "")

	state := ws.State()
	gt.A(t, state.Diary).Length(1)
	gt.Equal(t, state.Diary[0].ID, "server-1")
	gt.Equal(t, state.Mode, "calm")
}

func TestWorkspaceDirectCRUD(t *testing.T) {
	fs, ws := newWorkspace(t)
	ctx := t.Context()

	entry, err := ws.AddDiary(ctx, digiself.Payload{})
	gt.NoError(t, err)
	gt.Equal(t, entry.Type, "Reflection")
	gt.Equal(t, entry.Title, "New Entry")

	meeting, err := ws.AddMeeting(ctx, digiself.Payload{"title": "1:1", "attendees": []any{"a@example.com"}})
	gt.NoError(t, err)
	gt.Equal(t, meeting.StartTime, baseTime.Add(time.Hour))

	gt.NoError(t, ws.DeleteDiary(ctx, entry.ID))
	gt.A(t, ws.State().Diary).Length(0)
	gt.A(t, fs.state.Diary).Length(0)

	gt.NoError(t, ws.DeleteMeeting(ctx, meeting.ID))
	gt.A(t, ws.State().Meetings).Length(0)
}

func TestWorkspaceDeleteFailureRestores(t *testing.T) {
	fs, ws := newWorkspace(t)
	ctx := t.Context()
	fs.state.Meetings = []digiself.Meeting{{ID: "m1", Title: "Standup", StartTime: baseTime}}
	gt.NoError(t, ws.Load(ctx))

	fs.fail["DELETE /api/meetings/{id}"] = true
	err := ws.DeleteMeeting(ctx, "m1")
	gt.True(t, errors.Is(err, client.ErrStatus))

	state := ws.State()
	gt.A(t, state.Meetings).Length(1)
	gt.Equal(t, state.Meetings[0].ID, "m1")
}

func TestWorkspaceAddFailure(t *testing.T) {
	fs, ws := newWorkspace(t)
	fs.fail["POST /api/meetings"] = true

	_, err := ws.AddMeeting(t.Context(), digiself.Payload{"title": "x"})
	gt.Error(t, err)
	gt.A(t, ws.State().Meetings).Length(0)
}

func TestWorkspaceChatReplyOnly(t *testing.T) {
	fs, ws := newWorkspace(t)
	ctx := t.Context()
	fs.state.Focus = []string{"read"}
	gt.NoError(t, ws.Load(ctx))
	before := ws.State()

	fs.chat = digiself.AssistantResponse{Reply: "x", Actions: []digiself.PlannerAction{}}
	resp, effects, err := ws.Chat(ctx, "hello")
	gt.NoError(t, err)
	gt.Equal(t, resp.Reply, "x")
	gt.A(t, effects).Length(0)

	gt.Equal(t, ws.State(), before)
	gt.Equal(t, ws.Messages(), []digiself.Message{
		{Role: digiself.RoleUser, Text: "hello"},
		{Role: digiself.RoleAssistant, Text: "x"},
	})
	gt.A(t, fs.writes).Length(0)
}

func TestWorkspaceChatSendsHistory(t *testing.T) {
	fs, ws := newWorkspace(t)
	ctx := t.Context()

	fs.chat = digiself.AssistantResponse{Reply: "first"}
	_, _, err := ws.Chat(ctx, "one")
	gt.NoError(t, err)

	fs.chat = digiself.AssistantResponse{
		Reply:   "noted",
		Actions: []digiself.PlannerAction{{Type: digiself.ActionMemorize, Payload: digiself.Payload{"content": "likes tea"}}},
	}
	_, effects, err := ws.Chat(ctx, "two")
	gt.NoError(t, err)
	gt.A(t, effects).Length(1)
	gt.True(t, effects[0].Applied)

	gt.A(t, fs.lastChat.History).Length(2)
	gt.Equal(t, fs.lastChat.Message, "two")
	gt.A(t, ws.State().Memories).Length(1)
	gt.A(t, fs.state.Memories).Length(1)
}

func TestWorkspaceStateDuringWrite(t *testing.T) {
	fs, ws := newWorkspace(t)
	entered, hold := make(chan struct{}), make(chan struct{})
	fs.mu.Lock()
	fs.entered, fs.hold = entered, hold
	fs.mu.Unlock()
	release := sync.OnceFunc(func() { close(hold) })
	defer release()

	done := make(chan []digiself.Effect)
	go func() {
		done <- ws.Apply(t.Context(), []digiself.PlannerAction{
			{Type: digiself.ActionCreateDiary, Payload: digiself.Payload{"title": "Pending"}},
		})
	}()

	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("write did not reach the server")
	}

	// The entry is visible locally while the request is still in flight.
	read := make(chan digiself.State)
	go func() { read <- ws.State() }()
	select {
	case state := <-read:
		gt.A(t, state.Diary).Length(1)
		gt.Equal(t, state.Diary[0].Title, "Pending")
	case <-time.After(5 * time.Second):
		t.Fatal("State blocked on an in-flight write")
	}
	gt.A(t, ws.Messages()).Length(0)

	release()
	effects := <-done
	gt.A(t, effects).Length(1)
	gt.Equal(t, effects[0].Error, "")
}
