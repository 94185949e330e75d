// Package repotest holds the behavior every digiself.Repository
// implementation must share.
package repotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/gt"
)

// Run tests the repository returned by newRepo. newRepo must return an
// empty repository on every call.
func Run(t *testing.T, newRepo func(t *testing.T) digiself.Repository) {
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("diary", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		entries, err := repo.ListDiary(ctx)
		gt.NoError(t, err)
		gt.A(t, entries).Length(0)

		gt.NoError(t, repo.PutDiary(ctx, digiself.DiaryEntry{ID: "d1", Type: "Reflection", Title: "first", CreatedAt: base}))
		gt.NoError(t, repo.PutDiary(ctx, digiself.DiaryEntry{ID: "d2", Type: "Idea", Title: "second", Content: "body", CreatedAt: base.Add(time.Minute)}))
		gt.NoError(t, repo.PutDiary(ctx, digiself.DiaryEntry{ID: "d1", Type: "Reflection", Title: "first (edited)", CreatedAt: base}))

		entries, err = repo.ListDiary(ctx)
		gt.NoError(t, err)
		gt.A(t, entries).Length(2)
		gt.Equal(t, entries[0].ID, "d1")
		gt.Equal(t, entries[0].Title, "first (edited)")
		gt.Equal(t, entries[1].Content, "body")
		gt.True(t, entries[1].CreatedAt.Equal(base.Add(time.Minute)))

		gt.NoError(t, repo.DeleteDiary(ctx, "d1"))
		gt.True(t, errors.Is(repo.DeleteDiary(ctx, "d1"), digiself.ErrNotFound))

		entries, err = repo.ListDiary(ctx)
		gt.NoError(t, err)
		gt.A(t, entries).Length(1)
	})

	t.Run("meetings are sorted by start", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		gt.NoError(t, repo.PutMeeting(ctx, digiself.Meeting{ID: "late", Title: "late", StartTime: base.Add(3 * time.Hour), EndTime: base.Add(4 * time.Hour)}))
		gt.NoError(t, repo.PutMeeting(ctx, digiself.Meeting{
			ID:              "early",
			Title:           "early",
			StartTime:       base,
			EndTime:         base.Add(time.Hour),
			Attendees:       []string{"a@example.com", "b@example.com"},
			ExternalEventID: "ev-1",
			VideoLink:       "https://meet.google.com/x",
		}))

		meetings, err := repo.ListMeetings(ctx)
		gt.NoError(t, err)
		gt.A(t, meetings).Length(2)
		gt.Equal(t, meetings[0].ID, "early")
		gt.Equal(t, meetings[0].Attendees, []string{"a@example.com", "b@example.com"})
		gt.Equal(t, meetings[0].ExternalEventID, "ev-1")
		gt.Equal(t, meetings[0].VideoLink, "https://meet.google.com/x")
		gt.True(t, meetings[0].EndTime.Equal(base.Add(time.Hour)))
		gt.Equal(t, meetings[1].ID, "late")

		gt.NoError(t, repo.DeleteMeeting(ctx, "late"))
		gt.True(t, errors.Is(repo.DeleteMeeting(ctx, "late"), digiself.ErrNotFound))
	})

	t.Run("notifications", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		_, err := repo.GetNotification(ctx, "n1")
		gt.True(t, errors.Is(err, digiself.ErrNotFound))

		n := digiself.Notification{ID: "n1", Kind: digiself.NotificationKindVideo, Message: "link", Link: "https://zoom.us/j/1", CreatedAt: base}
		gt.NoError(t, repo.PutNotification(ctx, n))

		n.Read = true
		gt.NoError(t, repo.PutNotification(ctx, n))

		got, err := repo.GetNotification(ctx, "n1")
		gt.NoError(t, err)
		gt.True(t, got.Read)
		gt.Equal(t, got.Kind, digiself.NotificationKindVideo)
		gt.Equal(t, got.Link, "https://zoom.us/j/1")

		list, err := repo.ListNotifications(ctx)
		gt.NoError(t, err)
		gt.A(t, list).Length(1)
	})

	t.Run("memories keep embeddings", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		gt.NoError(t, repo.PutMemory(ctx, digiself.Memory{ID: "m1", Content: "likes tea", Embedding: []float64{0.5, -0.25}, CreatedAt: base}))
		gt.NoError(t, repo.PutMemory(ctx, digiself.Memory{ID: "m2", Content: "no vector", CreatedAt: base.Add(time.Second)}))

		memories, err := repo.ListMemories(ctx)
		gt.NoError(t, err)
		gt.A(t, memories).Length(2)
		gt.Equal(t, memories[0].Embedding, []float64{0.5, -0.25})
		gt.A(t, memories[1].Embedding).Length(0)
	})

	t.Run("focus is capped", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		focus, err := repo.GetFocus(ctx)
		gt.NoError(t, err)
		gt.A(t, focus).Length(0)

		gt.NoError(t, repo.PutFocus(ctx, []string{"d", "c", "b", "a"}))
		focus, err = repo.GetFocus(ctx)
		gt.NoError(t, err)
		gt.Equal(t, focus, []string{"d", "c", "b"})
	})

	t.Run("profile and mode", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		profile, err := repo.GetProfile(ctx)
		gt.NoError(t, err)
		gt.Equal(t, profile.Name, "")

		gt.NoError(t, repo.PutProfile(ctx, digiself.Profile{
			Name:        "Alex",
			Timezone:    "Asia/Tokyo",
			Preferences: map[string]string{"tone": "casual"},
		}))
		profile, err = repo.GetProfile(ctx)
		gt.NoError(t, err)
		gt.Equal(t, profile.Name, "Alex")
		gt.Equal(t, profile.Timezone, "Asia/Tokyo")
		gt.Equal(t, profile.Preferences["tone"], "casual")

		mode, err := repo.GetMode(ctx)
		gt.NoError(t, err)
		gt.Equal(t, mode, "")

		gt.NoError(t, repo.PutMode(ctx, "focus"))
		mode, err = repo.GetMode(ctx)
		gt.NoError(t, err)
		gt.Equal(t, mode, "focus")
	})

	t.Run("load state", func(t *testing.T) {
		ctx := context.Background()
		repo := newRepo(t)

		gt.NoError(t, repo.PutDiary(ctx, digiself.DiaryEntry{ID: "d1", CreatedAt: base}))
		gt.NoError(t, repo.PutFocus(ctx, []string{"write"}))
		gt.NoError(t, repo.PutMode(ctx, "coach"))

		state, err := digiself.LoadState(ctx, repo)
		gt.NoError(t, err)
		gt.A(t, state.Diary).Length(1)
		gt.Equal(t, state.Focus, []string{"write"})
		gt.Equal(t, state.Mode, "coach")
	})
}
