// Package inmemory is a digiself.Repository kept in process memory. It is
// used for tests and for running the server without a database file.
package inmemory

import (
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

// Repository is safe for concurrent use. Lists are returned in insertion
// order except meetings, which are sorted by start time.
type Repository struct {
	mu sync.RWMutex

	diary         []digiself.DiaryEntry
	meetings      []digiself.Meeting
	notifications []digiself.Notification
	memories      []digiself.Memory
	focus         []string
	profile       digiself.Profile
	mode          string
}

// New creates an empty Repository.
func New() *Repository {
	return &Repository{}
}

// put replaces the element with the same id or appends v.
func put[T any](list []T, v T, id func(T) string) []T {
	key := id(v)
	for i := range list {
		if id(list[i]) == key {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func remove[T any](list []T, key string, id func(T) string) ([]T, bool) {
	for i := range list {
		if id(list[i]) == key {
			return slices.Delete(list, i, i+1), true
		}
	}
	return list, false
}

func diaryID(e digiself.DiaryEntry) string          { return e.ID }
func meetingID(m digiself.Meeting) string           { return m.ID }
func notificationID(n digiself.Notification) string { return n.ID }
func memoryID(m digiself.Memory) string             { return m.ID }

func (r *Repository) ListDiary(ctx context.Context) ([]digiself.DiaryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]digiself.DiaryEntry{}, r.diary...), nil
}

func (r *Repository) PutDiary(ctx context.Context, entry digiself.DiaryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.diary = put(r.diary, entry, diaryID)
	return nil
}

func (r *Repository) DeleteDiary(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ok bool
	if r.diary, ok = remove(r.diary, id, diaryID); !ok {
		return goerr.Wrap(digiself.ErrNotFound, "diary entry not found", goerr.V("id", id))
	}
	return nil
}

func (r *Repository) ListMeetings(ctx context.Context) ([]digiself.Meeting, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]digiself.Meeting, len(r.meetings))
	for i, m := range r.meetings {
		m.Attendees = slices.Clone(m.Attendees)
		out[i] = m
	}
	digiself.SortMeetings(out)
	return out, nil
}

func (r *Repository) PutMeeting(ctx context.Context, meeting digiself.Meeting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	meeting.Attendees = slices.Clone(meeting.Attendees)
	r.meetings = put(r.meetings, meeting, meetingID)
	return nil
}

func (r *Repository) DeleteMeeting(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ok bool
	if r.meetings, ok = remove(r.meetings, id, meetingID); !ok {
		return goerr.Wrap(digiself.ErrNotFound, "meeting not found", goerr.V("id", id))
	}
	return nil
}

func (r *Repository) ListNotifications(ctx context.Context) ([]digiself.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]digiself.Notification{}, r.notifications...), nil
}

func (r *Repository) GetNotification(ctx context.Context, id string) (*digiself.Notification, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, n := range r.notifications {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, goerr.Wrap(digiself.ErrNotFound, "notification not found", goerr.V("id", id))
}

func (r *Repository) PutNotification(ctx context.Context, n digiself.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = put(r.notifications, n, notificationID)
	return nil
}

func (r *Repository) ListMemories(ctx context.Context) ([]digiself.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]digiself.Memory, len(r.memories))
	for i, m := range r.memories {
		m.Embedding = slices.Clone(m.Embedding)
		out[i] = m
	}
	return out, nil
}

func (r *Repository) PutMemory(ctx context.Context, memory digiself.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	memory.Embedding = slices.Clone(memory.Embedding)
	r.memories = put(r.memories, memory, memoryID)
	return nil
}

func (r *Repository) GetFocus(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string{}, r.focus...), nil
}

func (r *Repository) PutFocus(ctx context.Context, focus []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focus = digiself.CapFocus(focus)
	return nil
}

func (r *Repository) GetProfile(ctx context.Context) (*digiself.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.profile.Clone()
	return &p, nil
}

func (r *Repository) PutProfile(ctx context.Context, profile digiself.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profile = profile.Clone()
	return nil
}

func (r *Repository) GetMode(ctx context.Context) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.mode, nil
}

func (r *Repository) PutMode(ctx context.Context, mode string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	return nil
}

var _ digiself.Repository = (*Repository)(nil)
