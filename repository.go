package digiself

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
)

// Repository persists the application state. Put methods insert or replace
// by ID. Delete and Get methods return ErrNotFound for an unknown ID.
type Repository interface {
	ListDiary(ctx context.Context) ([]DiaryEntry, error)
	PutDiary(ctx context.Context, entry DiaryEntry) error
	DeleteDiary(ctx context.Context, id string) error

	// ListMeetings returns meetings ascending by start time.
	ListMeetings(ctx context.Context) ([]Meeting, error)
	PutMeeting(ctx context.Context, meeting Meeting) error
	DeleteMeeting(ctx context.Context, id string) error

	ListNotifications(ctx context.Context) ([]Notification, error)
	GetNotification(ctx context.Context, id string) (*Notification, error)
	PutNotification(ctx context.Context, n Notification) error

	ListMemories(ctx context.Context) ([]Memory, error)
	PutMemory(ctx context.Context, memory Memory) error

	GetFocus(ctx context.Context) ([]string, error)
	PutFocus(ctx context.Context, focus []string) error

	GetProfile(ctx context.Context) (*Profile, error)
	PutProfile(ctx context.Context, profile Profile) error

	GetMode(ctx context.Context) (string, error)
	PutMode(ctx context.Context, mode string) error
}

// LoadState reads the full state from repo.
func LoadState(ctx context.Context, repo Repository) (State, error) {
	var (
		state State
		err   error
	)

	if state.Diary, err = repo.ListDiary(ctx); err != nil {
		return State{}, goerr.Wrap(err, "failed to list diary")
	}
	if state.Meetings, err = repo.ListMeetings(ctx); err != nil {
		return State{}, goerr.Wrap(err, "failed to list meetings")
	}
	if state.Notifications, err = repo.ListNotifications(ctx); err != nil {
		return State{}, goerr.Wrap(err, "failed to list notifications")
	}
	if state.Memories, err = repo.ListMemories(ctx); err != nil {
		return State{}, goerr.Wrap(err, "failed to list memories")
	}
	if state.Focus, err = repo.GetFocus(ctx); err != nil {
		return State{}, goerr.Wrap(err, "failed to get focus")
	}
	profile, err := repo.GetProfile(ctx)
	if err != nil {
		return State{}, goerr.Wrap(err, "failed to get profile")
	}
	state.Profile = *profile
	if state.Mode, err = repo.GetMode(ctx); err != nil {
		return State{}, goerr.Wrap(err, "failed to get mode")
	}

	return state, nil
}
