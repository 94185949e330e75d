package app

import (
	"context"
	"strings"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

// Entity creation goes through the reducer so that direct writes get the
// same defaults as planner actions.

func (x *App) ListDiary(ctx context.Context) ([]digiself.DiaryEntry, error) {
	return x.repo.ListDiary(ctx)
}

// CreateDiary reads diaryType, title and content from payload.
func (x *App) CreateDiary(ctx context.Context, payload digiself.Payload) (*digiself.DiaryEntry, error) {
	eff, err := x.executeOne(ctx, digiself.PlannerAction{Type: digiself.ActionCreateDiary, Payload: payload})
	if err != nil {
		return nil, err
	}
	return eff.Diary, nil
}

func (x *App) DeleteDiary(ctx context.Context, id string) error {
	return x.repo.DeleteDiary(ctx, id)
}

func (x *App) ListMeetings(ctx context.Context) ([]digiself.Meeting, error) {
	return x.repo.ListMeetings(ctx)
}

// CreateMeeting reads title, startTime, endTime and attendees from payload.
// With a calendar connected the meeting is inserted there first.
func (x *App) CreateMeeting(ctx context.Context, payload digiself.Payload) (*digiself.Meeting, error) {
	eff, err := x.executeOne(ctx, digiself.PlannerAction{Type: digiself.ActionCreateMeeting, Payload: payload})
	if err != nil {
		return nil, err
	}
	return eff.Meeting, nil
}

func (x *App) DeleteMeeting(ctx context.Context, id string) error {
	return x.repo.DeleteMeeting(ctx, id)
}

func (x *App) ListNotifications(ctx context.Context) ([]digiself.Notification, error) {
	return x.repo.ListNotifications(ctx)
}

// AddNotification reads message from payload.
func (x *App) AddNotification(ctx context.Context, payload digiself.Payload) (*digiself.Notification, error) {
	eff, err := x.executeOne(ctx, digiself.PlannerAction{Type: digiself.ActionAddNotification, Payload: payload})
	if err != nil {
		return nil, err
	}
	return eff.Notification, nil
}

// MarkNotificationRead sets Read on the notification. Marking twice is fine.
func (x *App) MarkNotificationRead(ctx context.Context, id string) (*digiself.Notification, error) {
	n, err := x.repo.GetNotification(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.Read {
		return n, nil
	}

	n.Read = true
	if err := x.repo.PutNotification(ctx, *n); err != nil {
		return nil, err
	}
	return n, nil
}

func (x *App) GetFocus(ctx context.Context) ([]string, error) {
	return x.repo.GetFocus(ctx)
}

// SetFocus replaces the whole focus list. Blank items are dropped and the
// list is capped at digiself.MaxFocusItems.
func (x *App) SetFocus(ctx context.Context, focus []string) ([]string, error) {
	cleaned := make([]string, 0, len(focus))
	for _, f := range focus {
		if f = strings.TrimSpace(f); f != "" {
			cleaned = append(cleaned, f)
		}
	}
	cleaned = digiself.CapFocus(cleaned)

	if err := x.repo.PutFocus(ctx, cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}

// PushFocus puts text at the head of the focus list.
func (x *App) PushFocus(ctx context.Context, text string) ([]string, error) {
	eff, err := x.executeOne(ctx, digiself.PlannerAction{
		Type:    digiself.ActionSetFocus,
		Payload: digiself.Payload{"focusText": text},
	})
	if err != nil {
		return nil, err
	}
	return eff.Focus, nil
}

func (x *App) ListMemories(ctx context.Context) ([]digiself.Memory, error) {
	return x.repo.ListMemories(ctx)
}

// Memorize stores content from payload, embedded when an index is set.
func (x *App) Memorize(ctx context.Context, payload digiself.Payload) (*digiself.Memory, error) {
	eff, err := x.executeOne(ctx, digiself.PlannerAction{Type: digiself.ActionMemorize, Payload: payload})
	if err != nil {
		return nil, err
	}
	return eff.Memory, nil
}

func (x *App) GetProfile(ctx context.Context) (*digiself.Profile, error) {
	return x.repo.GetProfile(ctx)
}

// UpdateProfile merges payload into the profile.
func (x *App) UpdateProfile(ctx context.Context, payload digiself.Payload) (*digiself.Profile, error) {
	eff, err := x.executeOne(ctx, digiself.PlannerAction{Type: digiself.ActionUpdateProfile, Payload: payload})
	if err != nil {
		return nil, err
	}
	return eff.Profile, nil
}

func (x *App) GetMode(ctx context.Context) (string, error) {
	return x.repo.GetMode(ctx)
}

// SetMode sets the assistant mode. An empty mode is rejected.
func (x *App) SetMode(ctx context.Context, mode string) (string, error) {
	if strings.TrimSpace(mode) == "" {
		return "", goerr.Wrap(digiself.ErrInvalidParameter, "mode is empty")
	}
	eff, err := x.executeOne(ctx, digiself.PlannerAction{
		Type:    digiself.ActionSetMode,
		Payload: digiself.Payload{"mode": mode},
	})
	if err != nil {
		return "", err
	}
	return eff.Mode, nil
}
