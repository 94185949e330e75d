package calendar_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/digiself/calendar"
	"github.com/m-mizutani/digiself/internal"
	"github.com/m-mizutani/gt"
)

type fakeStore struct {
	meetings []digiself.Meeting
	putErr   error
}

func (s *fakeStore) ListMeetings(_ context.Context) ([]digiself.Meeting, error) {
	out := make([]digiself.Meeting, len(s.meetings))
	copy(out, s.meetings)
	return out, nil
}

func (s *fakeStore) PutMeeting(_ context.Context, m digiself.Meeting) error {
	if s.putErr != nil {
		return s.putErr
	}
	for i := range s.meetings {
		if s.meetings[i].ID == m.ID {
			s.meetings[i] = m
			return nil
		}
	}
	s.meetings = append(s.meetings, m)
	return nil
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestSync(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	start := now.Add(2 * time.Hour)

	provider := &fakeProvider{events: []calendar.Event{
		{ID: "ev-1", Title: "Standup (moved)", Start: start, End: start.Add(15 * time.Minute)},
		{ID: "ev-2", Title: "1on1", Start: start.Add(time.Hour), End: start.Add(90 * time.Minute), VideoLink: "https://meet.google.com/x"},
		{ID: "", Title: "no id"},
	}}
	store := &fakeStore{meetings: []digiself.Meeting{
		{ID: "local-1", Title: "Standup", ExternalEventID: "ev-1", StartTime: start.Add(-time.Hour)},
		{ID: "local-2", Title: "Local only", StartTime: start},
	}}

	syncer := calendar.NewSyncer(provider, store,
		calendar.WithClock(func() time.Time { return now }),
		calendar.WithIDGenerator(sequentialIDs()),
		calendar.WithLocation(time.UTC),
		calendar.WithLogger(internal.TestLogger()),
	)

	result, err := syncer.Sync(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, result.Created, 1)
	gt.Equal(t, result.Updated, 1)
	gt.A(t, result.Meetings).Length(2)

	gt.Equal(t, provider.from, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	gt.Equal(t, provider.to, time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC))

	gt.A(t, store.meetings).Length(3)
	gt.Equal(t, store.meetings[0].ID, "local-1")
	gt.Equal(t, store.meetings[0].Title, "Standup (moved)")
	gt.Equal(t, store.meetings[0].StartTime, start)
	gt.Equal(t, store.meetings[1].Title, "Local only")
	gt.Equal(t, store.meetings[2].ID, "id-1")
	gt.Equal(t, store.meetings[2].ExternalEventID, "ev-2")
	gt.Equal(t, store.meetings[2].VideoLink, "https://meet.google.com/x")
	gt.Equal(t, store.meetings[2].CreatedAt, now)

	t.Run("second sequential sync only updates", func(t *testing.T) {
		result, err := syncer.Sync(context.Background())
		gt.NoError(t, err)
		gt.Equal(t, result.Created, 0)
		gt.Equal(t, result.Updated, 2)
		gt.A(t, store.meetings).Length(3)
	})
}

func TestSyncDuplicateEventsInOneListing(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	provider := &fakeProvider{events: []calendar.Event{
		{ID: "ev-1", Title: "a", Start: now, End: now.Add(time.Hour)},
		{ID: "ev-1", Title: "b", Start: now, End: now.Add(time.Hour)},
	}}
	store := &fakeStore{}

	result, err := calendar.NewSyncer(provider, store, calendar.WithIDGenerator(sequentialIDs())).Sync(context.Background())
	gt.NoError(t, err)
	gt.Equal(t, result.Created, 1)
	gt.Equal(t, result.Updated, 1)
	gt.A(t, store.meetings).Length(1)
	gt.Equal(t, store.meetings[0].Title, "b")
}

func TestSyncNotConnected(t *testing.T) {
	_, err := calendar.NewSyncer(nil, &fakeStore{}).Sync(context.Background())
	gt.True(t, errors.Is(err, digiself.ErrCalendarNotConnected))
}

func TestSyncErrors(t *testing.T) {
	t.Run("list failure", func(t *testing.T) {
		provider := &fakeProvider{listErr: errors.New("500")}
		_, err := calendar.NewSyncer(provider, &fakeStore{}).Sync(context.Background())
		gt.Error(t, err)
	})

	t.Run("store failure", func(t *testing.T) {
		provider := &fakeProvider{events: []calendar.Event{{ID: "ev-1"}}}
		_, err := calendar.NewSyncer(provider, &fakeStore{putErr: errors.New("disk full")}).Sync(context.Background())
		gt.Error(t, err)
	})
}
