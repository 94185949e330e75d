package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
)

// SyncDays is the number of days from the start of today that Sync covers.
const SyncDays = 7

// MeetingStore is the part of digiself.Repository Sync writes to.
type MeetingStore interface {
	ListMeetings(ctx context.Context) ([]digiself.Meeting, error)
	PutMeeting(ctx context.Context, meeting digiself.Meeting) error
}

// SyncResult reports what Sync changed.
type SyncResult struct {
	Created  int                `json:"created"`
	Updated  int                `json:"updated"`
	Meetings []digiself.Meeting `json:"meetings"`
}

// Window returns [start of today, start of today + SyncDays) in loc.
func Window(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, SyncDays)
}

// Syncer pulls provider events into the meeting store.
type Syncer struct {
	provider Provider
	store    MeetingStore
	now      func() time.Time
	newID    func() string
	location *time.Location
	logger   *slog.Logger
}

// SyncOption configures a Syncer.
type SyncOption func(*Syncer)

// WithClock sets the time source.
func WithClock(now func() time.Time) SyncOption {
	return func(s *Syncer) {
		s.now = now
	}
}

// WithIDGenerator sets the id generator for created meetings.
func WithIDGenerator(newID func() string) SyncOption {
	return func(s *Syncer) {
		s.newID = newID
	}
}

// WithLocation sets the location that defines "today".
func WithLocation(loc *time.Location) SyncOption {
	return func(s *Syncer) {
		s.location = loc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SyncOption {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// NewSyncer creates a Syncer. A nil provider makes Sync return
// digiself.ErrCalendarNotConnected.
func NewSyncer(provider Provider, store MeetingStore, opts ...SyncOption) *Syncer {
	s := &Syncer{
		provider: provider,
		store:    store,
		now:      time.Now,
		newID:    digiself.NewID,
		location: time.Local,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sync lists provider events in Window and upserts them as meetings. A local
// meeting matches an event by ExternalEventID, found by linear scan. There is
// no uniqueness constraint: two concurrent syncs can both create the same
// event.
func (x *Syncer) Sync(ctx context.Context) (*SyncResult, error) {
	if x.provider == nil {
		return nil, goerr.Wrap(digiself.ErrCalendarNotConnected, "calendar sync requires a calendar provider")
	}

	now := x.now()
	from, to := Window(now, x.location)
	events, err := x.provider.List(ctx, from, to)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list calendar events",
			goerr.V("from", from),
			goerr.V("to", to),
		)
	}

	meetings, err := x.store.ListMeetings(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list meetings")
	}

	result := &SyncResult{Meetings: []digiself.Meeting{}}
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}

		idx := -1
		for i, m := range meetings {
			if m.ExternalEventID == ev.ID {
				idx = i
				break
			}
		}

		var m digiself.Meeting
		if idx >= 0 {
			m = meetings[idx]
			result.Updated++
		} else {
			m = digiself.Meeting{
				ID:              x.newID(),
				ExternalEventID: ev.ID,
				CreatedAt:       now,
			}
			result.Created++
		}
		m.Title = ev.Title
		m.StartTime = ev.Start
		m.EndTime = ev.End
		m.Attendees = ev.Attendees
		m.VideoLink = ev.VideoLink

		if err := x.store.PutMeeting(ctx, m); err != nil {
			return nil, goerr.Wrap(err, "failed to save synced meeting",
				goerr.V("event_id", ev.ID),
				goerr.V("meeting_id", m.ID),
			)
		}

		if idx >= 0 {
			meetings[idx] = m
		} else {
			meetings = append(meetings, m)
		}
		result.Meetings = append(result.Meetings, m)
	}

	x.logger.Info("calendar synced",
		"events", len(events),
		"created", result.Created,
		"updated", result.Updated,
	)
	return result, nil
}
