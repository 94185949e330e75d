// Package calendar mirrors meetings into an external calendar and syncs
// external events back into local meetings.
package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/m-mizutani/digiself"
)

// Event is a calendar event as seen by a Provider.
type Event struct {
	ID        string
	Title     string
	Start     time.Time
	End       time.Time
	Attendees []string
	VideoLink string
}

// LogValue implements slog.LogValuer.
func (x Event) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("id", x.ID),
		slog.String("title", x.Title),
		slog.Time("start", x.Start),
	)
}

// Provider is an external calendar.
type Provider interface {
	// Insert creates ev and returns it with the provider's ID and, when a
	// conference was attached, its VideoLink.
	Insert(ctx context.Context, ev Event) (*Event, error)

	// List returns events starting in [from, to), ascending by start.
	List(ctx context.Context, from, to time.Time) ([]Event, error)
}

// EventFromMeeting converts a meeting to the event to insert.
func EventFromMeeting(m digiself.Meeting) Event {
	end := m.EndTime
	if !end.After(m.StartTime) {
		end = m.StartTime.Add(digiself.DefaultMeetingDuration)
	}
	return Event{
		ID:        m.ExternalEventID,
		Title:     m.Title,
		Start:     m.StartTime,
		End:       end,
		Attendees: m.Attendees,
		VideoLink: m.VideoLink,
	}
}

// Mirror inserts m into provider and returns m with ExternalEventID and
// VideoLink set. The insert blocks. When it fails the error is logged and m
// is returned unchanged so the local meeting can still be created.
func Mirror(ctx context.Context, provider Provider, m digiself.Meeting, logger *slog.Logger) digiself.Meeting {
	if provider == nil {
		return m
	}

	created, err := provider.Insert(ctx, EventFromMeeting(m))
	if err != nil {
		logger.Warn("failed to insert meeting into calendar, keep it local only",
			"meeting_id", m.ID,
			"error", err,
		)
		return m
	}

	m.ExternalEventID = created.ID
	m.VideoLink = created.VideoLink
	logger.Info("meeting mirrored to calendar",
		"meeting_id", m.ID,
		"event_id", created.ID,
	)
	return m
}
