package calendar

import (
	"context"
	"log/slog"
	"net/mail"
	"time"

	"github.com/m-mizutani/digiself"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

// DefaultCalendarID is the user's primary calendar.
const DefaultCalendarID = "primary"

// GoogleCredential is an OAuth2 client with a refresh token obtained
// out of band.
type GoogleCredential struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

// Connected reports whether every credential field is set.
func (x GoogleCredential) Connected() bool {
	return x.ClientID != "" && x.ClientSecret != "" && x.RefreshToken != ""
}

// Google is a Provider backed by the Google Calendar API.
type Google struct {
	svc        *gcal.Service
	calendarID string
	logger     *slog.Logger
}

// GoogleOption configures Google.
type GoogleOption func(*googleConfig)

type googleConfig struct {
	calendarID    string
	clientOptions []option.ClientOption
	logger        *slog.Logger
}

// WithCalendarID sets the calendar to use. Default is [DefaultCalendarID].
func WithCalendarID(id string) GoogleOption {
	return func(c *googleConfig) {
		c.calendarID = id
	}
}

// WithGoogleLogger sets the logger for events that are skipped while listing or
// inserting.
func WithGoogleLogger(logger *slog.Logger) GoogleOption {
	return func(c *googleConfig) {
		c.logger = logger
	}
}

// WithClientOptions appends options to the Calendar API client.
func WithClientOptions(opts ...option.ClientOption) GoogleOption {
	return func(c *googleConfig) {
		c.clientOptions = append(c.clientOptions, opts...)
	}
}

// NewGoogle creates a Google Calendar provider authorized by cred.
func NewGoogle(ctx context.Context, cred GoogleCredential, opts ...GoogleOption) (*Google, error) {
	if !cred.Connected() {
		return nil, goerr.Wrap(digiself.ErrCalendarNotConnected, "Google client id, secret and refresh token are required")
	}

	oauthConfig := &oauth2.Config{
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarEventsScope},
	}
	ts := oauthConfig.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})

	opts = append([]GoogleOption{WithClientOptions(option.WithTokenSource(ts))}, opts...)
	return newGoogle(ctx, opts...)
}

func newGoogle(ctx context.Context, opts ...GoogleOption) (*Google, error) {
	cfg := &googleConfig{
		calendarID: DefaultCalendarID,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	svc, err := gcal.NewService(ctx, cfg.clientOptions...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create calendar service")
	}

	return &Google{svc: svc, calendarID: cfg.calendarID, logger: cfg.logger}, nil
}

// Insert creates the event with a Google Meet conference attached.
func (x *Google) Insert(ctx context.Context, ev Event) (*Event, error) {
	gev := &gcal.Event{
		Summary: ev.Title,
		Start:   &gcal.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:     &gcal.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId: digiself.NewID(),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{
					Type: "hangoutsMeet",
				},
			},
		},
	}
	gev.Attendees = x.attendees(ev.Attendees)

	created, err := x.svc.Events.Insert(x.calendarID, gev).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert calendar event",
			goerr.V("calendar_id", x.calendarID),
			goerr.V("title", ev.Title),
		)
	}

	return eventFromGoogle(created)
}

// List returns single (expanded) events in [from, to) ordered by start.
func (x *Google) List(ctx context.Context, from, to time.Time) ([]Event, error) {
	var events []Event

	call := x.svc.Events.List(x.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")

	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := eventFromGoogle(item)
			if err != nil {
				x.logger.Warn("skip calendar event with invalid time",
					slog.String("event_id", item.Id),
					slog.Any("error", err),
				)
				continue
			}
			events = append(events, *ev)
		}
		return nil
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list calendar events",
			goerr.V("calendar_id", x.calendarID),
		)
	}

	return events, nil
}

// attendees keeps only entries with an email address. Google rejects the
// whole insert on a bare name.
func (x *Google) attendees(names []string) []*gcal.EventAttendee {
	var out []*gcal.EventAttendee
	for _, a := range names {
		addr, err := mail.ParseAddress(a)
		if err != nil {
			x.logger.Warn("skip calendar attendee without email", slog.String("attendee", a))
			continue
		}
		out = append(out, &gcal.EventAttendee{Email: addr.Address})
	}
	return out
}

func eventFromGoogle(item *gcal.Event) (*Event, error) {
	ev := &Event{
		ID:        item.Id,
		Title:     item.Summary,
		VideoLink: item.HangoutLink,
	}

	start, err := parseEventTime(item.Start)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid event start", goerr.V("event_id", item.Id))
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid event end", goerr.V("event_id", item.Id))
	}
	ev.Start, ev.End = start, end

	if ev.VideoLink == "" && item.ConferenceData != nil {
		for _, ep := range item.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				ev.VideoLink = ep.Uri
				break
			}
		}
	}

	for _, a := range item.Attendees {
		if a.Email != "" {
			ev.Attendees = append(ev.Attendees, a.Email)
		}
	}
	return ev, nil
}

// parseEventTime reads a timed (DateTime) or all-day (Date) event boundary.
func parseEventTime(t *gcal.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, goerr.New("event time is missing")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	if t.Date != "" {
		loc := time.UTC
		if t.TimeZone != "" {
			if l, err := time.LoadLocation(t.TimeZone); err == nil {
				loc = l
			}
		}
		return time.ParseInLocation(time.DateOnly, t.Date, loc)
	}
	return time.Time{}, goerr.New("event time has neither dateTime nor date")
}

var _ Provider = (*Google)(nil)
