package calendar

import (
	"context"

	"google.golang.org/api/option"
)

// NewGoogleWithClientOptions creates a Google provider without OAuth, for
// tests against a fake API server.
func NewGoogleWithClientOptions(ctx context.Context, calendarID string, opts ...option.ClientOption) (*Google, error) {
	return newGoogle(ctx, WithCalendarID(calendarID), WithClientOptions(opts...))
}
