// Package gcal reads busy intervals from a Google Calendar so that runs
// never place appointments over existing events.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"schedcal/core/model"
)

// Config holds the Google Calendar connection settings.
type Config struct {
	Enabled         bool   `json:"enabled"`
	CredentialsFile string `json:"credentials_file"`
	CalendarID      string `json:"calendar_id"`
}

// SetDefaults selects the practitioner's primary calendar when none is set.
func (c *Config) SetDefaults() {
	if c.CalendarID == "" {
		c.CalendarID = "primary"
	}
}

// Validate checks that the config is usable when the source is enabled.
func (c *Config) Validate() error {
	if c.Enabled && c.CredentialsFile == "" {
		return errors.New("gcal: credentials file required")
	}
	return nil
}

// BusyFetcher queries the Calendar API free/busy endpoint.
type BusyFetcher struct {
	service    *calendar.Service
	calendarID string
}

// NewBusyFetcher builds the Calendar API client from a credentials file.
func NewBusyFetcher(ctx context.Context, cfg Config) (*BusyFetcher, error) {
	cfg.SetDefaults()
	svc, err := calendar.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(calendar.CalendarReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("gcal: create service: %w", err)
	}
	return &BusyFetcher{service: svc, calendarID: cfg.CalendarID}, nil
}

// Busy returns the occupied intervals of the calendar between from and to.
func (f *BusyFetcher) Busy(ctx context.Context, from, to time.Time) ([]model.TimeRange, error) {
	req := &calendar.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*calendar.FreeBusyRequestItem{{Id: f.calendarID}},
	}
	resp, err := f.service.Freebusy.Query(req).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("gcal: freebusy query: %w", err)
	}
	cal, ok := resp.Calendars[f.calendarID]
	if !ok {
		return nil, fmt.Errorf("gcal: calendar %q missing from response", f.calendarID)
	}
	var busy []model.TimeRange
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("gcal: parse busy start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("gcal: parse busy end: %w", err)
		}
		busy = append(busy, model.TimeRange{Start: start, End: end})
	}
	return busy, nil
}
