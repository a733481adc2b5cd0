// Package calendar reads past Google Calendar events so meetings can be
// recorded as contact interactions.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"netcrm/internal"
	"netcrm/internal/config"
	"netcrm/internal/connectors/google"
)

type Connector struct {
	service    *calendar.Service
	limiter    *google.RateLimiter
	calendarID string
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	ts, err := google.TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewConnectorWithOptions(ctx, cfg, option.WithTokenSource(ts))
}

func NewConnectorWithOptions(ctx context.Context, cfg config.Config, opts ...option.ClientOption) (*Connector, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSpace(cfg.CalendarID)
	if id == "" {
		id = "primary"
	}
	return &Connector{
		service:    svc,
		limiter:    google.NewRateLimiter(cfg.GoogleRPS, cfg.GoogleBurst),
		calendarID: id,
	}, nil
}

// ListEvents returns non-cancelled events starting in [from, to) that have at
// least one attendee other than the calendar owner.
func (c *Connector) ListEvents(ctx context.Context, from, to time.Time) ([]internal.CalendarEvent, error) {
	out := []internal.CalendarEvent{}
	pageToken := ""
	for {
		call := c.service.Events.List(c.calendarID).
			TimeMin(from.UTC().Format(time.RFC3339)).
			TimeMax(to.UTC().Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(250)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		var resp *calendar.Events
		err := google.Do(ctx, c.limiter, func(ctx context.Context) error {
			var err error
			resp, err = call.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list events: %w", err)
		}

		for _, ev := range resp.Items {
			if converted, ok := toEvent(ev); ok {
				out = append(out, converted)
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return out, nil
}

func toEvent(ev *calendar.Event) (internal.CalendarEvent, bool) {
	if ev == nil || ev.Status == "cancelled" || ev.Start == nil {
		return internal.CalendarEvent{}, false
	}
	starts, ok := eventStart(ev.Start)
	if !ok {
		return internal.CalendarEvent{}, false
	}

	attendees := []string{}
	for _, a := range ev.Attendees {
		if a == nil || a.Self || a.Resource || a.Email == "" || a.ResponseStatus == "declined" {
			continue
		}
		attendees = append(attendees, strings.ToLower(a.Email))
	}
	if len(attendees) == 0 {
		return internal.CalendarEvent{}, false
	}

	return internal.CalendarEvent{
		ID:        ev.Id,
		Summary:   ev.Summary,
		StartsAt:  starts,
		Attendees: attendees,
	}, true
}

func eventStart(dt *calendar.EventDateTime) (time.Time, bool) {
	if dt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t.UTC(), err == nil
	}
	if dt.Date != "" {
		t, err := time.Parse("2006-01-02", dt.Date)
		return t.UTC(), err == nil
	}
	return time.Time{}, false
}
