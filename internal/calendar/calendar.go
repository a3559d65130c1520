// Package calendar talks to Google Calendar. Every call goes through a
// circuit breaker so a failing API stops being hammered for the rest of a run.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrOperationFailed wraps any failed list, create or delete call
var ErrOperationFailed = errors.New("calendar operation failed")

// Event is a calendar event as returned by ListEvents
type Event struct {
	ID      string
	Summary string
	Start   time.Time
	End     time.Time
}

// NewEvent describes an event to create
type NewEvent struct {
	Summary  string
	Start    time.Time
	End      time.Time
	TimeZone string
	ColorID  string
}

// Client is a Google Calendar client bound to one calendar
type Client struct {
	svc        *gcal.Service
	calendarID string
	cb         *gobreaker.CircuitBreaker
}

// NewClient creates a client using an authorized HTTP client (see
// HTTPClient). Extra options are passed to the API service.
func NewClient(ctx context.Context, httpClient *http.Client, calendarID string, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}

	settings := gobreaker.Settings{
		Name:        "Google-Calendar",
		MaxRequests: 1,
		Interval:    0, // Counts are never cleared while closed; a run is short
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}

	return &Client{
		svc:        svc,
		calendarID: calendarID,
		cb:         gobreaker.NewCircuitBreaker(settings),
	}, nil
}

// ListEvents returns single events overlapping [timeMin, timeMax). All-day
// events are skipped.
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]Event, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		var events []Event
		call := c.svc.Events.List(c.calendarID).
			TimeMin(timeMin.Format(time.RFC3339)).
			TimeMax(timeMax.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime")

		err := call.Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				ev, ok := convertEvent(item)
				if ok {
					events = append(events, ev)
				}
			}
			return nil
		})
		return events, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing events: %w", ErrOperationFailed, err)
	}
	return out.([]Event), nil
}

// CreateEvent inserts an event and returns its id
func (c *Client) CreateEvent(ctx context.Context, e NewEvent) (string, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		created, err := c.svc.Events.Insert(c.calendarID, &gcal.Event{
			Summary: e.Summary,
			Start:   &gcal.EventDateTime{DateTime: e.Start.Format(time.RFC3339), TimeZone: e.TimeZone},
			End:     &gcal.EventDateTime{DateTime: e.End.Format(time.RFC3339), TimeZone: e.TimeZone},
			ColorId: e.ColorID,
		}).Context(ctx).Do()
		if err != nil {
			return "", err
		}
		return created.Id, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: creating event %q: %w", ErrOperationFailed, e.Summary, err)
	}
	return out.(string), nil
}

// DeleteEvent removes an event. An event that is already gone counts as
// deleted.
func (c *Client) DeleteEvent(ctx context.Context, eventID string) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("%w: deleting event %s: %w", ErrOperationFailed, eventID, err)
	}
	return nil
}

func convertEvent(item *gcal.Event) (Event, bool) {
	if item.Start == nil || item.End == nil || item.Start.DateTime == "" || item.End.DateTime == "" {
		return Event{}, false
	}
	start, err := time.Parse(time.RFC3339, item.Start.DateTime)
	if err != nil {
		return Event{}, false
	}
	end, err := time.Parse(time.RFC3339, item.End.DateTime)
	if err != nil {
		return Event{}, false
	}
	return Event{ID: item.Id, Summary: item.Summary, Start: start, End: end}, true
}
