// Package projector mirrors reconciled punches onto a calendar. Projection
// is idempotent: a punch whose exact interval already has an event is left
// alone.
package projector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jgoulah/punchsync/internal/aggregate"
	"github.com/jgoulah/punchsync/internal/calendar"
	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/pkg/models"
)

// DefaultColor is used for employees without a configured color
const DefaultColor = "1"

// ErrEmptyInterval is reported for punches that do not end after they start.
// No calendar event can represent them.
var ErrEmptyInterval = errors.New("punch does not end after it starts")

// Calendar is the subset of the calendar API the projector needs
type Calendar interface {
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]calendar.Event, error)
	CreateEvent(ctx context.Context, e calendar.NewEvent) (string, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// EventLinker records which calendar event represents a punch
type EventLinker interface {
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
}

// Options configures a Projector
type Options struct {
	Colors       map[string]string // Employee name to calendar color id
	DefaultColor string
	Location     *time.Location
}

// Projector creates calendar events for punches
type Projector struct {
	cal    Calendar
	links  EventLinker
	colors map[string]string
	color  string
	loc    *time.Location
}

// New creates a projector. links may be nil when nothing is persisted.
func New(cal Calendar, links EventLinker, opts Options) *Projector {
	p := &Projector{
		cal:    cal,
		links:  links,
		colors: opts.Colors,
		color:  opts.DefaultColor,
		loc:    opts.Location,
	}
	if p.color == "" {
		p.color = DefaultColor
	}
	if p.loc == nil {
		p.loc = time.UTC
	}
	return p
}

// Failure is a punch that could not be projected
type Failure struct {
	ID  int64
	Err error
}

// Result is the outcome of projecting a batch
type Result struct {
	Created  map[int64]string // Punch id to new event id
	Existing []int64          // Punches that already had a matching event
	Failures []Failure
}

// Project ensures every punch in w has exactly one event with its interval.
// Failures are per punch; the rest of the batch is still projected.
func (p *Projector) Project(ctx context.Context, w period.Window, records []models.Punch) Result {
	logger := zerolog.Ctx(ctx)
	result := Result{Created: make(map[int64]string)}

	for _, r := range records {
		if !w.Contains(r.ServiceDate) {
			continue
		}
		if !r.EndTime.After(r.StartTime) {
			logger.Warn().Int64("punch_id", r.ID).Time("start", r.StartTime).Time("end", r.EndTime).Msg("Skipping punch with empty interval")
			result.Failures = append(result.Failures, Failure{ID: r.ID, Err: fmt.Errorf("punch %d: %w", r.ID, ErrEmptyInterval)})
			continue
		}

		matches, err := p.matching(ctx, r)
		if err != nil {
			logger.Warn().Err(err).Int64("punch_id", r.ID).Msg("Listing calendar events failed")
			result.Failures = append(result.Failures, Failure{ID: r.ID, Err: err})
			continue
		}
		if len(matches) > 0 {
			result.Existing = append(result.Existing, r.ID)
			continue
		}

		eventID, err := p.cal.CreateEvent(ctx, calendar.NewEvent{
			Summary:  Summary(r),
			Start:    r.StartTime.In(p.loc),
			End:      r.EndTime.In(p.loc),
			TimeZone: p.loc.String(),
			ColorID:  p.colorFor(r.EmployeeName),
		})
		if err != nil {
			logger.Warn().Err(err).Int64("punch_id", r.ID).Msg("Creating calendar event failed")
			result.Failures = append(result.Failures, Failure{ID: r.ID, Err: err})
			continue
		}
		result.Created[r.ID] = eventID
		logger.Debug().Int64("punch_id", r.ID).Str("event_id", eventID).Msg("Created calendar event")

		if p.links == nil {
			continue
		}
		if err := p.links.SetCalendarEventID(ctx, r.ID, eventID); err != nil {
			// The event exists; the next run finds it by interval and skips it
			logger.Warn().Err(err).Int64("punch_id", r.ID).Msg("Recording calendar event id failed")
			result.Failures = append(result.Failures, Failure{ID: r.ID, Err: err})
		}
	}

	return result
}

// Retract removes the event projected for a punch. With a recorded event id
// only that event is deleted; otherwise every event with the punch's exact
// interval is. A punch with no event is not an error.
func (p *Projector) Retract(ctx context.Context, r models.Punch) error {
	if r.CalendarEventID != "" {
		return p.cal.DeleteEvent(ctx, r.CalendarEventID)
	}
	if !r.EndTime.After(r.StartTime) {
		// Never projected
		return nil
	}

	matches, err := p.matching(ctx, r)
	if err != nil {
		return err
	}
	for _, ev := range matches {
		if err := p.cal.DeleteEvent(ctx, ev.ID); err != nil {
			return err
		}
	}
	return nil
}

func (p *Projector) matching(ctx context.Context, r models.Punch) ([]calendar.Event, error) {
	events, err := p.cal.ListEvents(ctx, r.StartTime, r.EndTime)
	if err != nil {
		return nil, err
	}

	var out []calendar.Event
	for _, ev := range events {
		if ev.Start.Equal(r.StartTime) && ev.End.Equal(r.EndTime) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (p *Projector) colorFor(employee string) string {
	if c, ok := p.colors[employee]; ok && c != "" {
		return c
	}
	return p.color
}

// Summary is the event title for a punch, e.g. "Jesus (331) 02:30hrs"
func Summary(r models.Punch) string {
	return fmt.Sprintf("%s (%s) %shrs", r.EmployeeName, r.ServiceCode, aggregate.FormatHoursMinutes(r.Amount))
}
