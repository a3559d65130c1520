// Package reconcile merges a freshly scraped batch of punches with the
// punches already persisted for the same month. The store converges to the
// set of valid punches no matter how often a month is reconciled, and
// punches rejected upstream are retracted from both the store and the
// calendar.
package reconcile

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/store"
	"github.com/jgoulah/punchsync/pkg/models"
)

// Retractor removes the calendar projection of a punch
type Retractor interface {
	Retract(ctx context.Context, p models.Punch) error
}

// Engine reconciles one employee-month per call. It keeps no state between
// calls.
type Engine struct {
	store     store.Store
	retractor Retractor
}

// NewEngine creates an engine. retractor may be nil when calendar projection
// is disabled. Rejected punches are then hidden from the result but kept in
// the store, so a later run with a retractor can remove their events.
func NewEngine(s store.Store, r Retractor) *Engine {
	return &Engine{store: s, retractor: r}
}

// RetractionFailure records a calendar retraction that did not succeed. The
// punch is still removed from the store.
type RetractionFailure struct {
	ID      int64
	EventID string
	Err     error
}

// Result is the outcome of one reconciliation
type Result struct {
	Records            []models.Punch // Reconciled set
	Inserted           int            // Rows the store reported as inserted
	InsertedIDs        []int64        // Ids submitted for insert
	Retracted          []int64        // Ids deleted because they were rejected
	Deferred           []int64        // Rejected ids left stored until a retractor is available
	RetractionFailures []RetractionFailure
	Discarded          int  // Fresh punches dropped for an invalid status
	NoOp               bool // Fresh batch was empty; store untouched
}

// Reconcile merges fresh into the punches stored for the employee in w.
// fresh may span several months; only punches dated inside w take part. Store
// failures abort and are returned; calendar failures are collected in the
// result.
func (e *Engine) Reconcile(ctx context.Context, employee string, w period.Window, fresh []models.Punch) (*Result, error) {
	logger := zerolog.Ctx(ctx).With().Str("employee", employee).Str("month", w.Label()).Logger()

	stored, err := e.store.FindByMonth(ctx, employee, w)
	if err != nil {
		return nil, fmt.Errorf("loading stored punches: %w", err)
	}

	fresh = inWindow(fresh, w)
	if len(fresh) == 0 {
		logger.Info().Int("stored", len(stored)).Msg("No fresh punches, leaving store untouched")
		return &Result{Records: stored, NoOp: true}, nil
	}

	result := &Result{}
	storedIDs := make(map[int64]bool, len(stored))
	for _, p := range stored {
		storedIDs[p.ID] = true
	}

	retracted := make(map[int64]bool)
	if len(stored) > 0 {
		if err := e.retract(ctx, logger, fresh, stored, retracted, result); err != nil {
			return nil, err
		}
	}

	merged := make([]models.Punch, 0, len(fresh)+len(stored))
	for _, p := range fresh {
		if !retracted[p.ID] {
			merged = append(merged, p)
		}
	}
	for _, p := range stored {
		if !retracted[p.ID] {
			merged = append(merged, p)
		}
	}
	merged = dedupe(merged)

	records := make([]models.Punch, 0, len(merged))
	for _, p := range merged {
		if !p.Status.Valid() {
			result.Discarded++
			continue
		}
		records = append(records, p)
	}
	records = dedupe(records)

	var toInsert []models.Punch
	for _, p := range records {
		if !storedIDs[p.ID] {
			toInsert = append(toInsert, p)
			result.InsertedIDs = append(result.InsertedIDs, p.ID)
		}
	}
	if len(toInsert) > 0 {
		n, err := e.store.InsertMany(ctx, toInsert)
		if err != nil {
			return nil, fmt.Errorf("inserting %d punches: %w", len(toInsert), err)
		}
		result.Inserted = n
	}

	result.Records = records
	logger.Info().
		Int("fresh", len(fresh)).
		Int("stored", len(stored)).
		Int("reconciled", len(records)).
		Int("inserted", result.Inserted).
		Int("retracted", len(result.Retracted)).
		Int("deferred", len(result.Deferred)).
		Int("discarded", result.Discarded).
		Msg("Reconciled punches")

	return result, nil
}

// retract finds stored punches that the fresh batch now reports as rejected,
// removes their calendar events and deletes them from the store. The calendar
// goes first: if the delete fails the punch stays stored and the next run
// retries both.
func (e *Engine) retract(ctx context.Context, logger zerolog.Logger, fresh, stored []models.Punch, retracted map[int64]bool, result *Result) error {
	freshByID := make(map[int64]models.Punch, len(fresh))
	for _, p := range fresh {
		if _, ok := freshByID[p.ID]; !ok {
			freshByID[p.ID] = p
		}
	}

	var ids []int64
	for _, s := range stored {
		f, ok := freshByID[s.ID]
		if !ok || f.Status != models.StatusRejected || retracted[s.ID] {
			continue
		}
		retracted[s.ID] = true

		if e.retractor == nil {
			result.Deferred = append(result.Deferred, s.ID)
			continue
		}
		ids = append(ids, s.ID)
		if err := e.retractor.Retract(ctx, s); err != nil {
			logger.Warn().Err(err).Int64("punch_id", s.ID).Str("event_id", s.CalendarEventID).Msg("Calendar retraction failed")
			result.RetractionFailures = append(result.RetractionFailures, RetractionFailure{
				ID:      s.ID,
				EventID: s.CalendarEventID,
				Err:     err,
			})
		}
	}

	if len(result.Deferred) > 0 {
		logger.Info().Ints64("ids", result.Deferred).Msg("Calendar disabled, keeping rejected punches stored for a later retraction")
	}
	if len(ids) == 0 {
		return nil
	}
	if _, err := e.store.DeleteMany(ctx, ids); err != nil {
		return fmt.Errorf("deleting %d rejected punches: %w", len(ids), err)
	}
	result.Retracted = ids
	logger.Info().Ints64("ids", ids).Msg("Retracted rejected punches")
	return nil
}

func inWindow(punches []models.Punch, w period.Window) []models.Punch {
	out := make([]models.Punch, 0, len(punches))
	for _, p := range punches {
		if w.Contains(p.ServiceDate) {
			out = append(out, p)
		}
	}
	return out
}

// dedupe keeps the first punch for each id
func dedupe(punches []models.Punch) []models.Punch {
	seen := make(map[int64]bool, len(punches))
	out := make([]models.Punch, 0, len(punches))
	for _, p := range punches {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}
