// Package store defines the persistence contract for punches. Backends live
// in internal/database (SQLite), internal/docstore (MongoDB) and
// internal/memstore (in-process).
package store

import (
	"context"
	"errors"

	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/pkg/models"
)

// ErrUnavailable wraps any connectivity or query failure of a backend. It is
// fatal for the current run.
var ErrUnavailable = errors.New("store unavailable")

// Store persists punches keyed by id
type Store interface {
	// FindByMonth returns the employee's punches whose service date is in w
	FindByMonth(ctx context.Context, employee string, w period.Window) ([]models.Punch, error)
	// InsertMany inserts punches whose id is not already stored and returns
	// how many were inserted. Existing rows are never overwritten.
	InsertMany(ctx context.Context, punches []models.Punch) (int, error)
	// DeleteMany removes punches by id and returns how many were removed
	DeleteMany(ctx context.Context, ids []int64) (int, error)
	// SetCalendarEventID attaches a calendar event id to a stored punch
	SetCalendarEventID(ctx context.Context, id int64, eventID string) error
	// Employees lists every employee with at least one stored punch
	Employees(ctx context.Context) ([]string, error)
	Close() error
}
