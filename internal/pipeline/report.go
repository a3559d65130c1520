package pipeline

import (
	"time"

	"github.com/jgoulah/punchsync/internal/aggregate"
	"github.com/jgoulah/punchsync/internal/normalize"
	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/projector"
	"github.com/jgoulah/punchsync/internal/reconcile"
	"github.com/jgoulah/punchsync/pkg/models"
)

// Report describes what a run did
type Report struct {
	RunID      string
	Month      period.Window
	StartedAt  time.Time
	FinishedAt time.Time
	Employees  []*EmployeeReport
	Persisted  bool // Every reconciliation reached the configured store
	NotifyErr  error
	PublishErr error
}

// EmployeeReport is one employee's part of a run
type EmployeeReport struct {
	Employee    string
	Fresh       []models.Punch
	ScrapeErr   error
	ParseErrors []*normalize.ParseError
	Warnings    []*normalize.InconsistentRecordError
	SkippedOpen int
	Reconcile   *reconcile.Result
	Projection  *projector.Result
	Summary     aggregate.Summary
}

// Summaries returns the summaries of every employee that was reconciled
func (r *Report) Summaries() []aggregate.EmployeeSummary {
	out := make([]aggregate.EmployeeSummary, 0, len(r.Employees))
	for _, e := range r.Employees {
		if e.Reconcile == nil {
			continue
		}
		out = append(out, aggregate.EmployeeSummary{Employee: e.Employee, Summary: e.Summary})
	}
	return out
}

// ProjectionFailures counts punches that could not be put on the calendar
func (r *Report) ProjectionFailures() int {
	n := 0
	for _, e := range r.Employees {
		if e.Projection != nil {
			n += len(e.Projection.Failures)
		}
	}
	return n
}

// RetractionFailures counts calendar retractions that failed
func (r *Report) RetractionFailures() int {
	n := 0
	for _, e := range r.Employees {
		if e.Reconcile != nil {
			n += len(e.Reconcile.RetractionFailures)
		}
	}
	return n
}
