// Package pipeline runs one sync: scrape, normalize, reconcile, project and
// summarize each employee in turn, then notify and publish.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jgoulah/punchsync/internal/aggregate"
	"github.com/jgoulah/punchsync/internal/memstore"
	"github.com/jgoulah/punchsync/internal/normalize"
	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/projector"
	"github.com/jgoulah/punchsync/internal/reconcile"
	"github.com/jgoulah/punchsync/internal/store"
	"github.com/jgoulah/punchsync/pkg/logger"
	"github.com/jgoulah/punchsync/pkg/models"
)

// Scraper fetches the raw punches table for one portal account
type Scraper interface {
	Scrape(ctx context.Context, creds models.Credentials) (models.Table, error)
}

// CredentialsSource resolves an employee name to a portal login
type CredentialsSource interface {
	Credentials(employee string) (models.Credentials, error)
}

// Notifier delivers summaries to people
type Notifier interface {
	Notify(ctx context.Context, summaries []aggregate.EmployeeSummary) error
}

// Publisher pushes summaries to machines
type Publisher interface {
	Publish(summaries []aggregate.EmployeeSummary) error
}

// Options toggles the optional stages of a run
type Options struct {
	Location     *time.Location
	Persist      bool // false reconciles against an empty in-memory store
	Calendar     bool
	Email        bool
	Publish      bool
	Colors       map[string]string
	DefaultColor string
}

// Deps are the collaborators of a run. Calendar, Notifier and Publisher may
// be nil when their stage is disabled.
type Deps struct {
	Credentials CredentialsSource
	Scraper     Scraper
	Store       store.Store
	Calendar    projector.Calendar
	Notifier    Notifier
	Publisher   Publisher
}

// Runner executes syncs
type Runner struct {
	opts Options
	deps Deps
}

// New creates a runner
func New(opts Options, deps Deps) *Runner {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Runner{opts: opts, deps: deps}
}

// Run syncs month for each employee in order. A store failure stops the run
// before anything is projected or sent for the failing employee or any later
// one; the partial report is returned with the error.
func (r *Runner) Run(ctx context.Context, month period.Window, employees []string) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), Month: month, StartedAt: time.Now()}
	ctx = logger.WithRun(ctx, report.RunID)
	log := zerolog.Ctx(ctx)

	st := r.deps.Store
	if !r.opts.Persist || st == nil {
		st = memstore.New()
	}

	var proj *projector.Projector
	if r.opts.Calendar && r.deps.Calendar != nil {
		proj = projector.New(r.deps.Calendar, st, projector.Options{
			Colors:       r.opts.Colors,
			DefaultColor: r.opts.DefaultColor,
			Location:     r.opts.Location,
		})
	}

	var engine *reconcile.Engine
	if proj != nil {
		engine = reconcile.NewEngine(st, proj)
	} else {
		engine = reconcile.NewEngine(st, nil)
	}

	for _, name := range employees {
		er := r.fetch(ctx, name)

		res, err := engine.Reconcile(ctx, name, month, er.Fresh)
		if err != nil {
			report.Employees = append(report.Employees, er)
			report.FinishedAt = time.Now()
			log.Error().Err(err).Str("employee", name).Msg("Reconciliation failed, aborting run")
			return report, fmt.Errorf("reconciling %s: %w", name, err)
		}
		er.Reconcile = res

		if proj != nil {
			projection := proj.Project(ctx, month, res.Records)
			er.Projection = &projection
		}

		er.Summary = aggregate.Aggregate(res.Records, month)
		report.Employees = append(report.Employees, er)
	}
	report.Persisted = r.opts.Persist

	summaries := report.Summaries()
	if r.opts.Email && r.deps.Notifier != nil {
		if err := r.deps.Notifier.Notify(ctx, summaries); err != nil {
			log.Warn().Err(err).Msg("Sending summaries failed")
			report.NotifyErr = err
		}
	}
	if r.opts.Publish && r.deps.Publisher != nil {
		if err := r.deps.Publisher.Publish(summaries); err != nil {
			log.Warn().Err(err).Msg("Publishing summaries failed")
			report.PublishErr = err
		}
	}

	report.FinishedAt = time.Now()
	log.Info().
		Int("employees", len(report.Employees)).
		Dur("took", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Sync finished")
	return report, nil
}

// fetch scrapes and normalizes one employee. Any failure leaves Fresh empty,
// which the engine treats as "no new information".
func (r *Runner) fetch(ctx context.Context, name string) *EmployeeReport {
	log := zerolog.Ctx(ctx).With().Str("employee", name).Logger()
	er := &EmployeeReport{Employee: name}

	creds, err := r.deps.Credentials.Credentials(name)
	if err != nil {
		er.ScrapeErr = err
		log.Warn().Err(err).Msg("No credentials")
		return er
	}

	table, err := r.deps.Scraper.Scrape(ctx, creds)
	if err != nil {
		er.ScrapeErr = err
		log.Warn().Err(err).Msg("Scrape failed, treating as no fresh data")
		return er
	}

	batch, err := normalize.Normalize(table, name, r.opts.Location)
	if err != nil {
		var schemaErr *normalize.SchemaError
		if errors.As(err, &schemaErr) && len(table.Rows) == 0 {
			// An empty page has no header either
			log.Info().Msg("Portal returned no punches")
			return er
		}
		er.ScrapeErr = err
		log.Warn().Err(err).Msg("Punches table unusable")
		return er
	}

	for _, perr := range batch.Errors {
		log.Warn().Err(perr).Msg("Skipping unparseable row")
	}
	for _, w := range batch.Warnings {
		log.Warn().Err(w).Msg("Inconsistent punch kept")
	}

	er.Fresh = batch.Punches
	er.ParseErrors = batch.Errors
	er.Warnings = batch.Warnings
	er.SkippedOpen = batch.Skipped
	log.Debug().Int("punches", len(batch.Punches)).Int("open", batch.Skipped).Msg("Normalized punches")
	return er
}
