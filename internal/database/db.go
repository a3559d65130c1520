package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/store"
	"github.com/jgoulah/punchsync/pkg/models"
	_ "modernc.org/sqlite"
)

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04:05"
)

// DB wraps the database connection. Times are stored as wall-clock text in
// loc and read back in loc.
type DB struct {
	conn *sql.DB
	loc  *time.Location
}

var _ store.Store = (*DB)(nil)

// New creates a new database connection and initializes the schema
func New(dbPath string, loc *time.Location) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %w", store.ErrUnavailable, err)
	}
	if loc == nil {
		loc = time.UTC
	}

	db := &DB{conn: conn, loc: loc}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: initializing schema: %w", store.ErrUnavailable, err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS punches (
		id INTEGER PRIMARY KEY,
		employee TEXT NOT NULL,
		service_date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		amount_seconds INTEGER NOT NULL,
		service_code TEXT NOT NULL,
		status TEXT NOT NULL,
		calendar_event_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_punches_employee_date ON punches(employee, service_date);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// FindByMonth returns the employee's punches dated inside w, oldest first
func (db *DB) FindByMonth(ctx context.Context, employee string, w period.Window) ([]models.Punch, error) {
	query := `
	SELECT id, employee, service_date, start_time, end_time, amount_seconds, service_code, status, calendar_event_id
	FROM punches
	WHERE employee = ? AND service_date >= ? AND service_date < ?
	ORDER BY service_date, start_time, id
	`

	rows, err := db.conn.QueryContext(ctx, query, employee,
		w.Start.In(db.loc).Format(dateLayout), w.End.In(db.loc).Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("%w: querying punches: %w", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var results []models.Punch
	for rows.Next() {
		p, err := db.scan(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading punches: %w", store.ErrUnavailable, err)
	}

	return results, nil
}

// InsertMany inserts punches in one transaction, ignoring ids already stored
func (db *DB) InsertMany(ctx context.Context, punches []models.Punch) (int, error) {
	if len(punches) == 0 {
		return 0, nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: beginning transaction: %w", store.ErrUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR IGNORE INTO punches (id, employee, service_date, start_time, end_time, amount_seconds, service_code, status, calendar_event_id, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: preparing insert: %w", store.ErrUnavailable, err)
	}
	defer stmt.Close()

	createdAt := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, p := range punches {
		var eventID sql.NullString
		if p.CalendarEventID != "" {
			eventID = sql.NullString{String: p.CalendarEventID, Valid: true}
		}

		res, err := stmt.ExecContext(ctx,
			p.ID,
			p.EmployeeName,
			p.ServiceDate.In(db.loc).Format(dateLayout),
			p.StartTime.In(db.loc).Format(dateTimeLayout),
			p.EndTime.In(db.loc).Format(dateTimeLayout),
			int64(p.Amount/time.Second),
			p.ServiceCode,
			string(p.Status),
			eventID,
			createdAt,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: inserting punch %d: %w", store.ErrUnavailable, p.ID, err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: committing inserts: %w", store.ErrUnavailable, err)
	}
	return inserted, nil
}

// DeleteMany removes punches by id
func (db *DB) DeleteMany(ctx context.Context, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	res, err := db.conn.ExecContext(ctx, `DELETE FROM punches WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: deleting punches: %w", store.ErrUnavailable, err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// SetCalendarEventID records the calendar event projected for a punch
func (db *DB) SetCalendarEventID(ctx context.Context, id int64, eventID string) error {
	_, err := db.conn.ExecContext(ctx, `UPDATE punches SET calendar_event_id = ? WHERE id = ?`, eventID, id)
	if err != nil {
		return fmt.Errorf("%w: setting calendar event for punch %d: %w", store.ErrUnavailable, id, err)
	}
	return nil
}

// Employees lists every employee with stored punches
func (db *DB) Employees(ctx context.Context) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT DISTINCT employee FROM punches ORDER BY employee`)
	if err != nil {
		return nil, fmt.Errorf("%w: querying employees: %w", store.ErrUnavailable, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: scanning employee: %w", store.ErrUnavailable, err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (db *DB) scan(rows *sql.Rows) (models.Punch, error) {
	var p models.Punch
	var dateStr, startStr, endStr, status string
	var amountSeconds int64
	var eventID sql.NullString

	if err := rows.Scan(&p.ID, &p.EmployeeName, &dateStr, &startStr, &endStr, &amountSeconds, &p.ServiceCode, &status, &eventID); err != nil {
		return p, fmt.Errorf("%w: scanning row: %w", store.ErrUnavailable, err)
	}

	var err error
	p.ServiceDate, err = time.ParseInLocation(dateLayout, dateStr, db.loc)
	if err != nil {
		return p, fmt.Errorf("parsing service_date of punch %d: %w", p.ID, err)
	}
	p.StartTime, err = time.ParseInLocation(dateTimeLayout, startStr, db.loc)
	if err != nil {
		return p, fmt.Errorf("parsing start_time of punch %d: %w", p.ID, err)
	}
	p.EndTime, err = time.ParseInLocation(dateTimeLayout, endStr, db.loc)
	if err != nil {
		return p, fmt.Errorf("parsing end_time of punch %d: %w", p.ID, err)
	}

	p.Amount = time.Duration(amountSeconds) * time.Second
	p.Status = models.Status(status)
	p.CalendarEventID = eventID.String
	return p, nil
}
