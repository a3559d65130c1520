// Package normalize converts the raw punches table scraped from the portal
// into typed, validated punch records.
package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jgoulah/punchsync/pkg/models"
)

// Column names in the portal's punches table
const (
	ColID          = "Id"
	ColStatus      = "Status"
	ColServiceDate = "Service Date"
	ColStartTime   = "Start Time"
	ColEndTime     = "End Time"
	ColAmount      = "Amount"
	ColServiceCode = "Service Code"
)

var requiredColumns = []string{ColID, ColStatus, ColServiceDate, ColStartTime, ColEndTime, ColAmount, ColServiceCode}

const (
	dateLayout     = "Jan 2, 2006"         // e.g. "Jul 28, 2025"
	dateTimeLayout = "Jan 2, 2006 3:04 PM" // e.g. "Jul 28, 2025 03:38 PM"
)

// AmountTolerance is how far Amount may drift from EndTime-StartTime before
// the punch is flagged as inconsistent
const AmountTolerance = time.Minute

// Batch is the result of normalizing one employee's table
type Batch struct {
	Punches  []models.Punch
	Errors   []*ParseError              // Dropped rows
	Warnings []*InconsistentRecordError // Kept rows with suspicious times
	Skipped  int                        // Open punches discarded
}

// Normalize converts a raw table into punches for the given employee. Times
// are interpreted in loc. Only a missing column fails the whole batch.
func Normalize(table models.Table, employee string, loc *time.Location) (*Batch, error) {
	cols := make(map[string]int, len(table.Header))
	for i, name := range table.Header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing}
	}

	batch := &Batch{}
	for i, row := range table.Rows {
		cell := func(name string) string {
			idx := cols[name]
			if idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		status := models.ParseStatus(cell(ColStatus))
		if status == models.StatusOpen {
			// In-progress shift, end time is not final
			batch.Skipped++
			continue
		}

		punch, perr := parseRow(cell, employee, loc)
		if perr != nil {
			perr.Row = i
			perr.ID = cell(ColID)
			batch.Errors = append(batch.Errors, perr)
			continue
		}
		punch.Status = status

		if w := checkConsistency(punch); w != nil {
			batch.Warnings = append(batch.Warnings, w)
		}
		batch.Punches = append(batch.Punches, punch)
	}

	return batch, nil
}

func parseRow(cell func(string) string, employee string, loc *time.Location) (models.Punch, *ParseError) {
	var p models.Punch

	id, err := strconv.ParseInt(cell(ColID), 10, 64)
	if err != nil {
		return p, &ParseError{Column: ColID, Value: cell(ColID), Err: err}
	}

	dateStr := cell(ColServiceDate)
	serviceDate, err := time.ParseInLocation(dateLayout, dateStr, loc)
	if err != nil {
		return p, &ParseError{Column: ColServiceDate, Value: dateStr, Err: err}
	}

	start, err := parseClock(dateStr, cell(ColStartTime), loc)
	if err != nil {
		return p, &ParseError{Column: ColStartTime, Value: cell(ColStartTime), Err: err}
	}
	end, err := parseClock(dateStr, cell(ColEndTime), loc)
	if err != nil {
		return p, &ParseError{Column: ColEndTime, Value: cell(ColEndTime), Err: err}
	}

	amount, err := ParseAmount(cell(ColAmount))
	if err != nil {
		return p, &ParseError{Column: ColAmount, Value: cell(ColAmount), Err: err}
	}

	code := cell(ColServiceCode)
	if code == "" {
		return p, &ParseError{Column: ColServiceCode, Value: code, Err: fmt.Errorf("empty service code")}
	}

	return models.Punch{
		ID:           id,
		EmployeeName: employee,
		ServiceDate:  serviceDate,
		StartTime:    start,
		EndTime:      end,
		Amount:       amount,
		ServiceCode:  code,
	}, nil
}

// parseClock combines a service date with a 12-hour clock time
func parseClock(date, clock string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(dateTimeLayout, date+" "+strings.ToUpper(clock), loc)
}

// ParseAmount reads the hours and minutes out of the portal's Amount cell.
// The last two colon-separated fields are hours and minutes, so both
// "0:02:30" and "02:30" yield 2h30m.
func ParseAmount(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}

	hours, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-2]))
	if err != nil {
		return 0, fmt.Errorf("hours: %w", err)
	}
	minutes, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return 0, fmt.Errorf("minutes: %w", err)
	}
	if hours < 0 || minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("out of range: %q", s)
	}

	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}

func checkConsistency(p models.Punch) *InconsistentRecordError {
	interval := p.EndTime.Sub(p.StartTime)
	drift := p.Amount - interval
	if drift < 0 {
		drift = -drift
	}
	if interval > 0 && drift <= AmountTolerance {
		return nil
	}
	return &InconsistentRecordError{
		ID:       p.ID,
		Start:    p.StartTime,
		End:      p.EndTime,
		Amount:   p.Amount,
		Interval: interval,
	}
}
