package normalize

import (
	"fmt"
	"strings"
	"time"
)

// SchemaError is returned when the extract lacks required columns. The whole
// batch is rejected.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("punch table missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ParseError describes one row that could not be converted. The row is
// dropped and the rest of the batch continues.
type ParseError struct {
	Row    int // Zero-based index into the raw rows
	ID     string
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("row %d (id %q): parsing %s %q: %v", e.Row, e.ID, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// InconsistentRecordError flags a punch whose times disagree with each other
// or with its amount. The punch is kept.
type InconsistentRecordError struct {
	ID       int64
	Start    time.Time
	End      time.Time
	Amount   time.Duration
	Interval time.Duration
}

func (e *InconsistentRecordError) Error() string {
	if !e.End.After(e.Start) {
		return fmt.Sprintf("punch %d: end time %s is not after start time %s",
			e.ID, e.End.Format(time.Kitchen), e.Start.Format(time.Kitchen))
	}
	return fmt.Sprintf("punch %d: amount %s disagrees with interval %s", e.ID, e.Amount, e.Interval)
}
