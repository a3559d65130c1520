// Package period maps a target month to the calendar-month and half-month
// windows used for filtering and reporting.
package period

import (
	"fmt"
	"time"
)

// SplitDay is the first day of the second half of a month
const SplitDay = 16

// Window is a half-open interval [Start, End)
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthOf returns the calendar month containing t, in t's location
func MonthOf(t time.Time) Window {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Window{Start: start, End: start.AddDate(0, 1, 0)}
}

// ParseMonth parses a YYYY-MM string into its month window
func ParseMonth(s string, loc *time.Location) (Window, error) {
	t, err := time.ParseInLocation("2006-01", s, loc)
	if err != nil {
		return Window{}, fmt.Errorf("invalid month %q (use YYYY-MM): %w", s, err)
	}
	return MonthOf(t), nil
}

// Halves splits a month window at day 16. Day 16 belongs to the second half.
func (w Window) Halves() (Window, Window) {
	split := time.Date(w.Start.Year(), w.Start.Month(), SplitDay, 0, 0, 0, 0, w.Start.Location())
	return Window{Start: w.Start, End: split}, Window{Start: split, End: w.End}
}

// Contains reports whether t falls in [Start, End)
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Label formats the window's month as YYYY-MM
func (w Window) Label() string {
	return w.Start.Format("2006-01")
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}
