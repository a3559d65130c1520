// Package aggregate sums punch amounts per service-code bucket for a month
// and for each of its two half-month periods.
package aggregate

import (
	"fmt"
	"time"

	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/pkg/models"
)

// Bucket is a reporting category
type Bucket string

const (
	Bucket310 Bucket = "310"
	Bucket320 Bucket = "320"
	Bucket331 Bucket = "331"
	// BucketOther collects service codes without a bucket of their own
	BucketOther Bucket = "Other"
	// BucketTotal is the sum over every punch regardless of code
	BucketTotal Bucket = "Total"
)

// Buckets lists every bucket in report order
var Buckets = []Bucket{Bucket331, Bucket320, Bucket310, BucketOther, BucketTotal}

// BucketFor resolves a service code to its bucket
func BucketFor(serviceCode string) Bucket {
	switch Bucket(serviceCode) {
	case Bucket310, Bucket320, Bucket331:
		return Bucket(serviceCode)
	}
	return BucketOther
}

// Totals maps each bucket to a summed duration. Every bucket is present.
type Totals map[Bucket]time.Duration

func newTotals() Totals {
	t := make(Totals, len(Buckets))
	for _, b := range Buckets {
		t[b] = 0
	}
	return t
}

func (t Totals) add(p models.Punch) {
	t[BucketFor(p.ServiceCode)] += p.Amount
	t[BucketTotal] += p.Amount
}

// Formatted renders every bucket as HH:MM:SS
func (t Totals) Formatted() map[string]string {
	out := make(map[string]string, len(t))
	for b, d := range t {
		out[string(b)] = FormatDuration(d)
	}
	return out
}

// Summary holds the totals for one month
type Summary struct {
	Month      period.Window
	FirstHalf  Totals
	SecondHalf Totals
	MonthTotal Totals
	Records    int
}

// FormattedSummary is the plain data handed to notifiers
type FormattedSummary struct {
	Month      string            `json:"month"`
	FirstHalf  map[string]string `json:"first_half"`
	SecondHalf map[string]string `json:"second_half"`
	MonthTotal map[string]string `json:"month_total"`
	Records    int               `json:"records"`
}

// Formatted converts every total to HH:MM:SS strings
func (s Summary) Formatted() FormattedSummary {
	return FormattedSummary{
		Month:      s.Month.Label(),
		FirstHalf:  s.FirstHalf.Formatted(),
		SecondHalf: s.SecondHalf.Formatted(),
		MonthTotal: s.MonthTotal.Formatted(),
		Records:    s.Records,
	}
}

// Aggregate sums the amounts of records dated inside month. Amounts are
// taken as recorded; start and end times are not consulted.
func Aggregate(records []models.Punch, month period.Window) Summary {
	first, second := month.Halves()
	s := Summary{
		Month:      month,
		FirstHalf:  newTotals(),
		SecondHalf: newTotals(),
		MonthTotal: newTotals(),
	}

	for _, p := range records {
		if !month.Contains(p.ServiceDate) {
			continue
		}
		s.Records++
		s.MonthTotal.add(p)
		switch {
		case first.Contains(p.ServiceDate):
			s.FirstHalf.add(p)
		case second.Contains(p.ServiceDate):
			s.SecondHalf.add(p)
		}
	}

	return s
}

// FormatDuration renders d as HH:MM:SS, truncating fractional seconds.
// Hours are not wrapped at 24.
func FormatDuration(d time.Duration) string {
	sign := ""
	if d < 0 {
		sign = "-"
		d = -d
	}
	total := int64(d / time.Second)
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, total/3600, (total%3600)/60, total%60)
}

// FormatHoursMinutes renders d as HH:MM, truncating seconds
func FormatHoursMinutes(d time.Duration) string {
	full := FormatDuration(d)
	return full[:len(full)-3]
}

// EmployeeSummary pairs a month summary with its employee
type EmployeeSummary struct {
	Employee string
	Summary
}
