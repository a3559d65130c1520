// Package notify delivers month summaries to people: as plain text on a
// terminal and as email through Amazon SES.
package notify

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/jgoulah/punchsync/internal/aggregate"
)

// WriteText renders one block per employee with a column per bucket
func WriteText(w io.Writer, summaries []aggregate.EmployeeSummary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, s := range summaries {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "** %s: %s (%d punches) **\n", s.Employee, s.Month.Label(), s.Records)

		fmt.Fprint(tw, "Period")
		for _, b := range aggregate.Buckets {
			fmt.Fprintf(tw, "\t%s", b)
		}
		fmt.Fprintln(tw)

		writeRow(tw, "First half", s.FirstHalf)
		writeRow(tw, "Second half", s.SecondHalf)
		writeRow(tw, "Month", s.MonthTotal)
	}

	return tw.Flush()
}

func writeRow(w io.Writer, label string, totals aggregate.Totals) {
	fmt.Fprint(w, label)
	for _, b := range aggregate.Buckets {
		fmt.Fprintf(w, "\t%s", aggregate.FormatDuration(totals[b]))
	}
	fmt.Fprintln(w)
}
