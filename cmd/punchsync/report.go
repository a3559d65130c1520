package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/punchsync/internal/aggregate"
	"github.com/jgoulah/punchsync/internal/notify"
	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/store"
)

var (
	reportEmployee string
	reportMonth    string
	reportJSON     bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print half-month hour summaries from stored punches",
	Long: `Aggregates stored punches for a month into first half (1st-15th), second
half (16th-end) and month totals per service code, without scraping.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportEmployee, "employee", "", "Filter by employee (default: all)")
	reportCmd.Flags().StringVar(&reportMonth, "month", "", "Month as YYYY-MM (default: current month)")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print JSON instead of a table")
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	month, err := resolveMonth(reportMonth, loc)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, loc)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	summaries, err := storedSummaries(cmd, st, reportEmployee, month)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No data found")
		return nil
	}

	if reportJSON {
		out := make(map[string]aggregate.FormattedSummary, len(summaries))
		for _, s := range summaries {
			out[s.Employee] = s.Formatted()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	return notify.WriteText(os.Stdout, summaries)
}

// storedSummaries aggregates each employee's stored punches for month
func storedSummaries(cmd *cobra.Command, st store.Store, employee string, month period.Window) ([]aggregate.EmployeeSummary, error) {
	ctx := cmd.Context()

	employees, err := storedEmployees(ctx, st, employee)
	if err != nil {
		return nil, fmt.Errorf("listing employees: %w", err)
	}

	summaries := make([]aggregate.EmployeeSummary, 0, len(employees))
	for _, name := range employees {
		punches, err := st.FindByMonth(ctx, name, month)
		if err != nil {
			return nil, fmt.Errorf("loading punches for %s: %w", name, err)
		}
		summaries = append(summaries, aggregate.EmployeeSummary{Employee: name, Summary: aggregate.Aggregate(punches, month)})
	}
	return summaries, nil
}
