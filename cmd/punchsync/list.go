package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/punchsync/internal/aggregate"
)

var (
	listEmployee string
	listMonth    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored punches",
	Long:  `Displays the punches stored for a month, per employee.`,
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listEmployee, "employee", "", "Filter by employee (default: all)")
	listCmd.Flags().StringVar(&listMonth, "month", "", "Month as YYYY-MM (default: current month)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	month, err := resolveMonth(listMonth, loc)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, loc)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	employees, err := storedEmployees(ctx, st, listEmployee)
	if err != nil {
		return fmt.Errorf("listing employees: %w", err)
	}
	if len(employees) == 0 {
		fmt.Println("No data found")
		return nil
	}

	for _, employee := range employees {
		punches, err := st.FindByMonth(ctx, employee, month)
		if err != nil {
			return fmt.Errorf("listing punches for %s: %w", employee, err)
		}

		if len(punches) == 0 {
			fmt.Printf("No punches found for %s in %s\n", employee, month.Label())
			continue
		}

		fmt.Printf("\n%s Punches (%s):\n", employee, month.Label())
		fmt.Println("--------------------------------------------------------------------------")
		fmt.Printf("%-10s  %-10s  %-8s  %-8s  %8s  %-5s  %-12s  %s\n", "Id", "Date", "Start", "End", "Amount", "Code", "Status", "Calendar")
		fmt.Println("--------------------------------------------------------------------------")

		var total int64
		for _, p := range punches {
			event := "-"
			if p.CalendarEventID != "" {
				event = "✓"
			}
			fmt.Printf("%-10d  %-10s  %-8s  %-8s  %8s  %-5s  %-12s  %s\n",
				p.ID,
				p.ServiceDate.Format("2006-01-02"),
				p.StartTime.Format("3:04 PM"),
				p.EndTime.Format("3:04 PM"),
				aggregate.FormatHoursMinutes(p.Amount),
				p.ServiceCode,
				p.Status,
				event,
			)
			total += int64(p.Amount)
		}

		fmt.Println("--------------------------------------------------------------------------")
		fmt.Printf("Total: %s (%d punches)\n", aggregate.FormatDuration(time.Duration(total)), len(punches))
	}

	return nil
}
