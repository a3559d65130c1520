package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jgoulah/punchsync/internal/scraper"
)

var (
	debugVisible bool
	debugOutput  string
)

var debugCmd = &cobra.Command{
	Use:   "debug [employee]",
	Short: "Dump the punches table HTML for one employee",
	Long: `Logs into Acumen as the employee, saves the punches table HTML and shows how
it parses. Useful when the portal layout changes.

Flags:
  --visible    Show the browser window
  --output     Save HTML to this file instead of printing it`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDebug,
}

func init() {
	debugCmd.Flags().BoolVar(&debugVisible, "visible", false, "Show browser window")
	debugCmd.Flags().StringVar(&debugOutput, "output", "", "Save HTML to this file")
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	employees, err := resolveEmployees(cfg, args)
	if err != nil {
		return err
	}
	employee := employees[0]

	creds, err := cfg.Credentials(employee)
	if err != nil {
		return err
	}

	fmt.Printf("Logging into Acumen as %s...\n", employee)
	html, err := scraper.NewAcumen(cfg.PortalURL, debugVisible).PunchesHTML(cmd.Context(), creds)
	if err != nil {
		return fmt.Errorf("fetching punches table: %w", err)
	}

	if debugOutput != "" {
		if err := os.WriteFile(debugOutput, []byte(html), 0644); err != nil {
			return fmt.Errorf("writing HTML: %w", err)
		}
		fmt.Printf("✓ Saved %d bytes to %s\n", len(html), debugOutput)
	} else {
		fmt.Println(html)
	}

	table, err := scraper.ParseTable(html)
	if err != nil {
		return fmt.Errorf("parsing table: %w", err)
	}
	fmt.Printf("\nColumns: %v\n", table.Header)
	fmt.Printf("Rows:    %d\n", len(table.Rows))
	for i, row := range table.Rows {
		if i == 5 {
			fmt.Printf("... %d more\n", len(table.Rows)-i)
			break
		}
		fmt.Printf("  %v\n", row)
	}
	return nil
}
