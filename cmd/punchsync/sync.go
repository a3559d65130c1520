package main

import (
	"fmt"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/spf13/cobra"

	"github.com/jgoulah/punchsync/internal/calendar"
	"github.com/jgoulah/punchsync/internal/config"
	"github.com/jgoulah/punchsync/internal/notify"
	"github.com/jgoulah/punchsync/internal/pipeline"
	"github.com/jgoulah/punchsync/internal/publisher"
	"github.com/jgoulah/punchsync/internal/scraper"
)

var (
	syncMonth      string
	syncNoCalendar bool
	syncNoEmail    bool
	syncNoPersist  bool
	syncNoPublish  bool
	syncVisible    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [employee...]",
	Short: "Scrape, reconcile and project punches for a month",
	Long: `Scrapes each employee's punches from Acumen, reconciles them with the store,
creates missing Google Calendar events, removes rejected punches from both, and
sends the month's half-month summaries.

With no arguments every employee in the config is synced.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncMonth, "month", "", "Month to sync as YYYY-MM (default: current month)")
	syncCmd.Flags().BoolVar(&syncNoCalendar, "no-calendar", false, "Skip calendar projection and retraction")
	syncCmd.Flags().BoolVar(&syncNoEmail, "no-email", false, "Skip the summary email")
	syncCmd.Flags().BoolVar(&syncNoPersist, "no-persist", false, "Reconcile in memory only")
	syncCmd.Flags().BoolVar(&syncNoPublish, "no-publish", false, "Skip MQTT publishing")
	syncCmd.Flags().BoolVar(&syncVisible, "visible", false, "Show browser window (for debugging)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Sync started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	month, err := resolveMonth(syncMonth, loc)
	if err != nil {
		return err
	}

	employees, err := resolveEmployees(cfg, args)
	if err != nil {
		return err
	}

	opts := pipeline.Options{
		Location:     loc,
		Persist:      !syncNoPersist && cfg.GetStoreBackend() != config.StoreNone,
		Calendar:     !syncNoCalendar && cfg.Calendar.Enabled,
		Email:        !syncNoEmail && cfg.Email.Enabled,
		Publish:      !syncNoPublish && cfg.MQTT.Enabled,
		Colors:       cfg.Colors(),
		DefaultColor: cfg.Calendar.DefaultColor,
	}
	deps := pipeline.Deps{
		Credentials: cfg,
		Scraper:     scraper.NewAcumen(cfg.PortalURL, syncVisible),
	}

	if opts.Persist {
		st, err := openStore(ctx, cfg, loc)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer st.Close()
		deps.Store = st
	}

	if opts.Calendar {
		if cfg.Calendar.CalendarID == "" {
			return fmt.Errorf("calendar.calendar_id is required when the calendar is enabled")
		}
		httpClient, err := calendar.HTTPClient(ctx, cfg.GetCredentialsFile(), cfg.GetTokenFile())
		if err != nil {
			return err
		}
		cal, err := calendar.NewClient(ctx, httpClient, cfg.Calendar.CalendarID)
		if err != nil {
			return err
		}
		deps.Calendar = cal
	}

	if opts.Email {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.GetEmailRegion()))
		if err != nil {
			return fmt.Errorf("loading AWS config: %w", err)
		}
		deps.Notifier = notify.NewSESMailer(ses.NewFromConfig(awsCfg), cfg.Email.Sender, cfg.Email.Recipients)
	}

	if opts.Publish {
		pub, err := publisher.New(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("creating publisher: %w", err)
		}
		defer pub.Close()
		deps.Publisher = pub
	}

	fmt.Printf("Syncing %s for %v...\n", month.Label(), employees)
	report, err := pipeline.New(opts, deps).Run(ctx, month, employees)
	if report != nil {
		printReport(report)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	if err := notify.WriteText(os.Stdout, report.Summaries()); err != nil {
		return err
	}
	return nil
}

func printReport(report *pipeline.Report) {
	fmt.Printf("\nRun %s\n", report.RunID)
	for _, e := range report.Employees {
		if e.ScrapeErr != nil {
			fmt.Printf("⚠ %s: no fresh data (%v)\n", e.Employee, e.ScrapeErr)
		}
		if n := len(e.ParseErrors); n > 0 {
			fmt.Printf("⚠ %s: %d unparseable rows skipped\n", e.Employee, n)
		}
		if n := len(e.Warnings); n > 0 {
			fmt.Printf("⚠ %s: %d punches with inconsistent times kept\n", e.Employee, n)
		}
		if e.Reconcile == nil {
			fmt.Printf("✗ %s: reconciliation failed\n", e.Employee)
			continue
		}

		r := e.Reconcile
		fmt.Printf("✓ %s: %d punches, %d new, %d retracted", e.Employee, len(r.Records), r.Inserted, len(r.Retracted))
		if e.Projection != nil {
			fmt.Printf(", %d events created", len(e.Projection.Created))
		}
		if len(r.Deferred) > 0 {
			fmt.Printf(", %d rejected kept until the calendar is enabled", len(r.Deferred))
		}
		fmt.Println()
	}

	if n := report.RetractionFailures(); n > 0 {
		fmt.Printf("⚠ %d calendar retractions failed; their events must be removed by hand\n", n)
	}
	if n := report.ProjectionFailures(); n > 0 {
		fmt.Printf("⚠ %d punches could not be added to the calendar (retried next run)\n", n)
	}
	if report.NotifyErr != nil {
		fmt.Printf("⚠ Summary email failed: %v\n", report.NotifyErr)
	}
	if report.PublishErr != nil {
		fmt.Printf("⚠ MQTT publish failed: %v\n", report.PublishErr)
	}
}
