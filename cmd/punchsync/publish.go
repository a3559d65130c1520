package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jgoulah/punchsync/internal/publisher"
)

var (
	publishEmployee string
	publishMonth    string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish stored month summaries to MQTT",
	Long:  `Aggregates stored punches and publishes one retained JSON message per employee to the configured MQTT broker.`,
	RunE:  runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&publishEmployee, "employee", "", "Employee to publish (default: all)")
	publishCmd.Flags().StringVar(&publishMonth, "month", "", "Month as YYYY-MM (default: current month)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Publish started at %s ===\n", time.Now().Format("2006-01-02 15:04:05 MST"))
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if !cfg.MQTT.Enabled {
		return fmt.Errorf("MQTT is not enabled in config")
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	month, err := resolveMonth(publishMonth, loc)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg, loc)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	summaries, err := storedSummaries(cmd, st, publishEmployee, month)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("No data to publish")
		return nil
	}

	pub, err := publisher.New(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	if err := pub.Publish(summaries); err != nil {
		return err
	}

	fmt.Printf("✓ Published %d summaries for %s\n", len(summaries), month.Label())
	return nil
}
