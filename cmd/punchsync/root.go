package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jgoulah/punchsync/internal/config"
	"github.com/jgoulah/punchsync/internal/database"
	"github.com/jgoulah/punchsync/internal/docstore"
	"github.com/jgoulah/punchsync/internal/memstore"
	"github.com/jgoulah/punchsync/internal/period"
	"github.com/jgoulah/punchsync/internal/store"
	"github.com/jgoulah/punchsync/pkg/logger"
)

var (
	cfgFile  string
	dbPath   string
	logLevel string
	logJSON  bool
)

var rootCmd = &cobra.Command{
	Use:   "punchsync",
	Short: "Sync Acumen time punches to a store, Google Calendar and email",
	Long: `punchsync scrapes employee time punches from the Acumen portal, reconciles
them against a local store, mirrors valid punches onto a Google Calendar and
sends half-month hour summaries by email.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Setup(logLevel, !logJSON); err != nil {
			return err
		}
		cmd.SetContext(log.Logger.WithContext(cmd.Context()))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite file (overrides store.path)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log as JSON instead of console output")
}

// getConfigPath returns the config file path
func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig loads the configuration file
func loadConfig() (*config.Config, error) {
	return config.Load(getConfigPath())
}

// getDBPath returns the SQLite path, the flag winning over the config
func getDBPath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.GetDBPath()
}

// openStore opens the configured backend
func openStore(ctx context.Context, cfg *config.Config, loc *time.Location) (store.Store, error) {
	switch cfg.GetStoreBackend() {
	case config.StoreSQLite:
		path := getDBPath(cfg)

		// Ensure directory exists
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
		db, err := database.New(path, loc)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.StoreMongo:
		if cfg.Store.MongoURI == "" {
			return nil, fmt.Errorf("store.mongo_uri is required for the mongo backend")
		}
		ds, err := docstore.Open(ctx, cfg.Store.MongoURI, cfg.GetMongoDatabase(), cfg.GetMongoCollection(), loc)
		if err != nil {
			return nil, err
		}
		return ds, nil
	case config.StoreNone:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q (available: sqlite, mongo, none)", cfg.Store.Backend)
	}
}

// resolveMonth parses a YYYY-MM flag, defaulting to the current month
func resolveMonth(month string, loc *time.Location) (period.Window, error) {
	if month == "" {
		return period.MonthOf(time.Now().In(loc)), nil
	}
	return period.ParseMonth(month, loc)
}

// resolveEmployees returns the named employees, or every configured one
func resolveEmployees(cfg *config.Config, names []string) ([]string, error) {
	if len(names) == 0 {
		names = cfg.EmployeeNames()
		if len(names) == 0 {
			return nil, fmt.Errorf("no employees configured in %s", getConfigPath())
		}
		return names, nil
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		e, ok := cfg.Employee(n)
		if !ok {
			return nil, fmt.Errorf("unknown employee: %s (available: %v)", n, cfg.EmployeeNames())
		}
		out = append(out, e.Name)
	}
	return out, nil
}

// storedEmployees returns the flag value, or every employee in the store
func storedEmployees(ctx context.Context, st store.Store, employee string) ([]string, error) {
	if employee != "" {
		return []string{employee}, nil
	}
	return st.Employees(ctx)
}
