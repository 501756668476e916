// Package cli provides the command-line interface for the
// reconciliation engine.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	_ "github.com/mattn/go-sqlite3"

	"github.com/farmkonnect/reconcile/internal/config"
	"github.com/farmkonnect/reconcile/internal/db"
	"github.com/farmkonnect/reconcile/internal/metrics"
	"github.com/farmkonnect/reconcile/internal/migration"
	"github.com/farmkonnect/reconcile/internal/source"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	configFile string
	verbose    bool

	// Initialized in PersistentPreRunE
	cfg      *config.Config
	logger   *slog.Logger
	logClose func() error
	database *db.DB
	recorder *metrics.Recorder
	svc      *migration.Service
	provider migration.SourceRecordProvider
)

// rootCmd represents the base command when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "farmsync",
	Short: "FarmKonnect reconciliation engine",
	Long: `Farmsync runs the FarmKonnect reconciliation engine: scheduled
migration jobs that merge externally-sourced records into per-farm
storage under configurable conflict strategies, plus offline-sync
delta and conflict tooling.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, logClose = config.SetupLogger(cfg.Logging)

		database, err = db.OpenWithConfig(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		if err := database.InitSchema(); err != nil {
			database.Close()
			return fmt.Errorf("initialize schema: %w", err)
		}
		logger.Debug("database ready",
			"driver", database.Driver(),
			"dsn", cfg.Database.DSN)

		recorder = metrics.NewRecorder()
		jobs := migration.NewSQLJobStore(database)
		records := migration.NewSQLRecordStore(database)
		exec := migration.NewExecutor(jobs, records, logger,
			migration.WithRecorder(recorder),
			migration.WithResultRetention(cfg.Engine.ResultRetention))
		svc = migration.NewService(jobs, exec, logger)
		provider = source.NewSeedProvider()

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if database != nil {
			if err := database.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to close database: %v\n", err)
			}
		}
		if logClose != nil {
			logClose()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file (TOML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(syncCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
