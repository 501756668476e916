package cli

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmkonnect/reconcile/internal/migration"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the reconciliation loop",
	Long: `Run polls for due jobs on the configured tick interval and executes
each with records from the source provider. Jobs already in flight are
skipped and picked up on a later tick.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger.Info("starting reconciliation loop",
			"tick_interval", cfg.Engine.TickInterval,
			"result_retention", cfg.Engine.ResultRetention)

		if cfg.Metrics.Enabled {
			addr := fmt.Sprintf("%s:%d", cfg.Metrics.Address, cfg.Metrics.Port)
			mux := http.NewServeMux()
			mux.Handle("/metrics", recorder.Handler())
			go func() {
				logger.Info("metrics enabled", "address", addr)
				if err := http.ListenAndServe(addr, mux); err != nil {
					logger.Error("metrics server stopped", "error", err)
				}
			}()
		}

		ticker := time.NewTicker(cfg.Engine.TickInterval)
		defer ticker.Stop()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

		// First pass immediately so a freshly created due job does not
		// wait a full tick.
		iteration()

		for {
			select {
			case <-sigChan:
				logger.Info("shutting down gracefully")
				return nil

			case <-ticker.C:
				iteration()
			}
		}
	},
}

// iteration executes every due job once. Each job runs in its own
// goroutine; the active-job guard serializes re-runs of the same id.
func iteration() {
	due, err := svc.DueJobs(time.Now())
	if err != nil {
		logger.Error("failed to query due jobs", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	logger.Debug("found due jobs", "count", len(due))

	for _, job := range due {
		go func(job *migration.ScheduledMigrationJob) {
			records, err := provider.Records(job.FarmID)
			if err != nil {
				logger.Error("failed to load source records",
					"job_id", job.ID,
					"farm_id", job.FarmID,
					"error", err)
				return
			}

			if _, err := svc.Execute(job.ID, records); err != nil {
				if errors.Is(err, migration.ErrJobRunning) {
					logger.Debug("job already running, skipping", "job_id", job.ID)
					return
				}
				logger.Error("job execution failed to start", "job_id", job.ID, "error", err)
			}
		}(job)
	}
}
