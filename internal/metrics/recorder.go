// Package metrics exposes execution metrics over Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/farmkonnect/reconcile/internal/migration"
)

// Recorder is a Prometheus implementation of migration.RunRecorder.
type Recorder struct {
	registry *prometheus.Registry

	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec
	recordsMigrated    *prometheus.CounterVec
	recordsFailed      *prometheus.CounterVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Recorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migration_run_duration_seconds",
			Help:    "Duration of migration job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_run_status_total",
			Help: "Total number of migration job executions by status.",
		}, []string{"job_name", "status"}),
		recordsMigrated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_records_migrated_total",
			Help: "Total records migrated per job.",
		}, []string{"job_name"}),
		recordsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "migration_records_failed_total",
			Help: "Total records that failed to migrate per job.",
		}, []string{"job_name"}),
	}

	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.recordsMigrated)
	registry.MustRegister(r.recordsFailed)

	return r
}

// RecordRun records one completed execution.
func (r *Recorder) RecordRun(jobName string, status migration.RunStatus, duration time.Duration, migrated, failed int) {
	r.runStatusCounter.WithLabelValues(jobName, string(status)).Inc()
	r.runDurationSeconds.WithLabelValues(jobName, string(status)).Observe(duration.Seconds())
	r.recordsMigrated.WithLabelValues(jobName).Add(float64(migrated))
	r.recordsFailed.WithLabelValues(jobName).Add(float64(failed))
}

// Handler returns the HTTP handler serving the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

var _ migration.RunRecorder = (*Recorder)(nil)
