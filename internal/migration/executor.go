package migration

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RunRecorder receives execution metrics. Implemented by the Prometheus
// recorder; a nil recorder disables metrics entirely.
type RunRecorder interface {
	RecordRun(jobName string, status RunStatus, duration time.Duration, migrated, failed int)
}

// Executor applies one batch of source records to the persisted farm
// collection under a job's merge strategy, producing exactly one
// MigrationJobResult per call.
//
// An active-job set keyed by job id guards against re-entrant execution
// of the same job; distinct job ids may run concurrently and share no
// mutable state beyond the stores.
type Executor struct {
	jobs     JobStore
	records  RecordStore
	logger   *slog.Logger
	recorder RunRecorder

	// Number of results to retain per job after each run; zero keeps
	// the full history.
	retention int

	mu     sync.Mutex
	active map[string]struct{}
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r RunRecorder) ExecutorOption {
	return func(e *Executor) { e.recorder = r }
}

// WithResultRetention bounds the per-job result history.
func WithResultRetention(keep int) ExecutorOption {
	return func(e *Executor) { e.retention = keep }
}

// NewExecutor creates an executor over the given stores.
func NewExecutor(jobs JobStore, records RecordStore, logger *slog.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		jobs:    jobs,
		records: records,
		logger:  logger,
		active:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsActive reports whether an execution for the job id is in flight.
func (e *Executor) IsActive(jobID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[jobID]
	return ok
}

// acquire claims the active-job slot for jobID.
func (e *Executor) acquire(jobID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.active[jobID]; ok {
		return fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	e.active[jobID] = struct{}{}
	return nil
}

func (e *Executor) release(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, jobID)
}

// Execute runs one migration batch for the job. It fails fast with
// ErrJobNotFound or ErrJobRunning before touching any state; past that
// point every failure is captured in the returned result rather than
// surfaced as an error.
func (e *Executor) Execute(jobID string, source []SourceRecord) (*MigrationJobResult, error) {
	job, err := e.jobs.Get(jobID)
	if err != nil {
		return nil, err
	}

	if err := e.acquire(jobID); err != nil {
		return nil, err
	}
	// The guard release must be unconditional: a panic escaping the
	// record loop may not leave the job permanently wedged.
	defer e.release(jobID)

	start := time.Now()
	result := &MigrationJobResult{
		JobID:     jobID,
		FarmID:    job.FarmID,
		StartedAt: start,
	}

	e.logger.Info("starting migration run",
		"job_id", jobID,
		"farm_id", job.FarmID,
		"strategy", job.Strategy,
		"records", len(source))

	status := JobRunning
	if err := e.jobs.Update(jobID, JobUpdate{Status: &status}); err != nil {
		// Store unreachable: fatal run, zero records processed.
		return e.finishFatal(job, result, fmt.Errorf("mark running: %w", err)), nil
	}

	for _, rec := range source {
		migrated, err := e.applyRecord(job, rec)
		switch {
		case err != nil:
			result.FailedTasks++
			result.Errors = append(result.Errors, TaskError{
				RecordID: rec.ID,
				Message:  err.Error(),
			})
			e.logger.Warn("record migration failed",
				"job_id", jobID,
				"record_id", rec.ID,
				"error", err)
		case migrated:
			result.MigratedTasks++
		}
		result.TotalTasks++
	}

	e.finish(job, result)
	return result, nil
}

// applyRecord applies a single source record under the job's strategy
// and reports whether the record counts as migrated. Skips are neither
// migrated nor failed.
func (e *Executor) applyRecord(job *ScheduledMigrationJob, src SourceRecord) (bool, error) {
	if src.ID == "" {
		return false, errors.New("source record has no id")
	}

	existing, err := e.records.Lookup(job.FarmID, src.ID)
	if err != nil && !errors.Is(err, ErrRecordNotFound) {
		return false, fmt.Errorf("lookup: %w", err)
	}

	if existing == nil {
		rec := recordFromSource(job.FarmID, src)
		if err := e.records.Insert(rec); err != nil {
			return false, fmt.Errorf("insert: %w", err)
		}
		return true, nil
	}

	switch job.Strategy {
	case StrategySkipExisting:
		return false, nil

	case StrategyOverwrite:
		rec := recordFromSource(job.FarmID, src)
		if err := e.records.Update(rec); err != nil {
			return false, fmt.Errorf("overwrite: %w", err)
		}
		return true, nil

	case StrategyMerge:
		merged, changed := mergeRecord(existing, src)
		if !changed {
			return false, nil
		}
		if err := e.records.Update(merged); err != nil {
			return false, fmt.Errorf("merge: %w", err)
		}
		return true, nil

	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidStrategy, job.Strategy)
	}
}

// mergeRecord copies a source value into each field of the persisted
// record that is empty or absent. Populated fields are never
// overwritten, regardless of batch order.
func mergeRecord(existing *FarmRecord, src SourceRecord) (*FarmRecord, bool) {
	merged := *existing
	changed := false

	if merged.Title == "" && src.Title != "" {
		merged.Title = src.Title
		changed = true
	}
	if merged.Description == "" && src.Description != "" {
		merged.Description = src.Description
		changed = true
	}
	if merged.Category == "" && src.Category != "" {
		merged.Category = src.Category
		changed = true
	}
	if merged.Status == "" && src.Status != "" {
		merged.Status = src.Status
		changed = true
	}
	if merged.EstimatedHours == 0 && src.EstimatedHours != 0 {
		merged.EstimatedHours = src.EstimatedHours
		changed = true
	}

	return &merged, changed
}

func recordFromSource(farmID string, src SourceRecord) *FarmRecord {
	return &FarmRecord{
		ID:             src.ID,
		FarmID:         farmID,
		Title:          src.Title,
		Description:    src.Description,
		Category:       src.Category,
		Status:         src.Status,
		EstimatedHours: src.EstimatedHours,
	}
}

// finish derives the run status, persists the result and updates the
// job's bookkeeping: lastRun, run counters, lifecycle status and the
// next run for recurring schedules.
func (e *Executor) finish(job *ScheduledMigrationJob, result *MigrationJobResult) {
	end := time.Now()
	result.CompletedAt = end
	result.Duration = end.Sub(result.StartedAt)
	result.Status = DeriveRunStatus(result.FailedTasks, result.TotalTasks)

	jobStatus := JobCompleted
	successful := job.SuccessfulRuns
	failed := job.FailedRuns
	if result.Status == RunSuccess {
		successful++
	} else {
		jobStatus = JobFailed
		failed++
	}
	total := job.TotalRuns + 1

	update := JobUpdate{
		Status:         &jobStatus,
		LastRun:        &end,
		TotalRuns:      &total,
		SuccessfulRuns: &successful,
		FailedRuns:     &failed,
	}
	if next, ok := ComputeNextRun(job.Schedule, job.ScheduledTime, end); ok {
		update.NextRun = &next
	} else {
		update.ClearNextRun = true
	}

	if err := e.jobs.Update(job.ID, update); err != nil {
		e.logger.Error("failed to update job after run", "job_id", job.ID, "error", err)
	}
	if err := e.jobs.AppendResult(job.ID, result); err != nil {
		e.logger.Error("failed to append run result", "job_id", job.ID, "error", err)
	}
	if e.retention > 0 {
		if err := e.jobs.TrimResults(job.ID, e.retention); err != nil {
			e.logger.Error("failed to trim result history", "job_id", job.ID, "error", err)
		}
	}

	if e.recorder != nil {
		e.recorder.RecordRun(job.Name, result.Status, result.Duration,
			result.MigratedTasks, result.FailedTasks)
	}

	e.logger.Info("migration run complete",
		"job_id", job.ID,
		"status", result.Status,
		"migrated", result.MigratedTasks,
		"failed", result.FailedTasks,
		"total", result.TotalTasks,
		"duration", result.Duration)
}

// finishFatal records a run that could not start at all: status failed,
// zero records processed, one synthetic error entry.
func (e *Executor) finishFatal(job *ScheduledMigrationJob, result *MigrationJobResult, cause error) *MigrationJobResult {
	end := time.Now()
	result.CompletedAt = end
	result.Duration = end.Sub(result.StartedAt)
	result.Status = RunFailed
	result.Errors = append(result.Errors, TaskError{Message: cause.Error()})

	e.logger.Error("migration run failed to start",
		"job_id", job.ID,
		"error", cause)

	// Best effort: the store that failed above may refuse these too.
	jobStatus := JobFailed
	failed := job.FailedRuns + 1
	total := job.TotalRuns + 1
	_ = e.jobs.Update(job.ID, JobUpdate{
		Status:     &jobStatus,
		LastRun:    &end,
		TotalRuns:  &total,
		FailedRuns: &failed,
	})
	_ = e.jobs.AppendResult(job.ID, result)

	if e.recorder != nil {
		e.recorder.RecordRun(job.Name, result.Status, result.Duration, 0, 0)
	}
	return result
}
