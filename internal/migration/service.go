package migration

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// JobStats summarizes a job's execution history.
type JobStats struct {
	TotalRuns          int
	SuccessfulRuns     int
	FailedRuns         int
	SuccessRatePercent float64
	TotalMigrated      int
	TotalFailed        int
	AverageDurationMs  float64
}

// Service is the job-management façade: all caller-facing job mutation
// goes through here, never against the store directly.
type Service struct {
	store  JobStore
	exec   *Executor
	logger *slog.Logger
}

// NewService creates the façade over a job store and executor.
func NewService(store JobStore, exec *Executor, logger *slog.Logger) *Service {
	return &Service{store: store, exec: exec, logger: logger}
}

// CreateJob validates the configuration, stores the job and schedules
// its first run.
func (s *Service) CreateJob(farmID, name, description string, schedule Schedule, anchor time.Time, strategy Strategy) (*ScheduledMigrationJob, error) {
	if !schedule.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, schedule)
	}
	if !strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	job := &ScheduledMigrationJob{
		FarmID:        farmID,
		Name:          name,
		Description:   description,
		Schedule:      schedule,
		ScheduledTime: anchor,
		Strategy:      strategy,
	}
	if next, ok := ComputeNextRun(schedule, anchor, time.Now()); ok {
		job.NextRun = &next
	}

	id, err := s.store.Create(job)
	if err != nil {
		return nil, err
	}

	s.logger.Info("created migration job",
		"job_id", id,
		"farm_id", farmID,
		"schedule", schedule,
		"strategy", strategy)

	return s.store.Get(id)
}

// GetJob retrieves a job by id.
func (s *Service) GetJob(jobID string) (*ScheduledMigrationJob, error) {
	return s.store.Get(jobID)
}

// ListJobs returns all jobs owned by a farm.
func (s *Service) ListJobs(farmID string) ([]*ScheduledMigrationJob, error) {
	return s.store.ListByFarm(farmID)
}

// RescheduleJob changes a job's recurrence and anchor, recomputing the
// next run immediately, and returns a terminal job to pending with a
// fresh run. For a once schedule the new anchor itself becomes the due
// time, so a job that already ran can still fire once more; it retires
// again after that execution. A running job cannot be rescheduled.
func (s *Service) RescheduleJob(jobID string, schedule Schedule, anchor time.Time) (*ScheduledMigrationJob, error) {
	if !schedule.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSchedule, schedule)
	}
	if s.exec.IsActive(jobID) {
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}

	status := JobPending
	update := JobUpdate{Schedule: &schedule, ScheduledTime: &anchor, Status: &status}
	if next, ok := ComputeNextRun(schedule, anchor, time.Now()); ok {
		update.NextRun = &next
	} else {
		update.NextRun = &anchor
	}

	if err := s.store.Update(jobID, update); err != nil {
		return nil, err
	}
	return s.store.Get(jobID)
}

// DeleteJob removes a job. A running job cannot be deleted.
func (s *Service) DeleteJob(jobID string) (bool, error) {
	if s.exec.IsActive(jobID) {
		return false, fmt.Errorf("%w: %s", ErrJobRunning, jobID)
	}
	return s.store.Delete(jobID)
}

// Execute runs one migration batch for the job.
func (s *Service) Execute(jobID string, records []SourceRecord) (*MigrationJobResult, error) {
	return s.exec.Execute(jobID, records)
}

// GetResults returns the job's full result history, newest first.
func (s *Service) GetResults(jobID string) ([]*MigrationJobResult, error) {
	return s.store.ListResults(jobID, 0)
}

// GetStats aggregates run counters and result history into summary
// statistics for a job. The run counters are cumulative over the job's
// lifetime; the record sums and average duration cover the retained
// result history only, so with a retention policy in effect they
// describe the recent window, not every run ever made.
func (s *Service) GetStats(jobID string) (*JobStats, error) {
	job, err := s.store.Get(jobID)
	if err != nil {
		return nil, err
	}
	results, err := s.store.ListResults(jobID, 0)
	if err != nil {
		return nil, err
	}

	stats := &JobStats{
		TotalRuns:      job.TotalRuns,
		SuccessfulRuns: job.SuccessfulRuns,
		FailedRuns:     job.FailedRuns,
	}
	if job.TotalRuns > 0 {
		stats.SuccessRatePercent = float64(job.SuccessfulRuns) / float64(job.TotalRuns) * 100
	}

	var totalDuration time.Duration
	for _, r := range results {
		stats.TotalMigrated += r.MigratedTasks
		stats.TotalFailed += r.FailedTasks
		totalDuration += r.Duration
	}
	if len(results) > 0 {
		stats.AverageDurationMs = float64(totalDuration.Milliseconds()) / float64(len(results))
	}
	return stats, nil
}

// DueJobs returns every job eligible for execution at now.
func (s *Service) DueJobs(now time.Time) ([]*ScheduledMigrationJob, error) {
	jobs, err := s.store.List()
	if err != nil {
		return nil, err
	}
	return Due(jobs, now), nil
}

// History returns results across all of a farm's jobs, flattened and
// ordered newest first. A limit of zero or less returns everything.
func (s *Service) History(farmID string, limit int) ([]*MigrationJobResult, error) {
	jobs, err := s.store.ListByFarm(farmID)
	if err != nil {
		return nil, err
	}

	history := []*MigrationJobResult{}
	for _, job := range jobs {
		results, err := s.store.ListResults(job.ID, 0)
		if err != nil {
			return nil, err
		}
		history = append(history, results...)
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].CompletedAt.After(history[j].CompletedAt)
	})
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	return history, nil
}
