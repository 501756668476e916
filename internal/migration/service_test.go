package migration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *MemoryJobStore) {
	t.Helper()
	store := NewMemoryJobStore()
	exec := NewExecutor(store, NewMemoryRecordStore(), testLogger())
	return NewService(store, exec, testLogger()), store
}

func TestServiceCreateJob(t *testing.T) {
	svc, _ := newTestService(t)

	anchor := time.Now().Add(time.Hour)
	job, err := svc.CreateJob("farm-1", "Seed tasks", "nightly sync",
		ScheduleDaily, anchor, StrategyMerge)
	require.NoError(t, err)

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobPending, job.Status)
	require.NotNil(t, job.NextRun, "recurring jobs get a first run scheduled")
	assert.True(t, job.NextRun.After(time.Now()))
}

func TestServiceCreateOnceJobHasNoNextRun(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.CreateJob("farm-1", "One-off import", "",
		ScheduleOnce, time.Now(), StrategyOverwrite)
	require.NoError(t, err)
	assert.Nil(t, job.NextRun)
}

func TestServiceCreateJobValidation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CreateJob("farm-1", "bad", "", "hourly", time.Now(), StrategyMerge)
	assert.ErrorIs(t, err, ErrInvalidSchedule)

	_, err = svc.CreateJob("farm-1", "bad", "", ScheduleDaily, time.Now(), "upsert")
	assert.ErrorIs(t, err, ErrInvalidStrategy)
}

func TestServiceReschedule(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.CreateJob("farm-1", "Seed tasks", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)

	anchor := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	updated, err := svc.RescheduleJob(job.ID, ScheduleMonthly, anchor)
	require.NoError(t, err)
	assert.Equal(t, ScheduleMonthly, updated.Schedule)
	assert.Equal(t, anchor, updated.ScheduledTime)
	assert.Equal(t, JobPending, updated.Status)
	require.NotNil(t, updated.NextRun)

	// Switching to once makes the new anchor the single due time.
	updated, err = svc.RescheduleJob(job.ID, ScheduleOnce, anchor)
	require.NoError(t, err)
	require.NotNil(t, updated.NextRun)
	assert.Equal(t, anchor, *updated.NextRun)

	_, err = svc.RescheduleJob(job.ID, "hourly", anchor)
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestServiceRescheduleRanJobToOnce(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.CreateJob("farm-1", "Seed tasks", "",
		ScheduleDaily, time.Now().Add(-time.Hour), StrategyOverwrite)
	require.NoError(t, err)

	_, err = svc.Execute(job.ID, []SourceRecord{{ID: "soil-test", Title: "Soil test"}})
	require.NoError(t, err)

	// A job with a run behind it still fires once more at the new
	// anchor instead of retiring immediately.
	anchor := time.Now().Add(-time.Minute)
	updated, err := svc.RescheduleJob(job.ID, ScheduleOnce, anchor)
	require.NoError(t, err)
	assert.Equal(t, JobPending, updated.Status)

	due, err := svc.DueJobs(time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, job.ID, due[0].ID)

	_, err = svc.Execute(job.ID, []SourceRecord{{ID: "soil-test", Title: "Soil test"}})
	require.NoError(t, err)

	// After that single run the once job retires for good.
	due, err = svc.DueJobs(time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestServiceGuardsActiveJob(t *testing.T) {
	store := NewMemoryJobStore()
	exec := NewExecutor(store, NewMemoryRecordStore(), testLogger())
	svc := NewService(store, exec, testLogger())

	job, err := svc.CreateJob("farm-1", "Seed tasks", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)

	require.NoError(t, exec.acquire(job.ID))
	defer exec.release(job.ID)

	_, err = svc.RescheduleJob(job.ID, ScheduleWeekly, time.Now())
	assert.ErrorIs(t, err, ErrJobRunning)

	_, err = svc.DeleteJob(job.ID)
	assert.ErrorIs(t, err, ErrJobRunning)
}

func TestServiceDeleteJob(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.CreateJob("farm-1", "Seed tasks", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)

	deleted, err := svc.DeleteJob(job.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.DeleteJob(job.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestServiceStats(t *testing.T) {
	svc, _ := newTestService(t)

	job, err := svc.CreateJob("farm-1", "Seed tasks", "",
		ScheduleDaily, time.Now().Add(-time.Hour), StrategyMerge)
	require.NoError(t, err)

	// One clean run, one partial run.
	_, err = svc.Execute(job.ID, []SourceRecord{
		{ID: "soil-test", Title: "Soil test"},
	})
	require.NoError(t, err)

	_, err = svc.Execute(job.ID, []SourceRecord{
		{ID: "fence-check", Title: "Fence check"},
		{ID: ""},
	})
	require.NoError(t, err)

	stats, err := svc.GetStats(job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 1, stats.SuccessfulRuns)
	assert.Equal(t, 1, stats.FailedRuns)
	assert.Equal(t, 50.0, stats.SuccessRatePercent)
	assert.Equal(t, 2, stats.TotalMigrated)
	assert.Equal(t, 1, stats.TotalFailed)

	results, err := svc.GetResults(job.ID)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, RunPartial, results[0].Status)

	// Stats for a fresh job divide nothing by nothing.
	fresh, err := svc.CreateJob("farm-1", "Fresh", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)
	empty, err := svc.GetStats(fresh.ID)
	require.NoError(t, err)
	assert.Zero(t, empty.SuccessRatePercent)
	assert.Zero(t, empty.AverageDurationMs)
}

func TestServiceStatsRetentionWindow(t *testing.T) {
	store := NewMemoryJobStore()
	exec := NewExecutor(store, NewMemoryRecordStore(), testLogger(),
		WithResultRetention(1))
	svc := NewService(store, exec, testLogger())

	job, err := svc.CreateJob("farm-1", "Seed tasks", "",
		ScheduleDaily, time.Now().Add(-time.Hour), StrategyOverwrite)
	require.NoError(t, err)

	batch := []SourceRecord{
		{ID: "soil-test", Title: "Soil test"},
		{ID: "fence-check", Title: "Fence check"},
	}
	for i := 0; i < 2; i++ {
		_, err = svc.Execute(job.ID, batch)
		require.NoError(t, err)
	}

	stats, err := svc.GetStats(job.ID)
	require.NoError(t, err)

	// Run counters span the job's lifetime; record sums cover only the
	// retained window.
	assert.Equal(t, 2, stats.TotalRuns)
	assert.Equal(t, 2, stats.SuccessfulRuns)
	assert.Equal(t, 2, stats.TotalMigrated)
}

func TestServiceHistory(t *testing.T) {
	svc, store := newTestService(t)

	a, err := svc.CreateJob("farm-1", "Job A", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)
	b, err := svc.CreateJob("farm-1", "Job B", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)
	other, err := svc.CreateJob("farm-2", "Other farm", "",
		ScheduleDaily, time.Now(), StrategyMerge)
	require.NoError(t, err)

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendResult(a.ID, &MigrationJobResult{
		JobID: a.ID, FarmID: "farm-1", CompletedAt: base, Status: RunSuccess,
	}))
	require.NoError(t, store.AppendResult(b.ID, &MigrationJobResult{
		JobID: b.ID, FarmID: "farm-1", CompletedAt: base.Add(time.Hour), Status: RunFailed,
	}))
	require.NoError(t, store.AppendResult(other.ID, &MigrationJobResult{
		JobID: other.ID, FarmID: "farm-2", CompletedAt: base, Status: RunSuccess,
	}))

	history, err := svc.History("farm-1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, b.ID, history[0].JobID, "newest first across jobs")

	limited, err := svc.History("farm-1", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, b.ID, limited[0].JobID)
}

func TestServiceDueJobs(t *testing.T) {
	svc, _ := newTestService(t)

	past := time.Now().Add(-time.Hour)
	due, err := svc.CreateJob("farm-1", "Due", "", ScheduleOnce, past, StrategyMerge)
	require.NoError(t, err)
	_, err = svc.CreateJob("farm-1", "Not due", "",
		ScheduleOnce, time.Now().Add(time.Hour), StrategyMerge)
	require.NoError(t, err)

	jobs, err := svc.DueJobs(time.Now())
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, due.ID, jobs[0].ID)
}
