package db

import (
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Test Fixtures and Helpers

// NewTestDB creates an in-memory SQLite database for testing
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	// Each sqlite :memory: connection is its own database
	db.SetMaxOpenConns(1)

	if err := db.InitSchema(); err != nil {
		db.Close()
		t.Fatalf("failed to initialize schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func testJob(id, farmID string) *Job {
	return &Job{
		ID:            id,
		FarmID:        farmID,
		Name:          "Seed tasks",
		Description:   "Migrate seed task templates",
		Schedule:      "daily",
		ScheduledTime: time.Date(2026, 1, 15, 6, 0, 0, 0, time.UTC),
		Strategy:      "merge",
		Status:        "pending",
	}
}

func TestCreateAndGetJob(t *testing.T) {
	db := NewTestDB(t)

	job := testJob("farm-1-job-1", "farm-1")
	if err := db.CreateJob(job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	got, err := db.GetJob("farm-1-job-1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}

	if got.FarmID != "farm-1" {
		t.Errorf("expected farm_id farm-1, got %s", got.FarmID)
	}
	if got.Schedule != "daily" {
		t.Errorf("expected schedule daily, got %s", got.Schedule)
	}
	if got.Status != "pending" {
		t.Errorf("expected status pending, got %s", got.Status)
	}
	if got.TotalRuns != 0 {
		t.Errorf("expected zero total runs, got %d", got.TotalRuns)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestGetJobNotFound(t *testing.T) {
	db := NewTestDB(t)

	_, err := db.GetJob("missing")
	if !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestGetJobsByFarm(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if err := db.CreateJob(testJob("farm-1-job-2", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if err := db.CreateJob(testJob("farm-2-job-1", "farm-2")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	jobs, err := db.GetJobsByFarm("farm-1")
	if err != nil {
		t.Fatalf("failed to list jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs, got %d", len(jobs))
	}

	all, err := db.GetAllJobs()
	if err != nil {
		t.Fatalf("failed to list all jobs: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 jobs, got %d", len(all))
	}
}

func TestUpdateJob(t *testing.T) {
	db := NewTestDB(t)

	job := testJob("farm-1-job-1", "farm-1")
	if err := db.CreateJob(job); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	now := time.Now().UTC()
	job.Status = "completed"
	job.LastRun = &now
	job.TotalRuns = 1
	job.SuccessfulRuns = 1
	if err := db.UpdateJob(job); err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	got, err := db.GetJob("farm-1-job-1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.Status != "completed" {
		t.Errorf("expected status completed, got %s", got.Status)
	}
	if got.LastRun == nil {
		t.Error("expected last_run to be set")
	}
	if got.TotalRuns != 1 || got.SuccessfulRuns != 1 {
		t.Errorf("expected counters 1/1, got %d/%d", got.TotalRuns, got.SuccessfulRuns)
	}

	missing := testJob("missing", "farm-1")
	if err := db.UpdateJob(missing); !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestUpdateJobWith(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	err := db.UpdateJobWith("farm-1-job-1", func(job *Job) error {
		job.Status = "running"
		job.TotalRuns = 3
		return nil
	})
	if err != nil {
		t.Fatalf("failed to update job: %v", err)
	}

	got, err := db.GetJob("farm-1-job-1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.Status != "running" || got.TotalRuns != 3 {
		t.Errorf("expected running/3, got %s/%d", got.Status, got.TotalRuns)
	}

	// A mutate error rolls the transaction back
	wantErr := errors.New("boom")
	err = db.UpdateJobWith("farm-1-job-1", func(job *Job) error {
		job.Status = "failed"
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Errorf("expected mutate error, got %v", err)
	}
	got, err = db.GetJob("farm-1-job-1")
	if err != nil {
		t.Fatalf("failed to get job: %v", err)
	}
	if got.Status != "running" {
		t.Errorf("expected status unchanged after rollback, got %s", got.Status)
	}

	err = db.UpdateJobWith("missing", func(job *Job) error { return nil })
	if !IsNotFound(err) {
		t.Errorf("expected not found error, got %v", err)
	}
}

func TestDeleteJob(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	if err := db.DeleteJob("farm-1-job-1"); err != nil {
		t.Fatalf("failed to delete job: %v", err)
	}
	if _, err := db.GetJob("farm-1-job-1"); !IsNotFound(err) {
		t.Errorf("expected not found after delete, got %v", err)
	}
	if err := db.DeleteJob("farm-1-job-1"); !IsNotFound(err) {
		t.Errorf("expected not found on second delete, got %v", err)
	}
}

func TestCreateDuplicateJob(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	err := db.CreateJob(testJob("farm-1-job-1", "farm-1"))
	if err == nil || !IsDuplicate(err) {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}

func testResult(id, jobID string, completedAt time.Time) *Result {
	return &Result{
		ID:            id,
		JobID:         jobID,
		FarmID:        "farm-1",
		StartedAt:     completedAt.Add(-time.Second),
		CompletedAt:   completedAt,
		DurationMs:    1000,
		Status:        "success",
		MigratedTasks: 5,
		TotalTasks:    5,
		Errors:        "[]",
	}
}

func TestResultsOrderingAndLimit(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		r := testResult(
			"result-"+string(rune('a'+i)),
			"farm-1-job-1",
			base.Add(time.Duration(i)*time.Hour),
		)
		if err := db.CreateResult(r); err != nil {
			t.Fatalf("failed to create result: %v", err)
		}
	}

	results, err := db.GetResults("farm-1-job-1", 0)
	if err != nil {
		t.Fatalf("failed to get results: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	// Newest first
	if !results[0].CompletedAt.After(results[1].CompletedAt) {
		t.Error("expected results ordered by completed_at descending")
	}

	limited, err := db.GetResults("farm-1-job-1", 2)
	if err != nil {
		t.Fatalf("failed to get limited results: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 results, got %d", len(limited))
	}
}

func TestTrimResults(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	base := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := testResult(
			"result-"+string(rune('a'+i)),
			"farm-1-job-1",
			base.Add(time.Duration(i)*time.Hour),
		)
		if err := db.CreateResult(r); err != nil {
			t.Fatalf("failed to create result: %v", err)
		}
	}

	if err := db.TrimResults("farm-1-job-1", 2); err != nil {
		t.Fatalf("failed to trim results: %v", err)
	}

	results, err := db.GetResults("farm-1-job-1", 0)
	if err != nil {
		t.Fatalf("failed to get results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results after trim, got %d", len(results))
	}
	// The most recent entries survive
	if !results[0].CompletedAt.Equal(base.Add(4 * time.Hour)) {
		t.Errorf("expected newest result kept, got %v", results[0].CompletedAt)
	}
}

func TestResultsDeletedWithJob(t *testing.T) {
	db := NewTestDB(t)

	if err := db.CreateJob(testJob("farm-1-job-1", "farm-1")); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	if err := db.CreateResult(testResult("result-a", "farm-1-job-1", time.Now())); err != nil {
		t.Fatalf("failed to create result: %v", err)
	}

	if err := db.DeleteJob("farm-1-job-1"); err != nil {
		t.Fatalf("failed to delete job: %v", err)
	}

	results, err := db.GetResults("farm-1-job-1", 0)
	if err != nil {
		t.Fatalf("failed to get results: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected results cascade-deleted, got %d", len(results))
	}
}

func TestRecordLifecycle(t *testing.T) {
	db := NewTestDB(t)

	rec := &Record{
		ID:             "soil-test",
		FarmID:         "farm-1",
		Title:          "Soil test",
		Category:       "crops",
		Status:         "pending",
		EstimatedHours: 4,
	}
	if err := db.InsertRecord(rec); err != nil {
		t.Fatalf("failed to insert record: %v", err)
	}

	got, err := db.GetRecord("farm-1", "soil-test")
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}
	if got.Title != "Soil test" || got.EstimatedHours != 4 {
		t.Errorf("unexpected record: %+v", got)
	}

	// Natural keys are scoped per farm
	if _, err := db.GetRecord("farm-2", "soil-test"); !IsNotFound(err) {
		t.Errorf("expected not found for other farm, got %v", err)
	}

	got.Status = "done"
	if err := db.UpdateRecord(got); err != nil {
		t.Fatalf("failed to update record: %v", err)
	}

	updated, err := db.GetRecord("farm-1", "soil-test")
	if err != nil {
		t.Fatalf("failed to get record: %v", err)
	}
	if updated.Status != "done" {
		t.Errorf("expected status done, got %s", updated.Status)
	}
	if updated.CreatedAt.After(updated.UpdatedAt) {
		t.Error("expected updated_at >= created_at")
	}
}
