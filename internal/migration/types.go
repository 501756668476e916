package migration

import (
	"errors"
	"time"
)

// Schedule is the recurrence of a migration job.
type Schedule string

const (
	ScheduleDaily   Schedule = "daily"
	ScheduleWeekly  Schedule = "weekly"
	ScheduleMonthly Schedule = "monthly"
	ScheduleOnce    Schedule = "once"
)

// Valid reports whether s is a known recurrence.
func (s Schedule) Valid() bool {
	switch s {
	case ScheduleDaily, ScheduleWeekly, ScheduleMonthly, ScheduleOnce:
		return true
	}
	return false
}

// Recurring reports whether the schedule produces a next run after an execution.
func (s Schedule) Recurring() bool {
	return s.Valid() && s != ScheduleOnce
}

// Strategy governs per-record conflict resolution during a migration run.
//
// overwrite replaces every mutable field of an existing record,
// merge fills only empty fields and never touches populated ones,
// skip_existing leaves existing records untouched entirely.
type Strategy string

const (
	StrategyOverwrite    Strategy = "overwrite"
	StrategyMerge        Strategy = "merge"
	StrategySkipExisting Strategy = "skip_existing"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyOverwrite, StrategyMerge, StrategySkipExisting:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a migration job.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// RunStatus is the overall outcome of a single execution.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
	RunPartial RunStatus = "partial"
)

// Standard errors
var (
	ErrJobNotFound     = errors.New("migration: job not found")
	ErrRecordNotFound  = errors.New("migration: record not found")
	ErrRecordExists    = errors.New("migration: record already exists")
	ErrJobRunning      = errors.New("migration: job is running")
	ErrInvalidSchedule = errors.New("migration: invalid schedule")
	ErrInvalidStrategy = errors.New("migration: invalid strategy")
)

// ScheduledMigrationJob is a named, recurring unit of reconciliation work
// owned by a single farm.
type ScheduledMigrationJob struct {
	ID            string
	FarmID        string
	Name          string
	Description   string
	Schedule      Schedule
	ScheduledTime time.Time // recurrence anchor
	Strategy      Strategy
	Status        JobStatus

	LastRun *time.Time
	NextRun *time.Time

	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a deep copy. The store hands out copies so callers can
// never mutate job state directly.
func (j *ScheduledMigrationJob) Clone() *ScheduledMigrationJob {
	c := *j
	if j.LastRun != nil {
		t := *j.LastRun
		c.LastRun = &t
	}
	if j.NextRun != nil {
		t := *j.NextRun
		c.NextRun = &t
	}
	return &c
}

// TaskError records a single source record that failed during a run.
type TaskError struct {
	RecordID string `json:"recordId"`
	Message  string `json:"message"`
}

// MigrationJobResult is the immutable record of one execution.
type MigrationJobResult struct {
	JobID       string
	FarmID      string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Status      RunStatus

	MigratedTasks int
	FailedTasks   int
	TotalTasks    int

	Errors []TaskError
}

// DeriveRunStatus maps task counts to an overall run status:
// no failures is success, all failures is failed, anything else partial.
func DeriveRunStatus(failedTasks, totalTasks int) RunStatus {
	switch {
	case failedTasks == 0:
		return RunSuccess
	case failedTasks == totalTasks && totalTasks > 0:
		return RunFailed
	default:
		return RunPartial
	}
}

// SourceRecord is one externally-sourced record awaiting migration.
// ID is the natural key used to match against persisted records.
type SourceRecord struct {
	ID             string
	Title          string
	Description    string
	Category       string
	Status         string
	EstimatedHours float64
}

// FarmRecord is the persisted form of a migrated record, scoped to the
// owning farm.
type FarmRecord struct {
	ID             string
	FarmID         string
	Title          string
	Description    string
	Category       string
	Status         string
	EstimatedHours float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// JobUpdate is a partial update applied to a stored job. Nil fields are
// left untouched; UpdatedAt is always refreshed by the store.
type JobUpdate struct {
	Name           *string
	Description    *string
	Schedule       *Schedule
	ScheduledTime  *time.Time
	Strategy       *Strategy
	Status         *JobStatus
	LastRun        *time.Time
	NextRun        *time.Time
	ClearNextRun   bool
	TotalRuns      *int
	SuccessfulRuns *int
	FailedRuns     *int
}

// JobStore is keyed storage for jobs and their result history.
// Implementations must be safe for concurrent use.
type JobStore interface {
	Create(job *ScheduledMigrationJob) (string, error)
	Get(jobID string) (*ScheduledMigrationJob, error)
	List() ([]*ScheduledMigrationJob, error)
	ListByFarm(farmID string) ([]*ScheduledMigrationJob, error)
	Update(jobID string, update JobUpdate) error
	Delete(jobID string) (bool, error)

	AppendResult(jobID string, result *MigrationJobResult) error
	ListResults(jobID string, limit int) ([]*MigrationJobResult, error)
	TrimResults(jobID string, keep int) error
}

// RecordStore is the persisted farm-record collection the executor
// migrates into. Operations are atomic at the single-record level.
type RecordStore interface {
	Lookup(farmID, recordID string) (*FarmRecord, error)
	Insert(record *FarmRecord) error
	Update(record *FarmRecord) error
}

// SourceRecordProvider supplies the batch of source records for a run,
// so a live upstream feed can replace seed data without touching merge
// logic.
type SourceRecordProvider interface {
	Records(farmID string) ([]SourceRecord, error)
}
