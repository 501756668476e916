package migration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/farmkonnect/reconcile/internal/db"
)

// SQLJobStore is the SQLite-backed JobStore. Partial updates are
// read-modify-write; the executor's single-writer-per-job guard makes
// that sufficient without cross-job transactions.
type SQLJobStore struct {
	db *db.DB
}

// NewSQLJobStore wraps an open database as a JobStore.
func NewSQLJobStore(database *db.DB) *SQLJobStore {
	return &SQLJobStore{db: database}
}

// Create assigns a unique id and stores the job with status pending.
func (s *SQLJobStore) Create(job *ScheduledMigrationJob) (string, error) {
	id := fmt.Sprintf("%s-%s", job.FarmID, uuid.NewString())

	row := &db.Job{
		ID:            id,
		FarmID:        job.FarmID,
		Name:          job.Name,
		Description:   job.Description,
		Schedule:      string(job.Schedule),
		ScheduledTime: job.ScheduledTime,
		Strategy:      string(job.Strategy),
		Status:        string(JobPending),
		NextRun:       job.NextRun,
	}
	if err := s.db.CreateJob(row); err != nil {
		return "", err
	}
	job.ID = id
	return id, nil
}

// Get retrieves a job by id.
func (s *SQLJobStore) Get(jobID string) (*ScheduledMigrationJob, error) {
	row, err := s.db.GetJob(jobID)
	if db.IsNotFound(err) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobFromRow(row), nil
}

// List returns every stored job, newest first.
func (s *SQLJobStore) List() ([]*ScheduledMigrationJob, error) {
	rows, err := s.db.GetAllJobs()
	if err != nil {
		return nil, err
	}
	return jobsFromRows(rows), nil
}

// ListByFarm returns all jobs owned by a farm, newest first.
func (s *SQLJobStore) ListByFarm(farmID string) ([]*ScheduledMigrationJob, error) {
	rows, err := s.db.GetJobsByFarm(farmID)
	if err != nil {
		return nil, err
	}
	return jobsFromRows(rows), nil
}

// Update applies a partial update and refreshes the updated timestamp.
// The read-modify-write runs in one transaction so a concurrent delete
// cannot slip between the read and the write.
func (s *SQLJobStore) Update(jobID string, update JobUpdate) error {
	err := s.db.UpdateJobWith(jobID, func(row *db.Job) error {
		job := jobFromRow(row)
		applyJobUpdate(job, update)

		row.Name = job.Name
		row.Description = job.Description
		row.Schedule = string(job.Schedule)
		row.ScheduledTime = job.ScheduledTime
		row.Strategy = string(job.Strategy)
		row.Status = string(job.Status)
		row.LastRun = job.LastRun
		row.NextRun = job.NextRun
		row.TotalRuns = job.TotalRuns
		row.SuccessfulRuns = job.SuccessfulRuns
		row.FailedRuns = job.FailedRuns
		return nil
	})
	if db.IsNotFound(err) {
		return ErrJobNotFound
	}
	return err
}

// Delete removes a job, reporting whether it existed.
func (s *SQLJobStore) Delete(jobID string) (bool, error) {
	err := s.db.DeleteJob(jobID)
	if db.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// AppendResult appends one execution result to the job's history.
func (s *SQLJobStore) AppendResult(jobID string, result *MigrationJobResult) error {
	if _, err := s.Get(jobID); err != nil {
		return err
	}

	errorsJSON, err := json.Marshal(result.Errors)
	if err != nil {
		return fmt.Errorf("marshal result errors: %w", err)
	}

	return s.db.CreateResult(&db.Result{
		ID:            uuid.NewString(),
		JobID:         jobID,
		FarmID:        result.FarmID,
		StartedAt:     result.StartedAt,
		CompletedAt:   result.CompletedAt,
		DurationMs:    result.Duration.Milliseconds(),
		Status:        string(result.Status),
		MigratedTasks: result.MigratedTasks,
		FailedTasks:   result.FailedTasks,
		TotalTasks:    result.TotalTasks,
		Errors:        string(errorsJSON),
	})
}

// ListResults returns the job's result history, newest first.
func (s *SQLJobStore) ListResults(jobID string, limit int) ([]*MigrationJobResult, error) {
	if _, err := s.Get(jobID); err != nil {
		return nil, err
	}

	rows, err := s.db.GetResults(jobID, limit)
	if err != nil {
		return nil, err
	}
	return resultsFromRows(rows)
}

// ResultsByFarm returns results across all of a farm's jobs, newest
// first. Used by the service façade's history view.
func (s *SQLJobStore) ResultsByFarm(farmID string, limit int) ([]*MigrationJobResult, error) {
	rows, err := s.db.GetResultsByFarm(farmID, limit)
	if err != nil {
		return nil, err
	}
	return resultsFromRows(rows)
}

// TrimResults keeps the most recent keep entries by completion time.
func (s *SQLJobStore) TrimResults(jobID string, keep int) error {
	return s.db.TrimResults(jobID, keep)
}

func jobFromRow(row *db.Job) *ScheduledMigrationJob {
	return &ScheduledMigrationJob{
		ID:             row.ID,
		FarmID:         row.FarmID,
		Name:           row.Name,
		Description:    row.Description,
		Schedule:       Schedule(row.Schedule),
		ScheduledTime:  row.ScheduledTime,
		Strategy:       Strategy(row.Strategy),
		Status:         JobStatus(row.Status),
		LastRun:        row.LastRun,
		NextRun:        row.NextRun,
		TotalRuns:      row.TotalRuns,
		SuccessfulRuns: row.SuccessfulRuns,
		FailedRuns:     row.FailedRuns,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}

func jobsFromRows(rows []*db.Job) []*ScheduledMigrationJob {
	jobs := make([]*ScheduledMigrationJob, 0, len(rows))
	for _, row := range rows {
		jobs = append(jobs, jobFromRow(row))
	}
	return jobs
}

func resultsFromRows(rows []*db.Result) ([]*MigrationJobResult, error) {
	results := make([]*MigrationJobResult, 0, len(rows))
	for _, row := range rows {
		var taskErrors []TaskError
		if row.Errors != "" {
			if err := json.Unmarshal([]byte(row.Errors), &taskErrors); err != nil {
				return nil, fmt.Errorf("unmarshal result errors: %w", err)
			}
		}
		results = append(results, &MigrationJobResult{
			JobID:         row.JobID,
			FarmID:        row.FarmID,
			StartedAt:     row.StartedAt,
			CompletedAt:   row.CompletedAt,
			Duration:      time.Duration(row.DurationMs) * time.Millisecond,
			Status:        RunStatus(row.Status),
			MigratedTasks: row.MigratedTasks,
			FailedTasks:   row.FailedTasks,
			TotalTasks:    row.TotalTasks,
			Errors:        taskErrors,
		})
	}
	return results, nil
}

// SQLRecordStore is the SQLite-backed RecordStore.
type SQLRecordStore struct {
	db *db.DB
}

// NewSQLRecordStore wraps an open database as a RecordStore.
func NewSQLRecordStore(database *db.DB) *SQLRecordStore {
	return &SQLRecordStore{db: database}
}

// Lookup finds a record by its natural key within a farm.
func (s *SQLRecordStore) Lookup(farmID, recordID string) (*FarmRecord, error) {
	row, err := s.db.GetRecord(farmID, recordID)
	if db.IsNotFound(err) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &FarmRecord{
		ID:             row.ID,
		FarmID:         row.FarmID,
		Title:          row.Title,
		Description:    row.Description,
		Category:       row.Category,
		Status:         row.Status,
		EstimatedHours: row.EstimatedHours,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}, nil
}

// Insert stores a new record. A duplicate natural key is classified
// rather than surfacing the raw driver error.
func (s *SQLRecordStore) Insert(record *FarmRecord) error {
	err := s.db.InsertRecord(recordToRow(record))
	if db.IsDuplicate(err) {
		return fmt.Errorf("%w: %s", ErrRecordExists, record.ID)
	}
	return err
}

// Update replaces the stored record's mutable fields.
func (s *SQLRecordStore) Update(record *FarmRecord) error {
	err := s.db.UpdateRecord(recordToRow(record))
	if db.IsNotFound(err) {
		return ErrRecordNotFound
	}
	return err
}

func recordToRow(record *FarmRecord) *db.Record {
	return &db.Record{
		ID:             record.ID,
		FarmID:         record.FarmID,
		Title:          record.Title,
		Description:    record.Description,
		Category:       record.Category,
		Status:         record.Status,
		EstimatedHours: record.EstimatedHours,
	}
}
