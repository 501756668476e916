package db

import (
	"database/sql"
	"time"
)

// queryer is the subset of sql.DB and sql.Tx the job queries run
// against, so the same helpers serve both plain and transactional use
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// CreateJob creates a new migration job
func (db *DB) CreateJob(job *Job) error {
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
		INSERT INTO migration_jobs (
			id, farm_id, name, description, schedule, scheduled_time, strategy,
			status, last_run, next_run, total_runs, successful_runs, failed_runs,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		job.ID,
		job.FarmID,
		job.Name,
		job.Description,
		job.Schedule,
		job.ScheduledTime,
		job.Strategy,
		job.Status,
		job.LastRun,
		job.NextRun,
		job.TotalRuns,
		job.SuccessfulRuns,
		job.FailedRuns,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

const jobColumns = `
	id, farm_id, name, description, schedule, scheduled_time, strategy,
	status, last_run, next_run, total_runs, successful_runs, failed_runs,
	created_at, updated_at
`

func scanJob(row interface{ Scan(...any) error }) (*Job, error) {
	job := &Job{}
	err := row.Scan(
		&job.ID,
		&job.FarmID,
		&job.Name,
		&job.Description,
		&job.Schedule,
		&job.ScheduledTime,
		&job.Strategy,
		&job.Status,
		&job.LastRun,
		&job.NextRun,
		&job.TotalRuns,
		&job.SuccessfulRuns,
		&job.FailedRuns,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return job, nil
}

// GetJob retrieves a job by ID
func (db *DB) GetJob(id string) (*Job, error) {
	return getJob(db.DB, id)
}

func getJob(q queryer, id string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM migration_jobs WHERE id = ?`
	return scanJob(q.QueryRow(query, id))
}

// GetAllJobs retrieves all jobs
func (db *DB) GetAllJobs() ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM migration_jobs ORDER BY created_at DESC`

	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectJobs(rows)
}

// GetJobsByFarm retrieves all jobs owned by a farm
func (db *DB) GetJobsByFarm(farmID string) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM migration_jobs WHERE farm_id = ? ORDER BY created_at DESC`

	rows, err := db.Query(query, farmID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectJobs(rows)
}

func collectJobs(rows *sql.Rows) ([]*Job, error) {
	jobs := []*Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// UpdateJob replaces all mutable fields of an existing job
func (db *DB) UpdateJob(job *Job) error {
	return updateJob(db.DB, job)
}

// UpdateJobWith loads a job, applies mutate to it and writes it back,
// all inside one transaction. A mutate error rolls the whole thing
// back.
func (db *DB) UpdateJobWith(id string, mutate func(*Job) error) error {
	return db.WithTransaction(func(tx *sql.Tx) error {
		job, err := getJob(tx, id)
		if err != nil {
			return err
		}
		if err := mutate(job); err != nil {
			return err
		}
		return updateJob(tx, job)
	})
}

func updateJob(q queryer, job *Job) error {
	job.UpdatedAt = time.Now()

	query := `
		UPDATE migration_jobs
		SET name = ?, description = ?, schedule = ?, scheduled_time = ?, strategy = ?,
		    status = ?, last_run = ?, next_run = ?, total_runs = ?, successful_runs = ?,
		    failed_runs = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := q.Exec(query,
		job.Name,
		job.Description,
		job.Schedule,
		job.ScheduledTime,
		job.Strategy,
		job.Status,
		job.LastRun,
		job.NextRun,
		job.TotalRuns,
		job.SuccessfulRuns,
		job.FailedRuns,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteJob deletes a job by ID
func (db *DB) DeleteJob(id string) error {
	query := `DELETE FROM migration_jobs WHERE id = ?`

	result, err := db.Exec(query, id)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}
