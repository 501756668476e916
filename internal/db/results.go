package db

import "database/sql"

// CreateResult records one execution of a migration job
func (db *DB) CreateResult(result *Result) error {
	query := `
		INSERT INTO migration_results (
			id, job_id, farm_id, started_at, completed_at, duration_ms,
			status, migrated_tasks, failed_tasks, total_tasks, errors
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		result.ID,
		result.JobID,
		result.FarmID,
		result.StartedAt,
		result.CompletedAt,
		result.DurationMs,
		result.Status,
		result.MigratedTasks,
		result.FailedTasks,
		result.TotalTasks,
		result.Errors,
	)
	return err
}

const resultColumns = `
	id, job_id, farm_id, started_at, completed_at, duration_ms,
	status, migrated_tasks, failed_tasks, total_tasks, errors
`

func scanResult(row interface{ Scan(...any) error }) (*Result, error) {
	r := &Result{}
	err := row.Scan(
		&r.ID,
		&r.JobID,
		&r.FarmID,
		&r.StartedAt,
		&r.CompletedAt,
		&r.DurationMs,
		&r.Status,
		&r.MigratedTasks,
		&r.FailedTasks,
		&r.TotalTasks,
		&r.Errors,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// GetResults retrieves results for a job, newest first. A limit of zero
// or less returns the full history.
func (db *DB) GetResults(jobID string, limit int) ([]*Result, error) {
	query := `SELECT ` + resultColumns + ` FROM migration_results WHERE job_id = ? ORDER BY completed_at DESC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+` LIMIT ?`, jobID, limit)
	} else {
		rows, err = db.Query(query, jobID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectResults(rows)
}

// GetResultsByFarm retrieves results across all of a farm's jobs,
// newest first
func (db *DB) GetResultsByFarm(farmID string, limit int) ([]*Result, error) {
	query := `SELECT ` + resultColumns + ` FROM migration_results WHERE farm_id = ? ORDER BY completed_at DESC`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = db.Query(query+` LIMIT ?`, farmID, limit)
	} else {
		rows, err = db.Query(query, farmID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectResults(rows)
}

func collectResults(rows *sql.Rows) ([]*Result, error) {
	results := []*Result{}
	for rows.Next() {
		r, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// TrimResults keeps the most recent keep results by completion time and
// deletes the rest
func (db *DB) TrimResults(jobID string, keep int) error {
	if keep < 0 {
		keep = 0
	}

	query := `
		DELETE FROM migration_results
		WHERE job_id = ? AND id NOT IN (
			SELECT id FROM migration_results
			WHERE job_id = ?
			ORDER BY completed_at DESC
			LIMIT ?
		)
	`

	_, err := db.Exec(query, jobID, jobID, keep)
	return err
}
