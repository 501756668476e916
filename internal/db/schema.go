package db

import "time"

// Job represents a scheduled migration job row
type Job struct {
	ID             string
	FarmID         string
	Name           string
	Description    string
	Schedule       string
	ScheduledTime  time.Time
	Strategy       string
	Status         string
	LastRun        *time.Time
	NextRun        *time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Result represents a single execution of a migration job
type Result struct {
	ID            string
	JobID         string
	FarmID        string
	StartedAt     time.Time
	CompletedAt   time.Time
	DurationMs    int64
	Status        string
	MigratedTasks int
	FailedTasks   int
	TotalTasks    int
	Errors        string // JSON - list of {recordId, message}
}

// Record represents a persisted farm record, keyed by natural key
// within its owning farm
type Record struct {
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

const schemaDDL = `
CREATE TABLE IF NOT EXISTS migration_jobs (
	id              TEXT PRIMARY KEY,
	farm_id         TEXT NOT NULL,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	schedule        TEXT NOT NULL,
	scheduled_time  TIMESTAMP NOT NULL,
	strategy        TEXT NOT NULL,
	status          TEXT NOT NULL DEFAULT 'pending',
	last_run        TIMESTAMP,
	next_run        TIMESTAMP,
	total_runs      INTEGER NOT NULL DEFAULT 0,
	successful_runs INTEGER NOT NULL DEFAULT 0,
	failed_runs     INTEGER NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_migration_jobs_farm ON migration_jobs(farm_id);

CREATE TABLE IF NOT EXISTS migration_results (
	id             TEXT PRIMARY KEY,
	job_id         TEXT NOT NULL REFERENCES migration_jobs(id) ON DELETE CASCADE,
	farm_id        TEXT NOT NULL,
	started_at     TIMESTAMP NOT NULL,
	completed_at   TIMESTAMP NOT NULL,
	duration_ms    INTEGER NOT NULL,
	status         TEXT NOT NULL,
	migrated_tasks INTEGER NOT NULL,
	failed_tasks   INTEGER NOT NULL,
	total_tasks    INTEGER NOT NULL,
	errors         TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_migration_results_job ON migration_results(job_id, completed_at);
CREATE INDEX IF NOT EXISTS idx_migration_results_farm ON migration_results(farm_id, completed_at);

CREATE TABLE IF NOT EXISTS farm_records (
	id              TEXT NOT NULL,
	farm_id         TEXT NOT NULL,
	title           TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	status          TEXT NOT NULL DEFAULT '',
	estimated_hours REAL NOT NULL DEFAULT 0,
	created_at      TIMESTAMP NOT NULL,
	updated_at      TIMESTAMP NOT NULL,
	PRIMARY KEY (farm_id, id)
);
`

// InitSchema creates the tables and indexes if they do not exist
func (db *DB) InitSchema() error {
	_, err := db.Exec(schemaDDL)
	return err
}
