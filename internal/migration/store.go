package migration

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryJobStore is the in-memory JobStore used by single-node
// deployments and tests. All access is funneled through the mutex; the
// store hands out clones, never internal pointers.
type MemoryJobStore struct {
	mu      sync.RWMutex
	jobs    map[string]*ScheduledMigrationJob
	results map[string][]*MigrationJobResult
}

// NewMemoryJobStore creates an empty in-memory job store.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{
		jobs:    make(map[string]*ScheduledMigrationJob),
		results: make(map[string][]*MigrationJobResult),
	}
}

// Create assigns a unique id (farm scope + uuid suffix), zeroes the run
// counters and stores the job with status pending.
func (s *MemoryJobStore) Create(job *ScheduledMigrationJob) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	stored := job.Clone()
	stored.ID = fmt.Sprintf("%s-%s", job.FarmID, uuid.NewString())
	stored.Status = JobPending
	stored.TotalRuns = 0
	stored.SuccessfulRuns = 0
	stored.FailedRuns = 0
	stored.CreatedAt = now
	stored.UpdatedAt = now

	s.jobs[stored.ID] = stored
	s.results[stored.ID] = []*MigrationJobResult{}

	job.ID = stored.ID
	return stored.ID, nil
}

// Get retrieves a job by id.
func (s *MemoryJobStore) Get(jobID string) (*ScheduledMigrationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Clone(), nil
}

// List returns every stored job, ordered by creation time descending.
func (s *MemoryJobStore) List() ([]*ScheduledMigrationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*ScheduledMigrationJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job.Clone())
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// ListByFarm returns all jobs owned by a farm, newest first.
func (s *MemoryJobStore) ListByFarm(farmID string) ([]*ScheduledMigrationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := []*ScheduledMigrationJob{}
	for _, job := range s.jobs {
		if job.FarmID == farmID {
			jobs = append(jobs, job.Clone())
		}
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Update applies a partial update and refreshes UpdatedAt.
func (s *MemoryJobStore) Update(jobID string, update JobUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	applyJobUpdate(job, update)
	job.UpdatedAt = time.Now()
	return nil
}

// Delete removes a job and its result history. It reports whether a job
// existed; previously returned result snapshots stay valid because the
// store only ever hands out copies.
func (s *MemoryJobStore) Delete(jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return false, nil
	}
	delete(s.jobs, jobID)
	delete(s.results, jobID)
	return true, nil
}

// AppendResult appends one execution result to the job's history.
func (s *MemoryJobStore) AppendResult(jobID string, result *MigrationJobResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[jobID]; !ok {
		return ErrJobNotFound
	}
	stored := *result
	stored.Errors = append([]TaskError(nil), result.Errors...)
	s.results[jobID] = append(s.results[jobID], &stored)
	return nil
}

// ListResults returns the job's result history ordered by end time
// descending. A limit of zero or less returns the full history.
func (s *MemoryJobStore) ListResults(jobID string, limit int) ([]*MigrationJobResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.jobs[jobID]; !ok {
		return nil, ErrJobNotFound
	}

	history := s.results[jobID]
	out := make([]*MigrationJobResult, 0, len(history))
	for _, r := range history {
		c := *r
		c.Errors = append([]TaskError(nil), r.Errors...)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CompletedAt.After(out[j].CompletedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// TrimResults keeps the most recent keep entries by end time and drops
// the rest.
func (s *MemoryJobStore) TrimResults(jobID string, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, ok := s.results[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if keep < 0 {
		keep = 0
	}
	if len(history) <= keep {
		return nil
	}
	sort.Slice(history, func(i, j int) bool {
		return history[i].CompletedAt.After(history[j].CompletedAt)
	})
	s.results[jobID] = append([]*MigrationJobResult{}, history[:keep]...)
	return nil
}

func applyJobUpdate(job *ScheduledMigrationJob, update JobUpdate) {
	if update.Name != nil {
		job.Name = *update.Name
	}
	if update.Description != nil {
		job.Description = *update.Description
	}
	if update.Schedule != nil {
		job.Schedule = *update.Schedule
	}
	if update.ScheduledTime != nil {
		job.ScheduledTime = *update.ScheduledTime
	}
	if update.Strategy != nil {
		job.Strategy = *update.Strategy
	}
	if update.Status != nil {
		job.Status = *update.Status
	}
	if update.LastRun != nil {
		t := *update.LastRun
		job.LastRun = &t
	}
	if update.ClearNextRun {
		job.NextRun = nil
	} else if update.NextRun != nil {
		t := *update.NextRun
		job.NextRun = &t
	}
	if update.TotalRuns != nil {
		job.TotalRuns = *update.TotalRuns
	}
	if update.SuccessfulRuns != nil {
		job.SuccessfulRuns = *update.SuccessfulRuns
	}
	if update.FailedRuns != nil {
		job.FailedRuns = *update.FailedRuns
	}
}

// MemoryRecordStore is the in-memory RecordStore, keyed by farm id and
// the record's natural key.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]*FarmRecord // farmID → recordID → record
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{records: make(map[string]map[string]*FarmRecord)}
}

// Lookup finds a record by its natural key within a farm.
func (s *MemoryRecordStore) Lookup(farmID, recordID string) (*FarmRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[farmID][recordID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	c := *rec
	return &c, nil
}

// Insert stores a new record.
func (s *MemoryRecordStore) Insert(record *FarmRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.records[record.FarmID] == nil {
		s.records[record.FarmID] = make(map[string]*FarmRecord)
	}
	now := time.Now()
	c := *record
	c.CreatedAt = now
	c.UpdatedAt = now
	s.records[record.FarmID][record.ID] = &c
	return nil
}

// Update replaces the stored record's mutable fields.
func (s *MemoryRecordStore) Update(record *FarmRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[record.FarmID][record.ID]
	if !ok {
		return ErrRecordNotFound
	}
	c := *record
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	s.records[record.FarmID][record.ID] = &c
	return nil
}
