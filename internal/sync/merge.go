// Package sync implements the offline-first reconciliation layer:
// folding client change batches into a server snapshot, detecting
// timestamp conflicts between divergent snapshots, and computing
// minimal deltas for transmission.
package sync

import (
	"fmt"
	"log/slog"
	"time"
)

// Snapshot is a keyed collection of collections: entity type → record
// id → record fields.
type Snapshot map[string]map[string]map[string]any

// ChangeType classifies an offline mutation.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// SyncChange is a single offline mutation awaiting reconciliation.
type SyncChange struct {
	Type      ChangeType     `json:"type"`
	Entity    string         `json:"entity"`
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"timestamp"`
}

// ConflictType classifies a conflict record.
type ConflictType string

const (
	// ConflictTimestamp marks a key whose offline copy is strictly
	// newer than the server's.
	ConflictTimestamp ConflictType = "timestamp_conflict"
	// ConflictMergeError marks a change that could not be applied.
	ConflictMergeError ConflictType = "merge_error"
)

// ConflictRecord is produced when two candidate values for the same key
// disagree, or when a change cannot be reconciled at all.
type ConflictRecord struct {
	Type   ConflictType `json:"type"`
	Entity string       `json:"entity"`
	Key    string       `json:"key"`

	// Populated for timestamp conflicts.
	OfflineTimestamp time.Time `json:"offlineTimestamp,omitzero"`
	ServerTimestamp  time.Time `json:"serverTimestamp,omitzero"`

	// Populated for merge errors.
	Reason string `json:"reason,omitempty"`
}

// MergeResult is the outcome of folding a change batch into a snapshot.
type MergeResult struct {
	Merged      Snapshot
	Conflicts   []ConflictRecord
	MergedCount int
}

// ConflictResult is the outcome of comparing two snapshots.
type ConflictResult struct {
	Conflicts     []ConflictRecord
	ConflictCount int
}

// Merger folds offline changes into server snapshots.
//
// Create and update are deliberately asymmetric: a create always wins
// (re-creating an existing id overwrites it), while an update requires
// a pre-existing target and otherwise degrades to a conflict. Callers
// relying on upsert behavior must send creates.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger.
func NewMerger(logger *slog.Logger) *Merger {
	return &Merger{logger: logger}
}

// Merge folds the change batch into a copy of the server snapshot, in
// input order. A failing change never aborts the batch: it is recorded
// as a conflict and processing continues, so one bad entry from an
// unreliable client cannot poison the whole merge.
func (m *Merger) Merge(server Snapshot, changes []SyncChange) MergeResult {
	result := MergeResult{
		Merged:    server.clone(),
		Conflicts: []ConflictRecord{},
	}

	for _, change := range changes {
		applied, conflict := m.apply(result.Merged, change)
		if conflict != nil {
			result.Conflicts = append(result.Conflicts, *conflict)
			continue
		}
		if applied {
			result.MergedCount++
		}
	}

	m.logger.Debug("merged offline changes",
		"changes", len(changes),
		"merged", result.MergedCount,
		"conflicts", len(result.Conflicts))

	return result
}

// apply processes one change against the snapshot. Panics from
// malformed payloads are recovered into merge-error conflicts.
func (m *Merger) apply(merged Snapshot, change SyncChange) (applied bool, conflict *ConflictRecord) {
	defer func() {
		if p := recover(); p != nil {
			applied = false
			conflict = &ConflictRecord{
				Type:   ConflictMergeError,
				Entity: change.Entity,
				Key:    change.ID,
				Reason: fmt.Sprintf("panic applying change: %v", p),
			}
		}
	}()

	switch change.Type {
	case ChangeUpdate:
		target, ok := merged[change.Entity][change.ID]
		if !ok {
			return false, &ConflictRecord{
				Type:   ConflictMergeError,
				Entity: change.Entity,
				Key:    change.ID,
				Reason: "target not found in server data",
			}
		}
		// Shallow merge: the change wins field by field.
		for field, value := range change.Data {
			target[field] = value
		}
		return true, nil

	case ChangeCreate:
		if merged[change.Entity] == nil {
			merged[change.Entity] = make(map[string]map[string]any)
		}
		record := make(map[string]any, len(change.Data))
		for field, value := range change.Data {
			record[field] = value
		}
		merged[change.Entity][change.ID] = record
		return true, nil

	case ChangeDelete:
		if _, ok := merged[change.Entity][change.ID]; !ok {
			// Deleting an absent key is a silent no-op.
			return false, nil
		}
		delete(merged[change.Entity], change.ID)
		return true, nil

	default:
		return false, &ConflictRecord{
			Type:   ConflictMergeError,
			Entity: change.Entity,
			Key:    change.ID,
			Reason: fmt.Sprintf("unknown change type %q", change.Type),
		}
	}
}

// DetectConflicts compares an offline snapshot against the server's.
// Only keys present in both are considered; a key is flagged when the
// offline copy's updatedAt is strictly newer than the server's. Keys
// absent from the server are treated as new, not conflicting.
func (m *Merger) DetectConflicts(offline, server Snapshot) ConflictResult {
	result := ConflictResult{Conflicts: []ConflictRecord{}}

	for entity, records := range offline {
		serverRecords, ok := server[entity]
		if !ok {
			continue
		}
		for id, record := range records {
			serverRecord, ok := serverRecords[id]
			if !ok {
				continue
			}

			offlineAt, okOffline := recordTimestamp(record)
			serverAt, okServer := recordTimestamp(serverRecord)
			if !okOffline || !okServer {
				continue
			}

			if offlineAt.After(serverAt) {
				result.Conflicts = append(result.Conflicts, ConflictRecord{
					Type:             ConflictTimestamp,
					Entity:           entity,
					Key:              id,
					OfflineTimestamp: offlineAt,
					ServerTimestamp:  serverAt,
				})
			}
		}
	}

	result.ConflictCount = len(result.Conflicts)
	return result
}

// recordTimestamp extracts a record's updatedAt field, accepting either
// a time.Time or an RFC 3339 string.
func recordTimestamp(record map[string]any) (time.Time, bool) {
	raw, ok := record["updatedAt"]
	if !ok {
		return time.Time{}, false
	}
	switch v := raw.(type) {
	case time.Time:
		return v, true
	case string:
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

// clone deep-copies the snapshot so merging never mutates the caller's
// server data.
func (s Snapshot) clone() Snapshot {
	out := make(Snapshot, len(s))
	for entity, records := range s {
		outRecords := make(map[string]map[string]any, len(records))
		for id, record := range records {
			outRecord := make(map[string]any, len(record))
			for field, value := range record {
				outRecord[field] = value
			}
			outRecords[id] = outRecord
		}
		out[entity] = outRecords
	}
	return out
}
