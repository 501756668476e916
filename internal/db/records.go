package db

import (
	"database/sql"
	"time"
)

// GetRecord retrieves a farm record by its natural key
func (db *DB) GetRecord(farmID, id string) (*Record, error) {
	rec := &Record{}

	query := `
		SELECT id, farm_id, title, description, category, status, estimated_hours, created_at, updated_at
		FROM farm_records
		WHERE farm_id = ? AND id = ?
	`

	err := db.QueryRow(query, farmID, id).Scan(
		&rec.ID,
		&rec.FarmID,
		&rec.Title,
		&rec.Description,
		&rec.Category,
		&rec.Status,
		&rec.EstimatedHours,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return rec, nil
}

// InsertRecord stores a new farm record
func (db *DB) InsertRecord(rec *Record) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	query := `
		INSERT INTO farm_records (id, farm_id, title, description, category, status, estimated_hours, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		rec.ID,
		rec.FarmID,
		rec.Title,
		rec.Description,
		rec.Category,
		rec.Status,
		rec.EstimatedHours,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

// UpdateRecord replaces the mutable fields of an existing farm record
func (db *DB) UpdateRecord(rec *Record) error {
	rec.UpdatedAt = time.Now()

	query := `
		UPDATE farm_records
		SET title = ?, description = ?, category = ?, status = ?, estimated_hours = ?, updated_at = ?
		WHERE farm_id = ? AND id = ?
	`

	result, err := db.Exec(query,
		rec.Title,
		rec.Description,
		rec.Category,
		rec.Status,
		rec.EstimatedHours,
		rec.UpdatedAt,
		rec.FarmID,
		rec.ID,
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
