// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Batch is a fixed-size group of OSM element ids waiting for validation.
// Batches are never deleted; they carry the audit trail of the run.
type Batch struct {
	ID          int64
	CountryCode string
	CountryName string
	OSMIDs      []string
	Status      string
	ClaimedAt   *time.Time
	CheckedAt   *time.Time
}

// BatchRepository handles persistence of batches.
type BatchRepository interface {
	// CreateSchema creates the batches table.
	CreateSchema() error

	// Insert stores a new batch with status origin.
	Insert(batch *Batch) error

	// InsertAll stores a slice of batches in one transaction.
	InsertAll(batches []*Batch) error

	// Claim atomically moves the oldest origin batch for the country to
	// checking and returns it. Returns (nil, nil) when no origin batch
	// remains; a batch already in checking is never handed out twice.
	Claim(countryCode string) (*Batch, error)

	// MarkChecked moves a checking batch to checked. Calling it on a batch
	// in any other state is a no-op.
	MarkChecked(id int64) error

	// ResetStale sends batches stuck in checking longer than the timeout
	// back to origin, returning how many were reset.
	ResetStale(timeout time.Duration) (int64, error)

	// CountByStatus returns the per-status batch counts for a country.
	// An empty country code counts across all countries.
	CountByStatus(countryCode string) (map[string]int, error)
}

type sqlBatchRepository struct {
	db *sql.DB
}

// NewBatchRepository creates a batch repository backed by db.
func NewBatchRepository(db *sql.DB) BatchRepository {
	return &sqlBatchRepository{db: db}
}

func (r *sqlBatchRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE SEQUENCE IF NOT EXISTS batches_id_seq;

		CREATE TABLE IF NOT EXISTS batches (
			id BIGINT PRIMARY KEY DEFAULT nextval('batches_id_seq'),
			country_code CHAR(2) NOT NULL,
			country_name VARCHAR NOT NULL,
			osm_ids VARCHAR[] NOT NULL,
			status VARCHAR NOT NULL DEFAULT 'origin',
			claimed_at TIMESTAMPTZ,
			checked_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)

	return err
}

func (r *sqlBatchRepository) Insert(batch *Batch) error {
	if len(batch.OSMIDs) == 0 {
		return errors.New("refusing to insert batch with no ids")
	}

	row := r.db.QueryRow(`
		INSERT INTO batches (country_code, country_name, osm_ids, status)
		VALUES (?, ?, ?, 'origin')
		RETURNING id
	`, batch.CountryCode, batch.CountryName, batch.OSMIDs)

	if err := row.Scan(&batch.ID); err != nil {
		return fmt.Errorf("inserting batch for %s: %w", batch.CountryCode, err)
	}

	batch.Status = BatchOrigin

	return nil
}

func (r *sqlBatchRepository) InsertAll(batches []*Batch) error {
	if len(batches) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback batch insert: %v", err)
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO batches (country_code, country_name, osm_ids, status)
		VALUES (?, ?, ?, 'origin')
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, batch := range batches {
		if len(batch.OSMIDs) == 0 {
			return errors.New("refusing to insert batch with no ids")
		}

		if _, err := stmt.Exec(batch.CountryCode, batch.CountryName, batch.OSMIDs); err != nil {
			return fmt.Errorf("inserting batch for %s: %w", batch.CountryCode, err)
		}

		batch.Status = BatchOrigin
	}

	return tx.Commit()
}

// Claim uses a single UPDATE with a RETURNING clause so the read and the
// transition happen as one statement. Two workers racing on the same batch
// cannot both see it in origin.
func (r *sqlBatchRepository) Claim(countryCode string) (*Batch, error) {
	row := r.db.QueryRow(`
		UPDATE batches
		SET status = 'checking', claimed_at = now()
		WHERE id = (
			SELECT id FROM batches
			WHERE status = 'origin' AND country_code = ?
			ORDER BY id
			LIMIT 1
		)
		AND status = 'origin'
		RETURNING id, country_code, country_name, osm_ids, status
	`, countryCode)

	batch := &Batch{}

	var idsVal any

	err := row.Scan(&batch.ID, &batch.CountryCode, &batch.CountryName, &idsVal, &batch.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("claiming batch for %s: %w", countryCode, err)
	}

	ids, ok := anyToStringSlice(idsVal)
	if !ok {
		return nil, fmt.Errorf("batch %d: unexpected osm_ids representation %T", batch.ID, idsVal)
	}

	batch.OSMIDs = ids

	return batch, nil
}

func (r *sqlBatchRepository) MarkChecked(id int64) error {
	_, err := r.db.Exec(`
		UPDATE batches
		SET status = 'checked', checked_at = now()
		WHERE id = ? AND status = 'checking'
	`, id)
	if err != nil {
		return fmt.Errorf("marking batch %d checked: %w", id, err)
	}

	return nil
}

func (r *sqlBatchRepository) ResetStale(timeout time.Duration) (int64, error) {
	result, err := r.db.Exec(`
		UPDATE batches
		SET status = 'origin', claimed_at = NULL
		WHERE status = 'checking'
		AND claimed_at < now() - to_seconds(?::BIGINT)
	`, int64(timeout.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("resetting stale batches: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}

	return n, nil
}

func (r *sqlBatchRepository) CountByStatus(countryCode string) (map[string]int, error) {
	query := "SELECT status, count(*) FROM batches"
	args := []any{}

	if countryCode != "" {
		query += " WHERE country_code = ?"
		args = append(args, countryCode)
	}

	query += " GROUP BY status"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting batches: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var status string

		var n int

		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning batch count: %w", err)
		}

		counts[status] = n
	}

	return counts, rows.Err()
}
