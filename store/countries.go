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

// CountryStatus is the per-country cursor: one row per country, driving
// which country the scheduler works on and whether it finished.
type CountryStatus struct {
	Name      string
	Code      string
	Status    string
	UpdatedAt time.Time
}

// CountryRepository handles persistence of the country cursor.
type CountryRepository interface {
	// CreateSchema creates the countries table.
	CreateSchema() error

	// Seed inserts the given countries with status origin, skipping names
	// already present. Safe to run on every startup.
	Seed(countries []*CountryStatus) error

	// Get returns the row for a country name, or (nil, nil) when absent.
	Get(name string) (*CountryStatus, error)

	// NextPending returns the first country still in origin, or (nil, nil)
	// when every country reached a terminal state.
	NextPending() (*CountryStatus, error)

	// Transition moves a country from one status to another. It reports
	// whether the row actually changed, so a racing worker that lost the
	// transition can tell.
	Transition(name, from, to string) (bool, error)

	// Reset forces a country back to origin regardless of current status.
	// Administrative override for reruns.
	Reset(name string) error

	// StatusCounts returns how many countries sit in each status.
	StatusCounts() (map[string]int, error)

	// List returns all rows ordered by name.
	List() ([]*CountryStatus, error)
}

type sqlCountryRepository struct {
	db *sql.DB
}

// NewCountryRepository creates a country repository backed by db.
func NewCountryRepository(db *sql.DB) CountryRepository {
	return &sqlCountryRepository{db: db}
}

func (r *sqlCountryRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS countries (
			name VARCHAR PRIMARY KEY,
			code CHAR(2),
			status VARCHAR NOT NULL DEFAULT 'origin',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)

	return err
}

func (r *sqlCountryRepository) Seed(countries []*CountryStatus) error {
	if len(countries) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("failed to rollback country seed: %v", err)
		}
	}()

	stmt, err := tx.Prepare(`
		INSERT INTO countries (name, code, status)
		VALUES (?, ?, 'origin')
		ON CONFLICT (name) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range countries {
		var code any
		if c.Code != "" {
			code = c.Code
		}

		if _, err := stmt.Exec(c.Name, code); err != nil {
			return fmt.Errorf("seeding country %q: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

func (r *sqlCountryRepository) Get(name string) (*CountryStatus, error) {
	row := r.db.QueryRow(`
		SELECT name, coalesce(code, ''), status, updated_at
		FROM countries
		WHERE name = ?
	`, name)

	return scanCountry(row)
}

func (r *sqlCountryRepository) NextPending() (*CountryStatus, error) {
	row := r.db.QueryRow(`
		SELECT name, coalesce(code, ''), status, updated_at
		FROM countries
		WHERE status = 'origin'
		ORDER BY name
		LIMIT 1
	`)

	return scanCountry(row)
}

func scanCountry(row *sql.Row) (*CountryStatus, error) {
	c := &CountryStatus{}

	err := row.Scan(&c.Name, &c.Code, &c.Status, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("scanning country: %w", err)
	}

	return c, nil
}

func (r *sqlCountryRepository) Transition(name, from, to string) (bool, error) {
	result, err := r.db.Exec(`
		UPDATE countries
		SET status = ?, updated_at = now()
		WHERE name = ? AND status = ?
	`, to, name, from)
	if err != nil {
		return false, fmt.Errorf("transitioning %q from %s to %s: %w", name, from, to, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("getting rows affected: %w", err)
	}

	return n > 0, nil
}

func (r *sqlCountryRepository) Reset(name string) error {
	result, err := r.db.Exec(`
		UPDATE countries
		SET status = 'origin', updated_at = now()
		WHERE name = ?
	`, name)
	if err != nil {
		return fmt.Errorf("resetting %q: %w", name, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("unknown country %q", name)
	}

	return nil
}

func (r *sqlCountryRepository) StatusCounts() (map[string]int, error) {
	rows, err := r.db.Query("SELECT status, count(*) FROM countries GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("counting countries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var status string

		var n int

		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning country count: %w", err)
		}

		counts[status] = n
	}

	return counts, rows.Err()
}

func (r *sqlCountryRepository) List() ([]*CountryStatus, error) {
	rows, err := r.db.Query(`
		SELECT name, coalesce(code, ''), status, updated_at
		FROM countries
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing countries: %w", err)
	}
	defer rows.Close()

	var out []*CountryStatus

	for rows.Next() {
		c := &CountryStatus{}
		if err := rows.Scan(&c.Name, &c.Code, &c.Status, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning country: %w", err)
		}

		out = append(out, c)
	}

	return out, rows.Err()
}
