// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/uber/h3-go/v4"

	"github.com/cartobase/addrharvest/dedup"
	"github.com/cartobase/addrharvest/spatial"
)

// ValidatedAddress is an accepted geocoding result. The address display
// text is the natural key: revalidating the same text updates the row
// instead of duplicating it. Normalization and FirstSection are derived
// from Address on every write so the stored fingerprints can never drift
// from the current canonicalization rules.
type ValidatedAddress struct {
	OSMID         string         `json:"osm_id"`
	Country       string         `json:"country"`
	City          string         `json:"city"`
	Street        string         `json:"street"`
	Score         float64        `json:"score"`
	Status        string         `json:"status"`
	Address       string         `json:"address"`
	FirstSection  string         `json:"first_section"`
	Normalization string         `json:"normalization"`
	Centroid      *spatial.Point `json:"centroid,omitempty"`
	H3Res5        int64          `json:"-"`
	H3Res8        int64          `json:"-"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

func (a *ValidatedAddress) computeH3() error {
	if a.Centroid == nil {
		a.H3Res5 = 0
		a.H3Res8 = 0

		return nil
	}

	latLng := h3.NewLatLng(a.Centroid.Lat, a.Centroid.Lng)

	for _, res := range []int{5, 8} {
		cell, err := h3.LatLngToCell(latLng, res)
		if err != nil {
			return fmt.Errorf("error converting to h3 cell at res %d: %w", res, err)
		}

		switch res {
		case 5:
			a.H3Res5 = int64(cell)
		case 8:
			a.H3Res8 = int64(cell)
		}
	}

	return nil
}

// AddressRepository handles persistence of validated addresses.
type AddressRepository interface {
	// CreateSchema creates the addresses table.
	CreateSchema() error

	// Upsert inserts or updates the row keyed by the address text. The
	// derived fields (normalization, first section, h3 cells) are
	// recomputed here, not trusted from the caller.
	Upsert(addr *ValidatedAddress) error

	// CountByCountry returns how many addresses each country has.
	CountByCountry() (map[string]int, error)

	// VariantsByCountry returns all address texts stored for a country.
	VariantsByCountry(country string) ([]string, error)

	// Countries returns the distinct countries present, sorted.
	Countries() ([]string, error)

	// BackfillFirstSections recomputes the first section for rows where it
	// is missing, returning how many rows changed.
	BackfillFirstSections() (int64, error)
}

type sqlAddressRepository struct {
	db *sql.DB
}

// NewAddressRepository creates an address repository backed by db.
func NewAddressRepository(db *sql.DB) AddressRepository {
	return &sqlAddressRepository{db: db}
}

func (r *sqlAddressRepository) CreateSchema() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS addresses (
			address VARCHAR PRIMARY KEY,
			osm_id VARCHAR NOT NULL,
			country VARCHAR NOT NULL,
			city VARCHAR,
			street VARCHAR,
			score DOUBLE NOT NULL,
			status VARCHAR NOT NULL DEFAULT 'checked',
			first_section VARCHAR,
			normalization VARCHAR,
			lat DOUBLE,
			lng DOUBLE,
			h3_res5 BIGINT,
			h3_res8 BIGINT,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
	`)

	return err
}

func (r *sqlAddressRepository) Upsert(addr *ValidatedAddress) error {
	if addr.Address == "" {
		return fmt.Errorf("refusing to upsert address with empty text (osm id %s)", addr.OSMID)
	}

	addr.Normalization = dedup.Canonicalize(addr.Address)
	addr.FirstSection = dedup.FirstSection(addr.Address)

	if addr.Status == "" {
		addr.Status = AddressChecked
	}

	if err := addr.computeH3(); err != nil {
		return err
	}

	var lat, lng any
	if addr.Centroid != nil {
		lat = addr.Centroid.Lat
		lng = addr.Centroid.Lng
	}

	_, err := r.db.Exec(`
		INSERT INTO addresses (
			address, osm_id, country, city, street, score, status,
			first_section, normalization, lat, lng, h3_res5, h3_res8, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, now())
		ON CONFLICT (address) DO UPDATE SET
			osm_id = excluded.osm_id,
			country = excluded.country,
			city = excluded.city,
			street = excluded.street,
			score = excluded.score,
			status = excluded.status,
			first_section = excluded.first_section,
			normalization = excluded.normalization,
			lat = excluded.lat,
			lng = excluded.lng,
			h3_res5 = excluded.h3_res5,
			h3_res8 = excluded.h3_res8,
			updated_at = now()
	`,
		addr.Address,
		addr.OSMID,
		addr.Country,
		nullable(addr.City),
		nullable(addr.Street),
		addr.Score,
		addr.Status,
		nullable(addr.FirstSection),
		nullable(addr.Normalization),
		lat,
		lng,
		nullableInt(addr.H3Res5),
		nullableInt(addr.H3Res8),
	)
	if err != nil {
		return fmt.Errorf("upserting address %q: %w", addr.Address, err)
	}

	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}

	return v
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}

	return v
}

func (r *sqlAddressRepository) CountByCountry() (map[string]int, error) {
	rows, err := r.db.Query("SELECT country, count(*) FROM addresses GROUP BY country")
	if err != nil {
		return nil, fmt.Errorf("counting addresses: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)

	for rows.Next() {
		var country string

		var n int

		if err := rows.Scan(&country, &n); err != nil {
			return nil, fmt.Errorf("scanning address count: %w", err)
		}

		counts[country] = n
	}

	return counts, rows.Err()
}

func (r *sqlAddressRepository) VariantsByCountry(country string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT address FROM addresses WHERE country = ? ORDER BY address
	`, country)
	if err != nil {
		return nil, fmt.Errorf("querying addresses for %q: %w", country, err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scanning address: %w", err)
		}

		out = append(out, addr)
	}

	return out, rows.Err()
}

func (r *sqlAddressRepository) Countries() ([]string, error) {
	rows, err := r.db.Query("SELECT DISTINCT country FROM addresses ORDER BY country")
	if err != nil {
		return nil, fmt.Errorf("querying countries: %w", err)
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var country string
		if err := rows.Scan(&country); err != nil {
			return nil, fmt.Errorf("scanning country: %w", err)
		}

		out = append(out, country)
	}

	return out, rows.Err()
}

// BackfillFirstSections exists for stores written before the first section
// column was derived on every upsert.
func (r *sqlAddressRepository) BackfillFirstSections() (int64, error) {
	rows, err := r.db.Query(`
		SELECT address FROM addresses
		WHERE first_section IS NULL OR first_section = ''
	`)
	if err != nil {
		return 0, fmt.Errorf("querying unfilled addresses: %w", err)
	}
	defer rows.Close()

	var pending []string

	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return 0, fmt.Errorf("scanning address: %w", err)
		}

		pending = append(pending, addr)
	}

	if err := rows.Err(); err != nil {
		return 0, err
	}

	var n int64

	for _, addr := range pending {
		section := dedup.FirstSection(addr)
		if section == "" {
			continue
		}

		if _, err := r.db.Exec(`
			UPDATE addresses SET first_section = ?, updated_at = now()
			WHERE address = ?
		`, section, addr); err != nil {
			return n, fmt.Errorf("backfilling %q: %w", addr, err)
		}

		n++
	}

	return n, nil
}
