// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the pipeline's three collections: batches (the
// work queue), country statuses (the top-level resumable cursor) and
// validated addresses (the output). Everything lives in a single DuckDB
// file; access goes through narrow repository interfaces so the pipeline
// logic never touches SQL directly.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Batch statuses. Transitions are strictly forward except for the
// staleness sweep, which sends stuck checking batches back to origin.
const (
	BatchOrigin   = "origin"
	BatchChecking = "checking"
	BatchChecked  = "checked"
)

// AddressChecked is the status stamped on every validated address row.
const AddressChecked = "checked"

// Country statuses.
const (
	CountryOrigin     = "origin"
	CountryProcessing = "processing"
	CountryCompleted  = "completed"
	CountryFailed     = "failed"
)

// Open opens (or creates) the DuckDB database at path. An empty path opens
// an in-memory database, which the tests rely on.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	return db, nil
}

// anyToStringSlice converts the driver's representation of a VARCHAR[]
// column into a []string.
func anyToStringSlice(v any) ([]string, bool) {
	switch vv := v.(type) {
	case nil:
		return nil, true
	case []string:
		return vv, true
	case []any:
		out := make([]string, 0, len(vv))

		for _, item := range vv {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}

			out = append(out, s)
		}

		return out, true
	default:
		return nil, false
	}
}
