// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func newBatchRepo(t *testing.T) BatchRepository {
	t.Helper()

	repo := NewBatchRepository(newTestDB(t))
	require.NoError(t, repo.CreateSchema())

	return repo
}

func TestBatchInsertAndClaim(t *testing.T) {
	repo := newBatchRepo(t)

	batch := &Batch{
		CountryCode: "uy",
		CountryName: "Uruguay",
		OSMIDs:      []string{"N1", "W2", "R3"},
	}
	require.NoError(t, repo.Insert(batch))
	assert.NotZero(t, batch.ID)
	assert.Equal(t, BatchOrigin, batch.Status)

	claimed, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	assert.Equal(t, batch.ID, claimed.ID)
	assert.Equal(t, "Uruguay", claimed.CountryName)
	assert.Equal(t, []string{"N1", "W2", "R3"}, claimed.OSMIDs)
	assert.Equal(t, BatchChecking, claimed.Status)
}

func TestBatchInsertRejectsEmpty(t *testing.T) {
	repo := newBatchRepo(t)

	err := repo.Insert(&Batch{CountryCode: "uy", CountryName: "Uruguay"})
	assert.Error(t, err)
}

func TestBatchClaimIsExclusive(t *testing.T) {
	repo := newBatchRepo(t)

	require.NoError(t, repo.Insert(&Batch{
		CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N1"},
	}))

	first, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, first)

	// The only batch is now in checking; a second claim finds nothing.
	second, err := repo.Claim("uy")
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestBatchClaimOrderAndCountryIsolation(t *testing.T) {
	repo := newBatchRepo(t)

	require.NoError(t, repo.InsertAll([]*Batch{
		{CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N1"}},
		{CountryCode: "ar", CountryName: "Argentina", OSMIDs: []string{"N2"}},
		{CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N3"}},
	}))

	claimed, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, []string{"N1"}, claimed.OSMIDs)

	claimed, err = repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, []string{"N3"}, claimed.OSMIDs)

	claimed, err = repo.Claim("uy")
	require.NoError(t, err)
	assert.Nil(t, claimed)

	claimed, err = repo.Claim("ar")
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, []string{"N2"}, claimed.OSMIDs)
}

func TestBatchMarkChecked(t *testing.T) {
	repo := newBatchRepo(t)

	batch := &Batch{CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N1"}}
	require.NoError(t, repo.Insert(batch))

	// Not yet claimed: marking checked must not skip the checking state.
	require.NoError(t, repo.MarkChecked(batch.ID))

	counts, err := repo.CountByStatus("uy")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{BatchOrigin: 1}, counts)

	claimed, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	require.NoError(t, repo.MarkChecked(claimed.ID))

	counts, err = repo.CountByStatus("uy")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{BatchChecked: 1}, counts)
}

func TestBatchResetStale(t *testing.T) {
	db := newTestDB(t)
	repo := NewBatchRepository(db)
	require.NoError(t, repo.CreateSchema())

	require.NoError(t, repo.InsertAll([]*Batch{
		{CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N1"}},
		{CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N2"}},
	}))

	stale, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, stale)

	fresh, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, fresh)

	// Age the first claim past the timeout.
	_, err = db.Exec(
		"UPDATE batches SET claimed_at = now() - INTERVAL 2 HOUR WHERE id = ?",
		stale.ID,
	)
	require.NoError(t, err)

	n, err := repo.ResetStale(time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	counts, err := repo.CountByStatus("uy")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{BatchOrigin: 1, BatchChecking: 1}, counts)

	// The reset batch is claimable again.
	reclaimed, err := repo.Claim("uy")
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	assert.Equal(t, stale.ID, reclaimed.ID)
}

func TestBatchCountByStatusAllCountries(t *testing.T) {
	repo := newBatchRepo(t)

	require.NoError(t, repo.InsertAll([]*Batch{
		{CountryCode: "uy", CountryName: "Uruguay", OSMIDs: []string{"N1"}},
		{CountryCode: "ar", CountryName: "Argentina", OSMIDs: []string{"N2"}},
	}))

	counts, err := repo.CountByStatus("")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{BatchOrigin: 2}, counts)
}
