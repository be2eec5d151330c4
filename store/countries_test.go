// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCountryRepo(t *testing.T) CountryRepository {
	t.Helper()

	repo := NewCountryRepository(newTestDB(t))
	require.NoError(t, repo.CreateSchema())

	return repo
}

func seedTestCountries(t *testing.T, repo CountryRepository) {
	t.Helper()

	require.NoError(t, repo.Seed([]*CountryStatus{
		{Name: "Argentina", Code: "ar"},
		{Name: "Paraguay", Code: "py"},
		{Name: "Uruguay", Code: "uy"},
	}))
}

func TestCountrySeedIsIdempotent(t *testing.T) {
	repo := newCountryRepo(t)
	seedTestCountries(t, repo)

	// Move one country forward, then reseed: the transition must survive.
	changed, err := repo.Transition("Uruguay", CountryOrigin, CountryProcessing)
	require.NoError(t, err)
	require.True(t, changed)

	seedTestCountries(t, repo)

	c, err := repo.Get("Uruguay")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, CountryProcessing, c.Status)

	counts, err := repo.StatusCounts()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{CountryOrigin: 2, CountryProcessing: 1}, counts)
}

func TestCountryNextPending(t *testing.T) {
	repo := newCountryRepo(t)
	seedTestCountries(t, repo)

	c, err := repo.NextPending()
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "Argentina", c.Name)
	assert.Equal(t, "ar", c.Code)

	for _, name := range []string{"Argentina", "Paraguay", "Uruguay"} {
		_, err := repo.Transition(name, CountryOrigin, CountryCompleted)
		require.NoError(t, err)
	}

	c, err = repo.NextPending()
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCountryTransitionRequiresCurrentStatus(t *testing.T) {
	repo := newCountryRepo(t)
	seedTestCountries(t, repo)

	changed, err := repo.Transition("Uruguay", CountryProcessing, CountryCompleted)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = repo.Transition("Uruguay", CountryOrigin, CountryProcessing)
	require.NoError(t, err)
	assert.True(t, changed)

	// A second racer attempting the same transition loses.
	changed, err = repo.Transition("Uruguay", CountryOrigin, CountryProcessing)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestCountryReset(t *testing.T) {
	repo := newCountryRepo(t)
	seedTestCountries(t, repo)

	_, err := repo.Transition("Uruguay", CountryOrigin, CountryFailed)
	require.NoError(t, err)

	require.NoError(t, repo.Reset("Uruguay"))

	c, err := repo.Get("Uruguay")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, CountryOrigin, c.Status)

	assert.Error(t, repo.Reset("Atlantis"))
}

func TestCountryGetAbsent(t *testing.T) {
	repo := newCountryRepo(t)

	c, err := repo.Get("Uruguay")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestCountryList(t *testing.T) {
	repo := newCountryRepo(t)
	seedTestCountries(t, repo)

	list, err := repo.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "Argentina", list[0].Name)
	assert.Equal(t, "Uruguay", list[2].Name)
}
