// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartobase/addrharvest/store"
)

func newAddressRepo(t *testing.T) store.AddressRepository {
	t.Helper()

	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := store.NewAddressRepository(db)
	require.NoError(t, repo.CreateSchema())

	return repo
}

func seedAddresses(t *testing.T, repo store.AddressRepository, country string, texts ...string) {
	t.Helper()

	for i, text := range texts {
		require.NoError(t, repo.Upsert(&store.ValidatedAddress{
			OSMID:   country[:2] + string(rune('A'+i)),
			Country: country,
			Score:   1,
			Address: text,
		}))
	}
}

func TestBuildReport(t *testing.T) {
	repo := newAddressRepo(t)

	seedAddresses(t, repo, "Uruguay",
		"Plaza Independencia, Montevideo",
		"Palacio Salvo, Montevideo",
	)
	seedAddresses(t, repo, "Argentina",
		"123 Main St, Springfield",
		"123 main st, springfield",
	)

	report, err := Build(repo)
	require.NoError(t, err)
	require.Len(t, report, 2)

	assert.Equal(t, 2, report["Uruguay"].Addresses)
	assert.Zero(t, report["Uruguay"].Penalty)

	assert.Equal(t, 2, report["Argentina"].Addresses)
	// Upserting dedupes exact text, but these two variants differ in case
	// only, so both normalization signals fire.
	assert.InDelta(t, 0.10, report["Argentina"].Penalty, 1e-9)
}

func TestBuildReportEmptyStore(t *testing.T) {
	repo := newAddressRepo(t)

	report, err := Build(repo)
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestWriteFile(t *testing.T) {
	repo := newAddressRepo(t)
	seedAddresses(t, repo, "Uruguay", "Plaza Independencia, Montevideo")

	report, err := Build(repo)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "penalties.json")
	require.NoError(t, report.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report, decoded)
}

func TestLowCoverage(t *testing.T) {
	repo := newAddressRepo(t)

	seedAddresses(t, repo, "Uruguay",
		"Plaza Independencia, Montevideo",
		"Palacio Salvo, Montevideo",
		"Teatro Solis, Montevideo",
	)
	seedAddresses(t, repo, "Argentina", "Casa Rosada, Buenos Aires")

	low, err := LowCoverage(repo, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"Argentina"}, low)

	low, err = LowCoverage(repo, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Argentina", "Uruguay"}, low)
}
