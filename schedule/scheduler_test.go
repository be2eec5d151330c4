// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartobase/addrharvest/store"
	"github.com/cartobase/addrharvest/validate"
)

type fakeProcessor struct {
	seen    []int64
	perID   int // Saved count reported per id
	failOn  int64
	failErr error
}

func (p *fakeProcessor) ProcessBatch(_ context.Context, batch *store.Batch) (*validate.Metrics, error) {
	p.seen = append(p.seen, batch.ID)

	if p.failOn != 0 && batch.ID == p.failOn {
		return &validate.Metrics{Processed: len(batch.OSMIDs)}, p.failErr
	}

	return &validate.Metrics{
		Processed: len(batch.OSMIDs),
		Saved:     len(batch.OSMIDs) * p.perID,
	}, nil
}

type fixture struct {
	db        *sql.DB
	batches   store.BatchRepository
	countries store.CountryRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := store.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	batches := store.NewBatchRepository(db)
	require.NoError(t, batches.CreateSchema())

	countries := store.NewCountryRepository(db)
	require.NoError(t, countries.CreateSchema())

	return &fixture{db: db, batches: batches, countries: countries}
}

func (f *fixture) scheduler(p Processor) *Scheduler {
	return NewScheduler(Options{
		Batches:      f.batches,
		Countries:    f.countries,
		Processor:    p,
		StaleTimeout: time.Hour,
	})
}

func (f *fixture) seed(t *testing.T, name, code string, batchIDs ...[]string) {
	t.Helper()

	require.NoError(t, f.countries.Seed([]*store.CountryStatus{{Name: name, Code: code}}))

	for _, ids := range batchIDs {
		require.NoError(t, f.batches.Insert(&store.Batch{
			CountryCode: code, CountryName: name, OSMIDs: ids,
		}))
	}
}

func countryStatus(t *testing.T, f *fixture, name string) string {
	t.Helper()

	c, err := f.countries.Get(name)
	require.NoError(t, err)
	require.NotNil(t, c)

	return c.Status
}

func TestRunDrainsAllCountries(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Uruguay", "uy", []string{"N1", "N2"}, []string{"N3"})
	f.seed(t, "Argentina", "ar", []string{"N4"})

	p := &fakeProcessor{perID: 1}
	metrics, err := f.scheduler(p).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, metrics.Processed)
	assert.Equal(t, 4, metrics.Saved)
	assert.Len(t, p.seen, 3)

	assert.Equal(t, store.CountryCompleted, countryStatus(t, f, "Uruguay"))
	assert.Equal(t, store.CountryCompleted, countryStatus(t, f, "Argentina"))

	counts, err := f.batches.CountByStatus("")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{store.BatchChecked: 3}, counts)
}

func TestCountryWithoutBatchesFails(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.countries.Seed([]*store.CountryStatus{{Name: "Atlantis", Code: "zz"}}))

	p := &fakeProcessor{}
	_, err := f.scheduler(p).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, store.CountryFailed, countryStatus(t, f, "Atlantis"))
	assert.Empty(t, p.seen)
}

func TestCodelessCountryFailsWithoutTouchingOthers(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Uruguay", "uy", []string{"N1"})
	require.NoError(t, f.countries.Seed([]*store.CountryStatus{{Name: "Atlantis", Code: ""}}))

	p := &fakeProcessor{perID: 1}
	metrics, err := f.scheduler(p).Run(context.Background())
	require.NoError(t, err)

	// Atlantis must not claim Uruguay's batches through its empty code.
	assert.Equal(t, store.CountryFailed, countryStatus(t, f, "Atlantis"))
	assert.Equal(t, store.CountryCompleted, countryStatus(t, f, "Uruguay"))
	assert.Equal(t, 1, metrics.Processed)
	assert.Len(t, p.seen, 1)
}

func TestProcessorFailureLeavesBatchChecking(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Uruguay", "uy", []string{"N1"})

	p := &fakeProcessor{failOn: 1, failErr: errors.New("store exploded")}
	_, err := f.scheduler(p).Run(context.Background())
	require.Error(t, err)

	counts, err := f.batches.CountByStatus("uy")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{store.BatchChecking: 1}, counts)
	assert.Equal(t, store.CountryProcessing, countryStatus(t, f, "Uruguay"))
}

func TestSweepRecoversStuckWork(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Uruguay", "uy", []string{"N1"})

	p := &fakeProcessor{failOn: 1, failErr: errors.New("worker died")}
	s := f.scheduler(p)

	_, err := s.Run(context.Background())
	require.Error(t, err)

	// Age the stuck claim past the timeout.
	_, err = f.db.Exec("UPDATE batches SET claimed_at = now() - INTERVAL 3 HOUR WHERE status = 'checking'")
	require.NoError(t, err)

	n, err := s.Sweep()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	assert.Equal(t, store.CountryOrigin, countryStatus(t, f, "Uruguay"))

	// A later run picks the work back up and finishes it.
	p.failOn = 0

	_, err = s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.CountryCompleted, countryStatus(t, f, "Uruguay"))
}

func TestSweepCompletesOrphanedCountry(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Uruguay", "uy", []string{"N1"})

	// Simulate a worker that checked every batch but died before
	// recording the country completion.
	claimed, err := f.batches.Claim("uy")
	require.NoError(t, err)
	require.NoError(t, f.batches.MarkChecked(claimed.ID))

	changed, err := f.countries.Transition("Uruguay", store.CountryOrigin, store.CountryProcessing)
	require.NoError(t, err)
	require.True(t, changed)

	s := f.scheduler(&fakeProcessor{})

	_, err = s.Sweep()
	require.NoError(t, err)
	assert.Equal(t, store.CountryCompleted, countryStatus(t, f, "Uruguay"))
}

func TestRunCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Uruguay", "uy", []string{"N1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.scheduler(&fakeProcessor{}).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
