// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package schedule drives the batch and country state machines. A
// scheduler claims batches one at a time, hands them to the processor and
// records the transitions; several worker processes can run against the
// same store because claiming is atomic.
package schedule

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cartobase/addrharvest/store"
	"github.com/cartobase/addrharvest/validate"
)

// DefaultStaleTimeout is how long a batch may sit in checking before the
// sweep assumes its worker died.
const DefaultStaleTimeout = 2 * time.Hour

// Processor consumes one claimed batch.
type Processor interface {
	ProcessBatch(ctx context.Context, batch *store.Batch) (*validate.Metrics, error)
}

// Scheduler walks countries through origin, processing and their terminal
// states, claiming and dispatching batches along the way.
type Scheduler struct {
	batches   store.BatchRepository
	countries store.CountryRepository
	processor Processor

	staleTimeout time.Duration
}

// Options configures a Scheduler.
type Options struct {
	Batches   store.BatchRepository
	Countries store.CountryRepository
	Processor Processor

	// StaleTimeout for the recovery sweep; defaults to DefaultStaleTimeout.
	StaleTimeout time.Duration
}

// NewScheduler creates a Scheduler.
func NewScheduler(options Options) *Scheduler {
	timeout := options.StaleTimeout
	if timeout <= 0 {
		timeout = DefaultStaleTimeout
	}

	return &Scheduler{
		batches:      options.Batches,
		countries:    options.Countries,
		processor:    options.Processor,
		staleTimeout: timeout,
	}
}

// Run processes pending countries until none remain or the context ends.
func (s *Scheduler) Run(ctx context.Context) (*validate.Metrics, error) {
	total := &validate.Metrics{}

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		country, err := s.countries.NextPending()
		if err != nil {
			return total, fmt.Errorf("finding next country: %w", err)
		}

		if country == nil {
			return total, nil
		}

		metrics, err := s.ProcessCountry(ctx, country)
		if metrics != nil {
			total.Merge(metrics)
		}

		if err != nil {
			return total, err
		}
	}
}

// ProcessCountry drains one country's batches. The country moves to
// processing on the first claim, to completed when no batch remains in
// origin or checking, and to failed when it never had batches at all,
// which means there was no extractable data source for it.
func (s *Scheduler) ProcessCountry(ctx context.Context, country *store.CountryStatus) (*validate.Metrics, error) {
	metrics := &validate.Metrics{}

	// Batches are keyed by code; a codeless country can never own any, and
	// an empty code would count every country's batches as its own.
	if country.Code == "" {
		log.Printf("no country code for %s, marking failed", country.Name)

		if _, err := s.countries.Transition(country.Name, country.Status, store.CountryFailed); err != nil {
			return metrics, err
		}

		return metrics, nil
	}

	counts, err := s.batches.CountByStatus(country.Code)
	if err != nil {
		return metrics, fmt.Errorf("counting batches for %s: %w", country.Name, err)
	}

	if total(counts) == 0 {
		log.Printf("no batches for %s, marking failed", country.Name)

		if _, err := s.countries.Transition(country.Name, country.Status, store.CountryFailed); err != nil {
			return metrics, err
		}

		return metrics, nil
	}

	// Losing this transition just means another worker got there first.
	if _, err := s.countries.Transition(country.Name, store.CountryOrigin, store.CountryProcessing); err != nil {
		return metrics, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return metrics, err
		}

		batch, err := s.batches.Claim(country.Code)
		if err != nil {
			return metrics, fmt.Errorf("claiming batch for %s: %w", country.Name, err)
		}

		if batch == nil {
			break
		}

		log.Printf("processing batch %d (%s, %d ids)", batch.ID, country.Name, len(batch.OSMIDs))

		batchMetrics, err := s.processor.ProcessBatch(ctx, batch)
		if batchMetrics != nil {
			metrics.Merge(batchMetrics)
		}

		if err != nil {
			// The batch stays in checking; the sweep will hand it back.
			return metrics, fmt.Errorf("processing batch %d: %w", batch.ID, err)
		}

		if err := s.batches.MarkChecked(batch.ID); err != nil {
			return metrics, err
		}
	}

	counts, err = s.batches.CountByStatus(country.Code)
	if err != nil {
		return metrics, fmt.Errorf("counting batches for %s: %w", country.Name, err)
	}

	if counts[store.BatchOrigin] == 0 && counts[store.BatchChecking] == 0 {
		if _, err := s.countries.Transition(country.Name, store.CountryProcessing, store.CountryCompleted); err != nil {
			return metrics, err
		}

		log.Printf("completed %s: %d addresses saved", country.Name, metrics.Saved)
	}

	return metrics, nil
}

// Sweep resets batches stuck in checking past the staleness timeout and
// reopens their countries so a later run picks them up again.
func (s *Scheduler) Sweep() (int64, error) {
	n, err := s.batches.ResetStale(s.staleTimeout)
	if err != nil {
		return 0, err
	}

	if n > 0 {
		log.Printf("reset %d stale batches", n)
	}

	countries, err := s.countries.List()
	if err != nil {
		return n, err
	}

	for _, country := range countries {
		if country.Status != store.CountryProcessing || country.Code == "" {
			continue
		}

		counts, err := s.batches.CountByStatus(country.Code)
		if err != nil {
			return n, err
		}

		if counts[store.BatchOrigin] > 0 {
			if _, err := s.countries.Transition(country.Name, store.CountryProcessing, store.CountryOrigin); err != nil {
				return n, err
			}
		} else if counts[store.BatchChecking] == 0 {
			// Every batch finished but the worker died before it could
			// record the completion.
			if _, err := s.countries.Transition(country.Name, store.CountryProcessing, store.CountryCompleted); err != nil {
				return n, err
			}
		}
	}

	return n, nil
}

func total(counts map[string]int) int {
	n := 0
	for _, c := range counts {
		n += c
	}

	return n
}
