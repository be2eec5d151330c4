// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate turns claimed batches of OSM ids into validated
// address rows. Each id is resolved through the geocoder, its display
// text cleaned and patched for territory quirks, run through the
// admissibility predicates and scored; survivors are upserted.
package validate

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/cartobase/addrharvest/countries"
	"github.com/cartobase/addrharvest/geocoder"
	"github.com/cartobase/addrharvest/store"
)

// acceptThreshold is the minimum confidence an address needs to be saved.
const acceptThreshold = 0.9

// specialCharReplacer blanks characters that show up in raw display names
// but never belong in a postal address.
var specialCharReplacer = strings.NewReplacer(
	"`", " ", ":", " ", "%", " ", "$", " ", "@", " ", "*", " ", "^", " ",
	"[", " ", "]", " ", "{", " ", "}", " ", "_", " ", "«", " ", "»", " ",
)

// Metrics counts per-batch validation outcomes.
type Metrics struct {
	Processed      int
	Saved          int
	Unresolved     int
	Errors         int
	RejectedFormat int
	RejectedRegion int
	RejectedRank   int
	RejectedScore  int
}

// Merge adds other's counts into m.
func (m *Metrics) Merge(other *Metrics) {
	m.Processed += other.Processed
	m.Saved += other.Saved
	m.Unresolved += other.Unresolved
	m.Errors += other.Errors
	m.RejectedFormat += other.RejectedFormat
	m.RejectedRegion += other.RejectedRegion
	m.RejectedRank += other.RejectedRank
	m.RejectedScore += other.RejectedScore
}

// Rejected returns how many ids failed an admissibility gate.
func (m *Metrics) Rejected() int {
	return m.RejectedFormat + m.RejectedRegion + m.RejectedRank + m.RejectedScore
}

// Options configures a Validator.
type Options struct {
	Geocoder   geocoder.Geocoder
	Addresses  store.AddressRepository
	Rules      countries.RuleSet
	Predicates Predicates

	// BinaryScore switches from the bounding-box confidence ladder to
	// corroboration by free-text search: 1.0 when a search for the cleaned
	// display text finds a specific place, 0.0 otherwise. Pick one mode
	// per deployment; scores from the two modes are not comparable.
	BinaryScore bool

	// Progress draws a progress bar on stderr when it is a terminal.
	Progress bool
}

// Validator processes claimed batches against the geocoder.
type Validator struct {
	geo         geocoder.Geocoder
	addresses   store.AddressRepository
	rules       countries.RuleSet
	predicates  Predicates
	binaryScore bool
	progress    bool
}

// NewValidator creates a Validator. Rules and Predicates fall back to the
// defaults when unset.
func NewValidator(options Options) *Validator {
	rules := options.Rules
	if rules == nil {
		rules = countries.DefaultRules
	}

	predicates := options.Predicates
	if predicates == nil {
		predicates = DefaultPredicates{}
	}

	return &Validator{
		geo:         options.Geocoder,
		addresses:   options.Addresses,
		rules:       rules,
		predicates:  predicates,
		binaryScore: options.BinaryScore,
		progress:    options.Progress,
	}
}

// ProcessBatch attempts every id in the batch. Geocoder trouble on one id
// skips only that id; a store failure aborts, because continuing would
// silently drop accepted addresses.
func (v *Validator) ProcessBatch(ctx context.Context, batch *store.Batch) (*Metrics, error) {
	metrics := &Metrics{}

	var bar *progressbar.ProgressBar
	if v.progress && isatty.IsTerminal(os.Stderr.Fd()) {
		bar = progressbar.NewOptions(len(batch.OSMIDs),
			progressbar.OptionSetDescription("Validating "+batch.CountryName),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	for _, id := range batch.OSMIDs {
		if err := ctx.Err(); err != nil {
			return metrics, err
		}

		if bar != nil {
			_ = bar.Add(1)
		}

		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}

		metrics.Processed++

		addr := v.validateID(ctx, batch.CountryName, id, metrics)
		if addr == nil {
			continue
		}

		if err := v.addresses.Upsert(addr); err != nil {
			return metrics, fmt.Errorf("persisting %s: %w", id, err)
		}

		metrics.Saved++
	}

	return metrics, nil
}

// validateID runs one id through resolution, cleanup, the admissibility
// gates and scoring. A nil return means the id was skipped or rejected;
// the reason is already counted.
func (v *Validator) validateID(ctx context.Context, countryName, id string, metrics *Metrics) *store.ValidatedAddress {
	place, err := v.geo.Lookup(ctx, id)
	if err != nil {
		log.Printf("geocoding %s: %v", id, err)
		metrics.Errors++

		return nil
	}

	if place == nil {
		metrics.Unresolved++

		return nil
	}

	display := cleanDisplayName(place.DisplayName)
	display = v.rules.ApplyDisplay(countryName, display)
	display = strings.Join(strings.Fields(display), " ")

	if !v.predicates.LooksLikeAddress(display) {
		metrics.RejectedFormat++

		return nil
	}

	geocodedCountry := place.Country
	if geocodedCountry == "" {
		geocodedCountry = countryName
	}

	country := v.rules.ResolveCountry(countryName, geocodedCountry)

	if !v.predicates.MatchesRegion(display, country) {
		metrics.RejectedRegion++

		return nil
	}

	// Ranks at country/region/city level are too coarse to be addresses.
	if place.PlaceRank <= 20 {
		metrics.RejectedRank++

		return nil
	}

	score := v.score(ctx, place, display)
	if score < acceptThreshold {
		metrics.RejectedScore++

		return nil
	}

	return &store.ValidatedAddress{
		OSMID:    place.OSMID,
		Country:  country,
		City:     place.City,
		Street:   place.Street,
		Score:    score,
		Address:  display,
		Centroid: &place.Centroid,
	}
}

func cleanDisplayName(display string) string {
	return specialCharReplacer.Replace(display)
}

func (v *Validator) score(ctx context.Context, place *geocoder.Place, display string) float64 {
	if v.binaryScore {
		confirmation, err := v.geo.Search(ctx, display)
		if err != nil {
			log.Printf("corroborating %q: %v", display, err)

			return 0
		}

		if confirmation == nil || confirmation.PlaceRank <= 20 {
			return 0
		}

		return 1.0
	}

	if !place.HasBox {
		return 0.3
	}

	return areaScore(place.BoundingBox.AreaMeters())
}

// areaScore maps the bounding-box footprint in square meters to a
// confidence level. Small boxes are individual buildings; anything past a
// city block is too vague to trust.
func areaScore(area float64) float64 {
	switch {
	case area < 100:
		return 1.0
	case area < 1000:
		return 0.9
	case area < 10000:
		return 0.8
	case area < 100000:
		return 0.7
	default:
		return 0.3
	}
}
