// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package report summarizes the quality of the harvested addresses: the
// per-country duplicate penalty and the countries whose coverage is too
// thin to trust.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/cartobase/addrharvest/dedup"
	"github.com/cartobase/addrharvest/store"
)

// DefaultLowCoverageThreshold marks countries with fewer validated
// addresses than this for a recheck.
const DefaultLowCoverageThreshold = 15

// CountryReport is the quality summary for one country.
type CountryReport struct {
	Penalty   float64 `json:"penalty"`
	Addresses int     `json:"addresses"`
}

// Report maps country name to its summary.
type Report map[string]CountryReport

// Build computes the duplicate penalty over every country's finalized
// address set.
func Build(addresses store.AddressRepository) (Report, error) {
	countries, err := addresses.Countries()
	if err != nil {
		return nil, err
	}

	report := make(Report, len(countries))

	for _, country := range countries {
		variants, err := addresses.VariantsByCountry(country)
		if err != nil {
			return nil, err
		}

		report[country] = CountryReport{
			Penalty:   dedup.Penalty(variants),
			Addresses: len(variants),
		}
	}

	return report, nil
}

// WriteFile saves the report as indented JSON.
func (r Report) WriteFile(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing report %q: %w", path, err)
	}

	return nil
}

// LowCoverage returns the countries with fewer addresses than the
// threshold, sorted by name. A threshold of zero or less uses the default.
func LowCoverage(addresses store.AddressRepository, threshold int) ([]string, error) {
	if threshold <= 0 {
		threshold = DefaultLowCoverageThreshold
	}

	counts, err := addresses.CountByCountry()
	if err != nil {
		return nil, err
	}

	var low []string

	for country, n := range counts {
		if n < threshold {
			low = append(low, country)
		}
	}

	sort.Strings(low)

	return low, nil
}
