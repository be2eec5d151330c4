// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package validate

import (
	"strings"
	"unicode"
)

// Predicates are the two admissibility heuristics the validator consults.
// They are deployment-specific capabilities: callers plug in whatever
// notion of "postal address" and "right region" their dataset needs.
type Predicates interface {
	// LooksLikeAddress reports whether the display text is structurally
	// plausible as a postal address.
	LooksLikeAddress(display string) bool

	// MatchesRegion reports whether the display text belongs to the
	// claimed country.
	MatchesRegion(display, country string) bool
}

// DefaultPredicates is a conservative baseline: an address needs at least
// two comma-separated sections and a handful of letters, and must mention
// its country.
type DefaultPredicates struct{}

func (DefaultPredicates) LooksLikeAddress(display string) bool {
	if !strings.Contains(display, ",") {
		return false
	}

	var letters int

	for _, r := range display {
		if unicode.IsLetter(r) {
			letters++
		}

		if letters >= 5 {
			return true
		}
	}

	return false
}

func (DefaultPredicates) MatchesRegion(display, country string) bool {
	if country == "" {
		return false
	}

	return strings.Contains(strings.ToLower(display), strings.ToLower(country))
}
