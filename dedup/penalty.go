// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"strings"
)

// Weight applied per duplicated variant in both penalty signals.
const duplicateWeight = 0.05

var separatorReplacer = strings.NewReplacer(",", " ", ";", " ", "-", " ")

// normalizeVariant flattens an address variant for whole-string duplicate
// detection: lowercase, separators to spaces, whitespace collapsed.
func normalizeVariant(addr string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(addr), " "))
	normalized = separatorReplacer.Replace(normalized)

	return strings.Join(strings.Fields(normalized), " ")
}

// Penalty scores a set of address variants describing one entity for
// duplication. Two independent signals contribute: whole-string duplicates
// after normalization, and repeated first sections. The result is symmetric
// under reordering, zero for zero or one variants, and non-decreasing as
// duplicates are added.
func Penalty(variants []string) float64 {
	var penalty float64

	// Signal 1: full normalized duplicates.
	normalized := make([]string, 0, len(variants))
	distinct := make(map[string]struct{})

	for _, addr := range variants {
		if strings.TrimSpace(addr) == "" {
			continue
		}

		n := normalizeVariant(addr)
		normalized = append(normalized, n)
		distinct[n] = struct{}{}
	}

	if dup := len(normalized) - len(distinct); dup > 0 {
		penalty += float64(dup) * duplicateWeight
	}

	// Signal 2: first-section duplicates. Every occurrence beyond the first
	// of a given key counts.
	counts := make(map[string]int)

	for _, addr := range variants {
		if strings.TrimSpace(addr) == "" {
			continue
		}

		if section := FirstSection(addr); section != "" {
			counts[section]++
		}
	}

	var dupSections int

	for _, k := range counts {
		if k > 1 {
			dupSections += k - 1
		}
	}

	if dupSections > 0 {
		penalty += float64(dupSections) * duplicateWeight
	}

	return penalty
}
