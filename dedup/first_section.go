// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"strings"
)

// FirstSection extracts the coarse dedup key of an address: the text before
// the first comma, normalized. When the first segment is shorter than four
// characters (a bare house number) it is merged with the second segment.
// Tokens of two characters or fewer are dropped from the result. The
// thresholds here and in the penalty scorer are deliberately a single
// implementation; call sites must not fork them.
func FirstSection(addr string) string {
	if strings.TrimSpace(addr) == "" {
		return ""
	}

	cleaned := removeDisallowed(addr, true)
	if strings.TrimSpace(cleaned) == "" {
		return ""
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimLeft(cleaned, ",")
	cleaned = strings.TrimSpace(cleaned)

	if cleaned == "" {
		return ""
	}

	parts := strings.Split(cleaned, ",")
	first := strings.TrimSpace(parts[0])

	if len([]rune(first)) < 4 && len(parts) > 1 {
		first = strings.TrimSpace(
			strings.TrimSpace(parts[0]) + " " + strings.TrimSpace(parts[1]),
		)
	}

	var kept []string

	for _, w := range strings.Fields(first) {
		if len([]rune(w)) > 2 {
			kept = append(kept, w)
		}
	}

	return strings.ToLower(strings.Join(kept, " "))
}
