// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package dedup

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPenaltyDegenerateInputs(t *testing.T) {
	assert.Zero(t, Penalty(nil))
	assert.Zero(t, Penalty([]string{}))
	assert.Zero(t, Penalty([]string{"123 Main St, Springfield"}))
	assert.Zero(t, Penalty([]string{"", "   "}))
}

func TestPenaltyBothSignals(t *testing.T) {
	variants := []string{
		"123 Main St, Springfield",
		"123 main st, springfield",
	}

	// Same normalized form and same first section: 0.05 + 0.05.
	assert.InDelta(t, 0.10, Penalty(variants), 1e-9)
}

func TestPenaltyFullDuplicateOnly(t *testing.T) {
	variants := []string{
		"123 Main St, Springfield",
		"123 main st springfield", // no comma, so a different first section
	}

	assert.InDelta(t, 0.05, Penalty(variants), 1e-9)
}

func TestPenaltyDistinctAddresses(t *testing.T) {
	variants := []string{
		"302 Wenhui Road, Zhaohui, Gongshu District, Hangzhou City",
		"348 Wenhui Road, Zhaohui, Gongshu District, Hangzhou City",
		"196 Shangtang Road, Zhaohui, Gongshu District, Hangzhou City",
	}

	assert.Zero(t, Penalty(variants))
}

func TestPenaltySymmetricUnderReordering(t *testing.T) {
	variants := []string{
		"123 Main St, Springfield",
		"123 main st, springfield",
		"90 Fifth Avenue, New York",
		"90 Fifth Avenue, New York",
		"Plaza Independencia, Montevideo",
	}

	want := Penalty(variants)
	r := rand.New(rand.NewSource(11))

	for range 10 {
		r.Shuffle(len(variants), func(i, j int) {
			variants[i], variants[j] = variants[j], variants[i]
		})
		assert.InDelta(t, want, Penalty(variants), 1e-9)
	}
}

func TestPenaltyMonotonicInDuplicates(t *testing.T) {
	variants := []string{"123 Main St, Springfield"}

	prev := Penalty(variants)

	for range 4 {
		variants = append(variants, "123 Main St, Springfield")
		cur := Penalty(variants)
		assert.Greater(t, cur, prev)
		prev = cur
	}
}
