// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package dedup implements the text canonicalization used for fuzzy
// duplicate detection of postal addresses. The fingerprints produced here
// are for equality comparison only, never for display.
package dedup

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Unicode blocks excluded from fingerprints even though they hold letters:
// phonetic extensions and Latin Extended-D. The upstream geocoder's own
// normalizer drops them, and fingerprints must stay equivalent with it.
var excludedBlocks = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x1D00, Hi: 0x1DBF, Stride: 1}, // Phonetic Extensions + Supplement
		{Lo: 0xA720, Hi: 0xA7FF, Stride: 1}, // Latin Extended-D
	},
}

// Modifier letters ʻ (U+02BB) and ʼ (U+02BC) count as letters but never as
// fingerprint material.
const (
	okina      = 'ʻ'
	apostrophe = 'ʼ'
)

// removeDisallowed keeps letters of any script, combining marks, ASCII
// digits and spaces; everything else (currency symbols, emoji, math
// operators) is dropped. Commas survive only when preserveComma is set.
func removeDisallowed(text string, preserveComma bool) string {
	var sb strings.Builder

	sb.Grow(len(text))

	for _, r := range text {
		if unicode.Is(excludedBlocks, r) {
			continue
		}

		switch {
		case unicode.IsLetter(r) || unicode.IsMark(r):
			sb.WriteRune(r)
		case r == ' ' || ('0' <= r && r <= '9'):
			sb.WriteRune(r)
		case r == ',' && preserveComma:
			sb.WriteRune(r)
		}
	}

	return sb.String()
}

// foldMarks applies compatibility decomposition and strips the combining
// marks it exposes, removing diacritics.
var foldMarks = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
)

// punctReplacer turns the geocoder's punctuation and symbol set into spaces.
// After removeDisallowed most of these are already gone; kept for the call
// sites that normalize raw text.
var punctReplacer = strings.NewReplacer(func() []string {
	var pairs []string
	for _, c := range []string{
		"-", ":", ",", ".", ";", "!", "?", "(", ")", "{", "}", "[", "]",
		`"`, "'", "“", "”", "‘", "’",
		"/", "\\", "|", "*", "_", "=", "+", "<", ">", "@", "#", "^", "&",
	} {
		pairs = append(pairs, c, " ")
	}

	return pairs
}()...)

var digitRuns = regexp.MustCompile(`[0-9]+`)

// Canonicalize reduces an address to its canonical fingerprint: a sorted
// string of the letters appearing in words longer than three characters,
// invariant to word order, case, script, diacritics and repeated words.
// Empty and whitespace-only input yield the empty string.
func Canonicalize(addr string) string {
	if strings.TrimSpace(addr) == "" {
		return ""
	}

	text := removeDisallowed(addr, false)

	text, _, _ = transform.String(foldMarks, text)
	text = strings.ToLower(text)
	text = punctReplacer.Replace(text)
	text = strings.Join(strings.Fields(text), " ")
	text = strings.Trim(text, " -:")

	text = unidecode.Unidecode(text)
	text = digitRuns.ReplaceAllString(text, " ")

	// Word-level dedup: tokens of three characters or fewer carry no
	// discriminating signal and are dropped before the set is built.
	seen := make(map[string]struct{})

	for _, tok := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ','
	}) {
		if len([]rune(tok)) > 3 {
			seen[tok] = struct{}{}
		}
	}

	var letters []rune

	for tok := range seen {
		for _, r := range tok {
			if unicode.IsLetter(r) && r != okina && r != apostrophe {
				letters = append(letters, unicode.ToLower(r))
			}
		}
	}

	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })

	return string(letters)
}
