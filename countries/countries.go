// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

// Package countries carries the static geography configuration: the
// country-name to ISO code resolver, the list of countries to harvest and
// the per-territory text substitution rules. All of it is declarative
// data; nothing here branches on specific territories.
package countries

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Country pairs a harvest target name with its ISO 3166-1 alpha-2 code.
type Country struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// Names frequently spelled differently from the reference table.
var codeAliases = map[string]string{
	"united states":                     "US",
	"united kingdom":                    "GB",
	"south korea":                       "KR",
	"north korea":                       "KP",
	"democratic republic of the congo":  "CD",
	"congo, democratic republic of the": "CD",
	"republic of the congo":             "CG",
	"ivory coast":                       "CI",
	"the netherlands":                   "NL",
	"czechia":                           "CZ",
	"north macedonia":                   "MK",
	"eswatini":                          "SZ",
	"timor leste":                       "TL",
	"palestinian territory":             "PS",
	"bonaire, saint eustatius and saba": "BQ",
	"british virgin islands":            "VG",
	"u.s. virgin islands":               "VI",
	"turks and caicos islands":          "TC",
	"saint vincent and the grenadines":  "VC",
	"trinidad and tobago":               "TT",
	"western sahara":                    "EH",
}

// Resolver maps country names to ISO codes.
type Resolver struct {
	// lowercased reference name -> code
	byName map[string]string
}

// NewResolver builds a resolver over a reference table of code -> name,
// the shape of a geonames country dump.
func NewResolver(reference map[string]string) *Resolver {
	byName := make(map[string]string, len(reference))
	for code, name := range reference {
		byName[strings.ToLower(strings.TrimSpace(name))] = strings.ToUpper(code)
	}

	return &Resolver{byName: byName}
}

// LoadResolver reads a reference table from a JSON file shaped like
// {"UY": {"name": "Uruguay", ...}, ...}.
func LoadResolver(path string) (*Resolver, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by admin
	if err != nil {
		return nil, fmt.Errorf("reading country reference %q: %w", path, err)
	}

	var raw map[string]struct {
		Name string `json:"name"`
	}

	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing country reference %q: %w", path, err)
	}

	reference := make(map[string]string, len(raw))
	for code, entry := range raw {
		reference[code] = entry.Name
	}

	return NewResolver(reference), nil
}

// Resolve finds the ISO code for a country name. Exact matches against the
// reference table win, then the alias table, then a containment match for
// long-form names. Names with no plausible code return ("", false); such
// countries are still harvestable, just without a code.
func (r *Resolver) Resolve(name string) (string, bool) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return "", false
	}

	if code, ok := r.byName[needle]; ok {
		return code, true
	}

	if code, ok := codeAliases[needle]; ok {
		return code, true
	}

	type candidate struct {
		name string
		code string
	}

	var candidates []candidate

	for refName, code := range r.byName {
		if strings.Contains(needle, refName) || strings.Contains(refName, needle) {
			candidates = append(candidates, candidate{name: refName, code: code})
		}
	}

	if len(candidates) == 0 {
		return "", false
	}

	// Prefer the longest reference name so "guinea-bissau" does not land
	// on "guinea".
	sort.Slice(candidates, func(i, j int) bool {
		return len(candidates[i].name) > len(candidates[j].name)
	})

	return candidates[0].code, true
}

// LoadNames reads the harvest target list from a JSON array of country
// names.
func LoadNames(path string) ([]string, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path is provided by admin
	if err != nil {
		return nil, fmt.Errorf("reading country list %q: %w", path, err)
	}

	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parsing country list %q: %w", path, err)
	}

	return names, nil
}
