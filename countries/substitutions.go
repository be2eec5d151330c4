// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package countries

import "strings"

// Rule is one per-territory text substitution. Territories whose geocoded
// attribution differs from the name we harvest them under need their
// display text patched, their country attribution forced, or both.
type Rule struct {
	// Territory is the harvested country name the rule applies to.
	Territory string

	// Match is replaced by Replacement in the display text. An empty
	// Replacement removes the match.
	Match       string
	Replacement string

	// Append is added to the end of the display text when not already
	// present.
	Append string

	// TargetCountry overrides the geocoder's country attribution.
	TargetCountry string
}

// DefaultRules covers the territories known to need patching.
var DefaultRules = RuleSet{
	{Territory: "Timor Leste", Match: "East Timor", Replacement: "Timor Leste", TargetCountry: "Timor Leste"},
	{Territory: "Cabo Verde", Match: ", Cape Verde", Replacement: ", Cabo Verde", TargetCountry: "Cabo Verde"},
	{Territory: "Palestinian Territory", Match: "Palestinian Territories", Replacement: "Palestinian Territory", TargetCountry: "Palestinian Territory"},
	{Territory: "Republic of the Congo", Match: "Congo-Brazzaville", Replacement: "Republic of the Congo", TargetCountry: "Republic of the Congo"},
	{Territory: "Aruba", Match: ", Netherlands", Replacement: "", TargetCountry: "Aruba"},
	{Territory: "Aruba", Match: ", 0000 NA", Replacement: ""},
	{Territory: "Curacao", Match: ", Netherlands", Replacement: "", TargetCountry: "Curacao"},
	{Territory: "Curacao", Match: ", 0000 NA", Replacement: ""},
	{Territory: "Luhansk", TargetCountry: "Luhansk"},
	{Territory: "Donetsk", TargetCountry: "Donetsk"},
	{Territory: "Crimea", TargetCountry: "Crimea"},
	{Territory: "Western Sahara", TargetCountry: "Western Sahara"},
}

// RuleSet is an ordered list of substitution rules.
type RuleSet []Rule

// ApplyDisplay runs the territory's replacement and append rules over a
// display text.
func (rs RuleSet) ApplyDisplay(territory, display string) string {
	for _, rule := range rs {
		if !strings.EqualFold(rule.Territory, territory) {
			continue
		}

		if rule.Match != "" {
			display = strings.ReplaceAll(display, rule.Match, rule.Replacement)
		}

		if rule.Append != "" && !strings.Contains(display, rule.Append) {
			display = strings.TrimRight(display, " ,") + ", " + rule.Append
		}
	}

	return display
}

// ResolveCountry decides the country attribution for an accepted address:
// the geocoder's answer unless a rule forces the territory's own.
func (rs RuleSet) ResolveCountry(territory, geocoded string) string {
	for _, rule := range rs {
		if rule.TargetCountry != "" && strings.EqualFold(rule.Territory, territory) {
			return rule.TargetCountry
		}
	}

	if geocoded == "" {
		return territory
	}

	return geocoded
}
