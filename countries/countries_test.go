// Copyright 2025 The AddrHarvest Authors
// SPDX-License-Identifier: Apache-2.0

package countries

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResolver() *Resolver {
	return NewResolver(map[string]string{
		"UY": "Uruguay",
		"AR": "Argentina",
		"GN": "Guinea",
		"GW": "Guinea-Bissau",
		"KR": "Korea, Republic of",
		"CV": "Cabo Verde",
	})
}

func TestResolverExactMatch(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name string
		want string
	}{
		{"Uruguay", "UY"},
		{"uruguay", "UY"},
		{"  Argentina  ", "AR"},
		{"Guinea-Bissau", "GW"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := r.Resolve(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestResolverAliases(t *testing.T) {
	r := testResolver()

	tests := []struct {
		name string
		want string
	}{
		{"South Korea", "KR"},
		{"Ivory Coast", "CI"},
		{"Timor Leste", "TL"},
		{"Western Sahara", "EH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, ok := r.Resolve(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestResolverPartialMatchPrefersLongest(t *testing.T) {
	r := testResolver()

	code, ok := r.Resolve("Republic of Guinea-Bissau")
	require.True(t, ok)
	assert.Equal(t, "GW", code)
}

func TestResolverUnknown(t *testing.T) {
	r := testResolver()

	_, ok := r.Resolve("Atlantis")
	assert.False(t, ok)

	_, ok = r.Resolve("")
	assert.False(t, ok)
}

func TestLoadNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "country.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Uruguay", "Argentina"]`), 0o600))

	names, err := LoadNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Uruguay", "Argentina"}, names)

	_, err = LoadNames(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reference.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"UY": {"name": "Uruguay", "capital": "Montevideo"}
	}`), 0o600))

	r, err := LoadResolver(path)
	require.NoError(t, err)

	code, ok := r.Resolve("Uruguay")
	require.True(t, ok)
	assert.Equal(t, "UY", code)
}

func TestRulesApplyDisplay(t *testing.T) {
	tests := []struct {
		territory string
		display   string
		want      string
	}{
		{
			territory: "Timor Leste",
			display:   "Rua de Motael, Dili, East Timor",
			want:      "Rua de Motael, Dili, Timor Leste",
		},
		{
			territory: "Aruba",
			display:   "Caya Betico Croes, Oranjestad, Aruba, Netherlands",
			want:      "Caya Betico Croes, Oranjestad, Aruba",
		},
		{
			territory: "Cabo Verde",
			display:   "Avenida Amilcar Cabral, Praia, Cape Verde",
			want:      "Avenida Amilcar Cabral, Praia, Cabo Verde",
		},
		{
			// Rules for other territories must not fire.
			territory: "Uruguay",
			display:   "Somewhere, East Timor",
			want:      "Somewhere, East Timor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.territory, func(t *testing.T) {
			assert.Equal(t, tt.want, DefaultRules.ApplyDisplay(tt.territory, tt.display))
		})
	}
}

func TestRulesAppend(t *testing.T) {
	rules := RuleSet{{Territory: "Kosovo", Append: "Kosovo"}}

	assert.Equal(t, "Rruga B, Pristina, Kosovo",
		rules.ApplyDisplay("Kosovo", "Rruga B, Pristina"))
	assert.Equal(t, "Rruga B, Pristina, Kosovo",
		rules.ApplyDisplay("Kosovo", "Rruga B, Pristina, Kosovo"))
}

func TestRulesResolveCountry(t *testing.T) {
	assert.Equal(t, "Crimea", DefaultRules.ResolveCountry("Crimea", "Ukraine"))
	assert.Equal(t, "Luhansk", DefaultRules.ResolveCountry("Luhansk", "Russia"))
	assert.Equal(t, "Uruguay", DefaultRules.ResolveCountry("Uruguay", "Uruguay"))
	assert.Equal(t, "Argentina", DefaultRules.ResolveCountry("Uruguay", "Argentina"))
	assert.Equal(t, "Uruguay", DefaultRules.ResolveCountry("Uruguay", ""))
}
