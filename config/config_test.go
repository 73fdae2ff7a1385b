package config

import (
	"testing"

	"github.com/ballotline/registry/pkg/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStateThresholds(t *testing.T) {
	overrides, err := ParseStateThresholds("NC=0.95:0.85,DE=0.97:0.88")
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	assert.Equal(t, matching.Thresholds{AutoUpdate: 0.95, Review: 0.85}, overrides["NC"])
	assert.Equal(t, matching.Thresholds{AutoUpdate: 0.97, Review: 0.88}, overrides["DE"])
}

func TestParseStateThresholds_Empty(t *testing.T) {
	overrides, err := ParseStateThresholds("")
	require.NoError(t, err)
	assert.Nil(t, overrides)
}

func TestParseStateThresholds_NormalizesWhitespaceAndCase(t *testing.T) {
	overrides, err := ParseStateThresholds(" nc = 0.96 : 0.86 , ")
	require.NoError(t, err)
	require.Len(t, overrides, 1)
	assert.Equal(t, matching.Thresholds{AutoUpdate: 0.96, Review: 0.86}, overrides["NC"])
}

func TestParseStateThresholds_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"missing equals", "NC0.95:0.85"},
		{"missing colon", "NC=0.95"},
		{"empty state", "=0.95:0.85"},
		{"non numeric", "NC=high:0.85"},
		{"auto below review", "NC=0.80:0.90"},
		{"out of range", "NC=1.5:0.85"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseStateThresholds(tc.raw)
			require.Error(t, err)
		})
	}
}
