package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	date := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)

	key, err := Key("John Smith", "US Senate", 2024, &date)
	require.NoError(t, err)
	assert.Equal(t, "john_smith_us_senate_2024_20241105", key)
}

func TestKey_NoDate(t *testing.T) {
	key, err := Key("John Smith", "US Senate", 2024, nil)
	require.NoError(t, err)
	assert.Equal(t, "john_smith_us_senate_2024", key)
}

func TestKey_Deterministic(t *testing.T) {
	date := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)

	// Variants that normalize identically produce the same key
	a, err := Key("John Smith Jr.", "State Senate District 12", 2024, &date)
	require.NoError(t, err)
	b, err := Key("john  SMITH", "State  Senate District 12", 2024, &date)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestKey_MissingFields(t *testing.T) {
	_, err := Key("", "US Senate", 2024, nil)
	assert.Error(t, err)

	_, err = Key("John Smith", "", 2024, nil)
	assert.Error(t, err)

	// Punctuation-only name normalizes to empty
	_, err = Key("...", "US Senate", 2024, nil)
	assert.Error(t, err)
}

func TestGroupKey_PartySeparates(t *testing.T) {
	date := time.Date(2024, 11, 5, 0, 0, 0, 0, time.UTC)

	dem := GroupKey("John Smith", "US Senate", "DEM", &date)
	rep := GroupKey("John Smith", "US Senate", "REP", &date)
	assert.NotEqual(t, dem, rep)

	// Code and canonical label land in the same group
	label := GroupKey("John Smith", "US Senate", "Democratic", &date)
	assert.Equal(t, dem, label)
}
