package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJaroWinkler(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.JaroWinkler("martha", "martha"))
	assert.InDelta(t, 0.961, s.JaroWinkler("martha", "marhta"), 0.01)
	assert.Equal(t, 0.0, s.JaroWinkler("abc", "xyz"))
}

func TestLevenshtein(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("kitten", "kitten"))
	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 5, s.LevenshteinDistance("", "hello"))

	assert.Equal(t, 1.0, s.Levenshtein("", ""))
	assert.InDelta(t, 1.0-3.0/7.0, s.Levenshtein("kitten", "sitting"), 1e-9)
}

func TestNameSimilarity(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.NameSimilarity("john smith", "john smith"))

	// word order doesn't matter
	assert.Equal(t, 1.0, s.NameSimilarity("smith john", "john smith"))

	// near-identical names score high
	assert.Greater(t, s.NameSimilarity("john smith", "jon smith"), 0.9)

	// unrelated names score low
	assert.Less(t, s.NameSimilarity("john smith", "maria garcia"), 0.6)

	// empty input never matches
	assert.Equal(t, 0.0, s.NameSimilarity("", "john smith"))
}

func TestSoundex(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, "R163", s.Soundex("Robert"))
	assert.Equal(t, "R163", s.Soundex("Rupert"))
	assert.Equal(t, 1.0, s.SoundexMatch("Robert", "Rupert"))
	assert.Equal(t, 0.0, s.SoundexMatch("Robert", "Smith"))
}

func TestWeightedScore(t *testing.T) {
	s := NewScorer()

	score := s.WeightedScore(
		map[string]float64{"name": 1.0, "office": 0.5},
		map[string]float64{"name": 0.6, "office": 0.4},
	)
	assert.InDelta(t, 0.8, score, 1e-9)

	assert.Equal(t, 0.0, s.WeightedScore(nil, nil))
}
