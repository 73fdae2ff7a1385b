package matching

import (
	"testing"

	"github.com/ballotline/registry/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func outcomeWithScore(score float64) Outcome {
	return Outcome{
		Matches: []ScoredMatch{
			{Candidate: &models.Candidate{ID: "c1"}, Score: score},
		},
	}
}

func TestClassify_Exact(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), nil)

	result := c.Classify("NC", Outcome{Exact: &models.Candidate{ID: "c1"}})
	assert.Equal(t, models.DispositionExact, result.Disposition)
	require.NotNil(t, result.Match)
	assert.Equal(t, "c1", result.Match.Candidate.ID)
	assert.Equal(t, 1.0, result.Match.Score)
}

func TestClassify_Bands(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), nil)

	tests := []struct {
		name     string
		score    float64
		expected models.Disposition
	}{
		{"above auto", 0.97, models.DispositionAutoUpdate},
		{"at auto boundary", 0.95, models.DispositionAutoUpdate},
		{"review band", 0.90, models.DispositionNeedsReview},
		{"at review boundary", 0.85, models.DispositionNeedsReview},
		{"below review", 0.84, models.DispositionNew},
		{"well below", 0.60, models.DispositionNew},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := c.Classify("NC", outcomeWithScore(tt.score))
			assert.Equal(t, tt.expected, result.Disposition)
		})
	}
}

func TestClassify_NoMatches(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), nil)

	result := c.Classify("NC", Outcome{})
	assert.Equal(t, models.DispositionNew, result.Disposition)
	assert.Nil(t, result.Match)
}

func TestClassify_AmbiguousTieForcesReview(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), nil)

	outcome := Outcome{
		Matches: []ScoredMatch{
			{Candidate: &models.Candidate{ID: "c1"}, Score: 0.97},
			{Candidate: &models.Candidate{ID: "c2"}, Score: 0.97},
		},
		Ambiguous: true,
	}

	result := c.Classify("NC", outcome)
	assert.Equal(t, models.DispositionNeedsReview, result.Disposition)
	assert.True(t, result.Ambiguous)
}

func TestClassify_StateOverrides(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), map[string]Thresholds{
		"DE": {AutoUpdate: 0.99, Review: 0.90},
	})

	// 0.97 auto-updates under defaults but needs review in Delaware
	assert.Equal(t, models.DispositionAutoUpdate, c.Classify("NC", outcomeWithScore(0.97)).Disposition)
	assert.Equal(t, models.DispositionNeedsReview, c.Classify("DE", outcomeWithScore(0.97)).Disposition)

	// 0.87 is review band under defaults but new in Delaware
	assert.Equal(t, models.DispositionNeedsReview, c.Classify("NC", outcomeWithScore(0.87)).Disposition)
	assert.Equal(t, models.DispositionNew, c.Classify("DE", outcomeWithScore(0.87)).Disposition)
}

func TestClassify_MonotoneInScore(t *testing.T) {
	c := NewClassifier(DefaultThresholds(), nil)

	rank := func(d models.Disposition) int {
		switch d {
		case models.DispositionNew:
			return 0
		case models.DispositionNeedsReview:
			return 1
		default:
			return 2
		}
	}

	prev := -1
	for score := 0.50; score <= 1.0; score += 0.01 {
		r := rank(c.Classify("NC", outcomeWithScore(score)).Disposition)
		assert.GreaterOrEqual(t, r, prev, "score %f", score)
		prev = r
	}
}
