package matching

import (
	"github.com/ballotline/registry/pkg/models"
)

// Thresholds are the score cut lines for classifying a match outcome.
type Thresholds struct {
	// AutoUpdate is the score at or above which a match merges without review.
	AutoUpdate float64
	// Review is the score at or above which a match is queued for review.
	Review float64
}

// DefaultThresholds returns the standard cut lines.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoUpdate: 0.95,
		Review:     0.85,
	}
}

// Classification is the disposition assigned to one match outcome.
type Classification struct {
	Disposition models.Disposition
	// Match is the stored candidate the disposition applies to. Nil for new.
	Match *ScoredMatch
	// Ambiguous marks a needs_review caused by a top-score tie rather than
	// a mid-band score.
	Ambiguous bool
}

// Classifier turns match outcomes into dispositions. Thresholds can be
// overridden per state; some feeds are dirty enough to warrant wider
// review bands.
type Classifier struct {
	defaults  Thresholds
	overrides map[string]Thresholds
}

func NewClassifier(defaults Thresholds, overrides map[string]Thresholds) *Classifier {
	if defaults.AutoUpdate == 0 {
		defaults = DefaultThresholds()
	}
	return &Classifier{
		defaults:  defaults,
		overrides: overrides,
	}
}

// ThresholdsFor returns the cut lines in effect for a state.
func (c *Classifier) ThresholdsFor(stateCode string) Thresholds {
	if t, ok := c.overrides[stateCode]; ok {
		return t
	}
	return c.defaults
}

// Classify assigns a disposition to one match outcome.
func (c *Classifier) Classify(stateCode string, outcome Outcome) Classification {
	if outcome.Exact != nil {
		return Classification{
			Disposition: models.DispositionExact,
			Match:       &ScoredMatch{Candidate: outcome.Exact, Score: 1.0, NameScore: 1.0, OfficeScore: 1.0},
		}
	}

	best := outcome.Best()
	if best == nil {
		return Classification{Disposition: models.DispositionNew}
	}

	t := c.ThresholdsFor(stateCode)

	if best.Score < t.Review {
		return Classification{Disposition: models.DispositionNew}
	}

	// A top-score tie between distinct stored candidates is never safe to
	// auto-apply, no matter how high the score.
	if outcome.Ambiguous {
		return Classification{
			Disposition: models.DispositionNeedsReview,
			Match:       best,
			Ambiguous:   true,
		}
	}

	if best.Score >= t.AutoUpdate {
		return Classification{Disposition: models.DispositionAutoUpdate, Match: best}
	}

	return Classification{Disposition: models.DispositionNeedsReview, Match: best}
}
