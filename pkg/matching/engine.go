// Package matching scores consolidated candidates against the stored
// candidate universe for one state and election year.
package matching

import (
	"context"
	"math"
	"sort"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/normalizers"
	"github.com/ballotline/registry/pkg/tracing"
)

// Config contains the field weights and floor for the match engine.
// NameWeight must dominate: a name disagreement can never be outvoted by
// agreement on office and party alone.
type Config struct {
	NameWeight     float64
	OfficeWeight   float64
	PartyWeight    float64
	DistrictWeight float64

	// MinScore is the floor below which a pair is not considered a match.
	MinScore float64

	// PartyConflictPenalty multiplies the composite score when both sides
	// declare a party and they disagree.
	PartyConflictPenalty float64

	// MaxCandidates bounds how many scored matches are kept per candidate.
	MaxCandidates int
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		NameWeight:           0.6,
		OfficeWeight:         0.25,
		PartyWeight:          0.1,
		DistrictWeight:       0.05,
		MinScore:             0.5,
		PartyConflictPenalty: 0.5,
		MaxCandidates:        10,
	}
}

// Index is the in-memory existing-candidate index for one state + year.
// Candidates are bucketed by office level to bound the comparison set, with
// an exact lookup by identity key in front of the fuzzy pass.
type Index struct {
	byKey   map[string]*models.Candidate
	byLevel map[models.OfficeLevel][]*models.Candidate
	all     []*models.Candidate
}

// NewIndex builds an index over the given stored candidates.
func NewIndex(candidates []models.Candidate) *Index {
	ix := &Index{
		byKey:   make(map[string]*models.Candidate, len(candidates)),
		byLevel: make(map[models.OfficeLevel][]*models.Candidate),
	}
	for i := range candidates {
		c := &candidates[i]
		if c.IdentityKey != "" {
			ix.byKey[c.IdentityKey] = c
		}
		ix.byLevel[c.OfficeLevel] = append(ix.byLevel[c.OfficeLevel], c)
		ix.all = append(ix.all, c)
	}
	return ix
}

// Size returns the number of indexed candidates
func (ix *Index) Size() int {
	return len(ix.all)
}

// ByIdentityKey returns the stored candidate with the given key, or nil.
func (ix *Index) ByIdentityKey(key string) *models.Candidate {
	return ix.byKey[key]
}

// bucket returns the comparison set for an office level. An unknown level
// falls back to the full index rather than silently matching nothing.
func (ix *Index) bucket(level models.OfficeLevel) []*models.Candidate {
	if level == "" {
		return ix.all
	}
	if bucket, ok := ix.byLevel[level]; ok {
		return bucket
	}
	return ix.all
}

// ScoredMatch is one stored candidate scored against an incoming candidate.
type ScoredMatch struct {
	Candidate     *models.Candidate
	Score         float64
	NameScore     float64
	OfficeScore   float64
	PartyConflict bool
}

// Outcome is the full match result for one consolidated candidate.
type Outcome struct {
	// Exact is non-nil when the identity key hit a stored candidate.
	Exact *models.Candidate

	// Matches is sorted by score descending; Best is Matches[0] when any.
	Matches []ScoredMatch

	// Ambiguous is set when two distinct stored candidates tie at the top
	// score. Ambiguous outcomes are always routed to review.
	Ambiguous bool
}

// Best returns the top scored match, or nil when nothing cleared the floor.
func (o *Outcome) Best() *ScoredMatch {
	if len(o.Matches) == 0 {
		return nil
	}
	return &o.Matches[0]
}

// Matcher scores consolidated candidates against an Index. Matching is
// pure: the matcher never touches storage, so calls are safe to run
// concurrently over one batch.
type Matcher struct {
	index  *Index
	scorer *Scorer
	config Config
	logger ectologger.Logger
}

func NewMatcher(index *Index, config Config, logger ectologger.Logger) *Matcher {
	if config.MaxCandidates <= 0 {
		config.MaxCandidates = DefaultConfig().MaxCandidates
	}
	return &Matcher{
		index:  index,
		scorer: NewScorer(),
		config: config,
		logger: logger,
	}
}

// Match resolves one consolidated candidate against the index.
func (m *Matcher) Match(ctx context.Context, candidate *models.ConsolidatedCandidate) Outcome {
	_, span := tracing.StartSpan(ctx, "matching.Matcher.Match")
	defer span.End()

	var outcome Outcome

	if hit := m.index.ByIdentityKey(candidate.IdentityKey); hit != nil {
		outcome.Exact = hit
		return outcome
	}

	name := normalizers.NormalizeName(candidate.FullName)
	office := normalizers.NormalizeOffice(candidate.OfficeName)

	for _, stored := range m.index.bucket(candidate.OfficeLevel) {
		if scored, ok := m.score(name, office, candidate, stored); ok {
			outcome.Matches = append(outcome.Matches, scored)
		}
	}

	sort.SliceStable(outcome.Matches, func(i, j int) bool {
		return outcome.Matches[i].Score > outcome.Matches[j].Score
	})
	if len(outcome.Matches) > m.config.MaxCandidates {
		outcome.Matches = outcome.Matches[:m.config.MaxCandidates]
	}

	if len(outcome.Matches) >= 2 {
		top, next := outcome.Matches[0], outcome.Matches[1]
		if math.Abs(top.Score-next.Score) < 1e-9 && top.Candidate.ID != next.Candidate.ID {
			outcome.Ambiguous = true
		}
	}

	return outcome
}

func (m *Matcher) score(name, office string, candidate *models.ConsolidatedCandidate, stored *models.Candidate) (ScoredMatch, bool) {
	nameScore := m.scorer.NameSimilarity(name, normalizers.NormalizeName(stored.FullName))
	officeScore := m.scorer.NameSimilarity(office, normalizers.NormalizeOffice(stored.OfficeName))

	scores := map[string]float64{
		"name":   nameScore,
		"office": officeScore,
	}
	weights := map[string]float64{
		"name":   m.config.NameWeight,
		"office": m.config.OfficeWeight,
	}

	partyScore, partyConflict := agreement(strValue(candidate.Party), strValue(stored.Party), normalizers.NormalizeParty)
	scores["party"] = partyScore
	weights["party"] = m.config.PartyWeight

	districtScore, _ := agreement(strValue(candidate.DistrictNumber), strValue(stored.DistrictNumber), nil)
	scores["district"] = districtScore
	weights["district"] = m.config.DistrictWeight

	composite := m.scorer.WeightedScore(scores, weights)
	if partyConflict {
		composite *= m.config.PartyConflictPenalty
	}

	if composite < m.config.MinScore {
		return ScoredMatch{}, false
	}

	return ScoredMatch{
		Candidate:     stored,
		Score:         composite,
		NameScore:     nameScore,
		OfficeScore:   officeScore,
		PartyConflict: partyConflict,
	}, true
}

// agreement scores a categorical field pair: 1.0 when both sides agree,
// 0.0 with conflict=true when both are set and disagree, and a neutral 0.5
// when either side is unknown.
func agreement(a, b string, normalize func(string) string) (float64, bool) {
	if normalize != nil {
		a = normalize(a)
		b = normalize(b)
	}
	if a == "" || b == "" {
		return 0.5, false
	}
	if a == b {
		return 1.0, false
	}
	return 0.0, true
}

func strValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
