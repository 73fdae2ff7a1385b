// Package merging applies the field merge policy when an incoming
// consolidated candidate updates a stored candidate.
package merging

// Strategy defines how one field merges during an update.
type Strategy string

const (
	// StrategyFirstNonNull keeps the existing value and only fills blanks.
	// Used for identity and contact fields, where the earliest observation
	// is the most trustworthy.
	StrategyFirstNonNull Strategy = "first_non_null"

	// StrategyUnionJurisdictions takes the sorted set union of both
	// jurisdiction lists, then re-collapses to the statewide marker.
	StrategyUnionJurisdictions Strategy = "union_jurisdictions"

	// StrategyLatestRun replaces the stored value whenever the incoming run
	// carries one. Used for filing metadata, which tracks the feed.
	StrategyLatestRun Strategy = "latest_run"
)

// Policy maps field names to merge strategies.
type Policy map[string]Strategy

// DefaultPolicy is the standard field policy:
// identity and contact fill blanks only, jurisdictions union,
// filing metadata follows the most recent run.
func DefaultPolicy() Policy {
	return Policy{
		"first_name":      StrategyFirstNonNull,
		"middle_name":     StrategyFirstNonNull,
		"last_name":       StrategyFirstNonNull,
		"name_suffix":     StrategyFirstNonNull,
		"party":           StrategyFirstNonNull,
		"district_number": StrategyFirstNonNull,
		"election_date":   StrategyFirstNonNull,

		"phone_primary":   StrategyFirstNonNull,
		"phone_secondary": StrategyFirstNonNull,
		"phone_business":  StrategyFirstNonNull,
		"email":           StrategyFirstNonNull,
		"website":         StrategyFirstNonNull,
		"mailing_street":  StrategyFirstNonNull,
		"mailing_city":    StrategyFirstNonNull,
		"mailing_state":   StrategyFirstNonNull,
		"mailing_zip":     StrategyFirstNonNull,

		"jurisdictions": StrategyUnionJurisdictions,

		"filing_date":    StrategyLatestRun,
		"filing_type":    StrategyLatestRun,
		"filing_status":  StrategyLatestRun,
		"is_unexpired":   StrategyLatestRun,
		"has_primary":    StrategyLatestRun,
		"is_partisan":    StrategyLatestRun,
		"term_length":    StrategyLatestRun,
		"ballot_measure": StrategyLatestRun,
	}
}

// strategyFor returns the strategy for a field, defaulting to fill-blanks
// so an unlisted field can never clobber stored data.
func (p Policy) strategyFor(field string) Strategy {
	if s, ok := p[field]; ok {
		return s
	}
	return StrategyFirstNonNull
}
