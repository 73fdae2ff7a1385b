package merging

import (
	"context"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/tracing"
	"github.com/pkg/errors"
)

type Config struct {
	// StatewideThreshold mirrors the consolidator's threshold so a union
	// that crosses it collapses the same way.
	StatewideThreshold int
}

// Merger computes merged candidates under a Policy. Merge is read-only on
// its inputs: it returns a fully merged copy which the caller persists in a
// single update, so a candidate is never half-merged.
type Merger struct {
	policy Policy
	config Config
	logger ectologger.Logger
}

func New(policy Policy, config Config, logger ectologger.Logger) *Merger {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &Merger{
		policy: policy,
		config: config,
		logger: logger,
	}
}

// Result is the outcome of one merge computation.
type Result struct {
	Merged models.Candidate
	// ChangedFields lists the fields the update actually touched. Empty
	// means the incoming candidate carried nothing new.
	ChangedFields []string
}

// Merge folds an incoming consolidated candidate into a stored candidate.
func (m *Merger) Merge(ctx context.Context, existing models.Candidate, incoming models.ConsolidatedCandidate, runID string) (Result, error) {
	_, span := tracing.StartSpan(ctx, "merging.Merger.Merge")
	defer span.End()

	if existing.ElectionYear != incoming.ElectionYear {
		return Result{}, errors.Errorf("election year mismatch: stored %d, incoming %d", existing.ElectionYear, incoming.ElectionYear)
	}

	merged := existing
	var changed []string

	mark := func(field string) {
		changed = append(changed, field)
	}

	stringFields := []struct {
		name     string
		existing **string
		incoming *string
	}{
		{"first_name", &merged.FirstName, incoming.FirstName},
		{"middle_name", &merged.MiddleName, incoming.MiddleName},
		{"last_name", &merged.LastName, incoming.LastName},
		{"name_suffix", &merged.NameSuffix, incoming.NameSuffix},
		{"party", &merged.Party, incoming.Party},
		{"district_number", &merged.DistrictNumber, incoming.DistrictNumber},
		{"phone_primary", &merged.Contact.PhonePrimary, incoming.Contact.PhonePrimary},
		{"phone_secondary", &merged.Contact.PhoneSecondary, incoming.Contact.PhoneSecondary},
		{"phone_business", &merged.Contact.PhoneBusiness, incoming.Contact.PhoneBusiness},
		{"email", &merged.Contact.Email, incoming.Contact.Email},
		{"website", &merged.Contact.Website, incoming.Contact.Website},
		{"mailing_street", &merged.Contact.MailingStreet, incoming.Contact.MailingStreet},
		{"mailing_city", &merged.Contact.MailingCity, incoming.Contact.MailingCity},
		{"mailing_state", &merged.Contact.MailingState, incoming.Contact.MailingState},
		{"mailing_zip", &merged.Contact.MailingZip, incoming.Contact.MailingZip},
		{"filing_type", &merged.Filing.FilingType, incoming.Filing.FilingType},
		{"filing_status", &merged.Filing.FilingStatus, incoming.Filing.FilingStatus},
		{"term_length", &merged.Filing.TermLength, incoming.Filing.TermLength},
		{"ballot_measure", &merged.Filing.BallotMeasure, incoming.Filing.BallotMeasure},
	}

	for _, f := range stringFields {
		if m.mergeString(f.name, f.existing, f.incoming) {
			mark(f.name)
		}
	}

	if m.mergeTime("election_date", &merged.ElectionDate, incoming.ElectionDate) {
		mark("election_date")
	}
	if m.mergeTime("filing_date", &merged.Filing.FilingDate, incoming.Filing.FilingDate) {
		mark("filing_date")
	}

	boolFields := []struct {
		name     string
		existing **bool
		incoming *bool
	}{
		{"is_unexpired", &merged.Filing.IsUnexpired, incoming.Filing.IsUnexpired},
		{"has_primary", &merged.Filing.HasPrimary, incoming.Filing.HasPrimary},
		{"is_partisan", &merged.Filing.IsPartisan, incoming.Filing.IsPartisan},
	}
	for _, f := range boolFields {
		if m.mergeBool(f.name, f.existing, f.incoming) {
			mark(f.name)
		}
	}

	if m.mergeJurisdictions(&merged, incoming.Jurisdictions) {
		mark("jurisdictions")
	}

	if len(changed) > 0 {
		merged.LastRunID = &runID
	}

	return Result{Merged: merged, ChangedFields: changed}, nil
}

func (m *Merger) mergeString(field string, existing **string, incoming *string) bool {
	if incoming == nil || *incoming == "" {
		return false
	}

	switch m.policy.strategyFor(field) {
	case StrategyLatestRun:
		if *existing == nil || **existing != *incoming {
			*existing = incoming
			return true
		}
	default: // StrategyFirstNonNull
		if *existing == nil || **existing == "" {
			*existing = incoming
			return true
		}
	}
	return false
}

func (m *Merger) mergeTime(field string, existing **time.Time, incoming *time.Time) bool {
	if incoming == nil {
		return false
	}

	switch m.policy.strategyFor(field) {
	case StrategyLatestRun:
		if *existing == nil || !(*existing).Equal(*incoming) {
			*existing = incoming
			return true
		}
	default:
		if *existing == nil {
			*existing = incoming
			return true
		}
	}
	return false
}

func (m *Merger) mergeBool(field string, existing **bool, incoming *bool) bool {
	if incoming == nil {
		return false
	}

	switch m.policy.strategyFor(field) {
	case StrategyLatestRun:
		if *existing == nil || **existing != *incoming {
			*existing = incoming
			return true
		}
	default:
		if *existing == nil {
			*existing = incoming
			return true
		}
	}
	return false
}

// mergeJurisdictions unions both sides and re-applies the statewide
// collapse. A side that already collapsed stays statewide: the marker
// absorbs any county list.
func (m *Merger) mergeJurisdictions(merged *models.Candidate, incoming []string) bool {
	if len(incoming) == 0 {
		return false
	}

	existing := merged.Jurisdictions

	statewide := contains(existing, models.JurisdictionStatewide) || contains(incoming, models.JurisdictionStatewide)

	set := make(map[string]bool)
	if !statewide {
		for _, j := range existing {
			set[j] = true
		}
		for _, j := range incoming {
			set[j] = true
		}
		if m.config.StatewideThreshold > 0 && len(set) >= m.config.StatewideThreshold {
			statewide = true
		}
	}

	var union []string
	if statewide {
		union = []string{models.JurisdictionStatewide}
	} else {
		union = make([]string, 0, len(set))
		for j := range set {
			union = append(union, j)
		}
		sort.Strings(union)
	}

	if equalStrings(existing, union) {
		return false
	}
	merged.Jurisdictions = union
	return true
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
