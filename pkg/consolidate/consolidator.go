// Package consolidate collapses intra-batch duplicate filings. State feeds
// report one row per county a contest spans, so a statewide candidate can
// arrive as 100 rows that are all the same candidacy.
package consolidate

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/identity"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/normalizers"
	"github.com/ballotline/registry/pkg/tracing"
)

// DefaultStatewideThreshold is the jurisdiction count at which a contest is
// treated as statewide and its jurisdiction list collapses to the marker.
const DefaultStatewideThreshold = 50

type Config struct {
	// StatewideThreshold overrides DefaultStatewideThreshold when > 0.
	StatewideThreshold int
	// ExpectedJurisdictions is the state's county count. Groups larger than
	// this are flagged anomalous but still processed. 0 disables the check.
	ExpectedJurisdictions int
}

type Consolidator struct {
	config Config
	logger ectologger.Logger
}

func New(config Config, logger ectologger.Logger) *Consolidator {
	if config.StatewideThreshold <= 0 {
		config.StatewideThreshold = DefaultStatewideThreshold
	}
	return &Consolidator{
		config: config,
		logger: logger,
	}
}

// Result is the outcome of consolidating one batch. Errors holds the rows
// rejected for data-quality reasons; the rest of the batch is unaffected.
type Result struct {
	Candidates []models.ConsolidatedCandidate
	Errors     []models.RecordError
}

type group struct {
	candidate     models.ConsolidatedCandidate
	jurisdictions map[string]bool
}

// Consolidate groups raw records by person + contest and folds each group
// into a single candidate. Output order is the first-seen order of groups,
// so the same batch always consolidates identically.
func (c *Consolidator) Consolidate(ctx context.Context, records []models.RawRecord) Result {
	ctx, span := tracing.StartSpan(ctx, "consolidate.Consolidate")
	defer span.End()

	groups := make(map[string]*group)
	var order []string
	var result Result

	for i, record := range records {
		if record.FullName == "" || normalizers.NormalizeName(record.FullName) == "" {
			result.Errors = append(result.Errors, models.RecordError{Index: i, Reason: "missing candidate name"})
			continue
		}
		if record.OfficeName == "" || normalizers.NormalizeOffice(record.OfficeName) == "" {
			result.Errors = append(result.Errors, models.RecordError{Index: i, Reason: "missing office name"})
			continue
		}
		if record.ElectionYear == 0 {
			result.Errors = append(result.Errors, models.RecordError{Index: i, Reason: "missing election year"})
			continue
		}

		party := ""
		if record.Party != nil {
			party = *record.Party
		}
		key := identity.GroupKey(record.FullName, record.OfficeName, party, record.ElectionDate)

		g, ok := groups[key]
		if !ok {
			g = c.newGroup(record)
			groups[key] = g
			order = append(order, key)
		}
		c.fold(g, record)
	}

	for _, key := range order {
		g := groups[key]
		candidate, err := c.finalize(g)
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"group_key": key,
			}).Warn("dropping unconsolidatable group")
			result.Errors = append(result.Errors, models.RecordError{Index: -1, Reason: err.Error()})
			continue
		}
		result.Candidates = append(result.Candidates, candidate)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"raw_records":  len(records),
		"consolidated": len(result.Candidates),
		"rejected":     len(result.Errors),
	}).Info("consolidated batch")

	return result
}

func (c *Consolidator) newGroup(record models.RawRecord) *group {
	level := record.OfficeLevel
	if level == "" {
		level = models.OfficeLevel(normalizers.ClassifyOfficeLevel(record.OfficeName))
	}

	district := record.DistrictNumber
	if district == nil {
		if d := normalizers.ExtractDistrict(record.OfficeName); d != "" {
			district = &d
		}
	}

	var party *string
	if record.Party != nil && *record.Party != "" {
		p := normalizers.NormalizeParty(*record.Party)
		party = &p
	}

	return &group{
		candidate: models.ConsolidatedCandidate{
			FullName:       record.FullName,
			FirstName:      record.FirstName,
			MiddleName:     record.MiddleName,
			LastName:       record.LastName,
			NameSuffix:     record.NameSuffix,
			Party:          party,
			OfficeName:     record.OfficeName,
			OfficeLevel:    level,
			DistrictNumber: district,
			ElectionYear:   record.ElectionYear,
			ElectionDate:   record.ElectionDate,
		},
		jurisdictions: make(map[string]bool),
	}
}

// fold merges one raw record into its group: jurisdiction into the set,
// everything else first-non-null in input order.
func (c *Consolidator) fold(g *group, record models.RawRecord) {
	g.candidate.RecordCount++
	if record.SourceRowID != "" {
		g.candidate.SourceRowIDs = append(g.candidate.SourceRowIDs, record.SourceRowID)
	}

	if record.Jurisdiction != nil {
		if j := normalizers.NormalizeJurisdiction(*record.Jurisdiction); j != "" {
			g.jurisdictions[j] = true
		}
	}

	g.candidate.FirstName = firstNonNil(g.candidate.FirstName, record.FirstName)
	g.candidate.MiddleName = firstNonNil(g.candidate.MiddleName, record.MiddleName)
	g.candidate.LastName = firstNonNil(g.candidate.LastName, record.LastName)
	g.candidate.NameSuffix = firstNonNil(g.candidate.NameSuffix, record.NameSuffix)
	g.candidate.ElectionDate = firstNonNilTime(g.candidate.ElectionDate, record.ElectionDate)

	foldContact(&g.candidate.Contact, record.Contact)
	foldFiling(&g.candidate.Filing, record.Filing)
}

func (c *Consolidator) finalize(g *group) (models.ConsolidatedCandidate, error) {
	candidate := g.candidate

	jurisdictions := make([]string, 0, len(g.jurisdictions))
	for j := range g.jurisdictions {
		jurisdictions = append(jurisdictions, j)
	}
	sort.Strings(jurisdictions)

	if len(jurisdictions) >= c.config.StatewideThreshold {
		jurisdictions = []string{models.JurisdictionStatewide}
	}
	candidate.Jurisdictions = jurisdictions

	if c.config.ExpectedJurisdictions > 0 && len(g.jurisdictions) > c.config.ExpectedJurisdictions {
		candidate.AnomalousSize = true
	}

	key, err := identity.Key(candidate.FullName, candidate.OfficeName, candidate.ElectionYear, candidate.ElectionDate)
	if err != nil {
		return candidate, fmt.Errorf("identity key for %q: %w", candidate.FullName, err)
	}
	candidate.IdentityKey = key

	return candidate, nil
}

func firstNonNilTime(current, incoming *time.Time) *time.Time {
	if current != nil {
		return current
	}
	return incoming
}

func firstNonNil(current, incoming *string) *string {
	if current != nil && *current != "" {
		return current
	}
	if incoming != nil && *incoming != "" {
		return incoming
	}
	return current
}

// foldContact normalizes incoming contact fields through the registry
// before first-non-null selection, so the same phone or zip formatted two
// ways dedupes instead of racing on input order.
func foldContact(current *models.ContactInfo, incoming models.ContactInfo) {
	current.PhonePrimary = firstNonNil(current.PhonePrimary, normalizedPtr(incoming.PhonePrimary, "nphone"))
	current.PhoneSecondary = firstNonNil(current.PhoneSecondary, normalizedPtr(incoming.PhoneSecondary, "nphone"))
	current.PhoneBusiness = firstNonNil(current.PhoneBusiness, normalizedPtr(incoming.PhoneBusiness, "nphone"))
	current.Email = firstNonNil(current.Email, normalizedPtr(incoming.Email, "nemail"))
	current.Website = firstNonNil(current.Website, normalizedPtr(incoming.Website, "trim"))
	current.MailingStreet = firstNonNil(current.MailingStreet, normalizedPtr(incoming.MailingStreet, "naddress"))
	current.MailingCity = firstNonNil(current.MailingCity, normalizedPtr(incoming.MailingCity, "trim"))
	current.MailingState = firstNonNil(current.MailingState, normalizedPtr(incoming.MailingState, "trim", "uppercase"))
	current.MailingZip = firstNonNil(current.MailingZip, normalizedPtr(incoming.MailingZip, "nzip"))
}

// normalizedPtr runs a registry chain over an optional field. Values that
// normalize to empty count as absent.
func normalizedPtr(v *string, chain ...string) *string {
	if v == nil {
		return nil
	}
	n := normalizers.ApplyChain(*v, chain...)
	if n == "" {
		return nil
	}
	return &n
}

func foldFiling(current *models.FilingInfo, incoming models.FilingInfo) {
	current.FilingDate = firstNonNilTime(current.FilingDate, incoming.FilingDate)
	current.FilingType = firstNonNil(current.FilingType, incoming.FilingType)
	current.FilingStatus = firstNonNil(current.FilingStatus, incoming.FilingStatus)
	current.TermLength = firstNonNil(current.TermLength, incoming.TermLength)
	current.BallotMeasure = firstNonNil(current.BallotMeasure, incoming.BallotMeasure)
	if current.IsUnexpired == nil {
		current.IsUnexpired = incoming.IsUnexpired
	}
	if current.HasPrimary == nil {
		current.HasPrimary = incoming.HasPrimary
	}
	if current.IsPartisan == nil {
		current.IsPartisan = incoming.IsPartisan
	}
}
