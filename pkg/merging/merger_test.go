package merging

import (
	"context"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMerger() *Merger {
	return New(DefaultPolicy(), Config{StatewideThreshold: 50}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))
}

func strPtr(s string) *string  { return &s }
func boolPtr(b bool) *bool     { return &b }
func timePtr(t time.Time) *time.Time { return &t }

func baseExisting() models.Candidate {
	return models.Candidate{
		ID:            "c1",
		StateCode:     "NC",
		IdentityKey:   "jane_doe_governor_2024",
		FullName:      "Jane Doe",
		OfficeName:    "Governor",
		OfficeLevel:   models.OfficeLevelState,
		Party:         strPtr("Democratic"),
		ElectionYear:  2024,
		Jurisdictions: []string{"DURHAM", "WAKE"},
	}
}

func baseIncoming() models.ConsolidatedCandidate {
	return models.ConsolidatedCandidate{
		IdentityKey:  "jane_doe_governor_2024",
		FullName:     "Jane Doe",
		OfficeName:   "Governor",
		OfficeLevel:  models.OfficeLevelState,
		ElectionYear: 2024,
	}
}

func TestMerge_FirstNonNullFillsBlanksOnly(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	existing.Contact.Email = strPtr("jane@old.example.com")

	incoming := baseIncoming()
	incoming.Party = strPtr("Republican") // conflicting value must not overwrite
	incoming.Contact.Email = strPtr("jane@new.example.com")
	incoming.Contact.PhonePrimary = strPtr("919-555-0100")
	incoming.FirstName = strPtr("Jane")

	result, err := m.Merge(context.Background(), existing, incoming, "run-1")
	require.NoError(t, err)

	// existing non-null values kept
	assert.Equal(t, "Democratic", *result.Merged.Party)
	assert.Equal(t, "jane@old.example.com", *result.Merged.Contact.Email)

	// blanks filled
	assert.Equal(t, "919-555-0100", *result.Merged.Contact.PhonePrimary)
	assert.Equal(t, "Jane", *result.Merged.FirstName)

	assert.Contains(t, result.ChangedFields, "phone_primary")
	assert.Contains(t, result.ChangedFields, "first_name")
	assert.NotContains(t, result.ChangedFields, "party")
	assert.NotContains(t, result.ChangedFields, "email")
}

func TestMerge_FilingFollowsLatestRun(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	existing.Filing.FilingStatus = strPtr("pending")
	existing.Filing.HasPrimary = boolPtr(false)

	incoming := baseIncoming()
	incoming.Filing.FilingStatus = strPtr("certified")
	incoming.Filing.HasPrimary = boolPtr(true)
	incoming.Filing.FilingDate = timePtr(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	result, err := m.Merge(context.Background(), existing, incoming, "run-2")
	require.NoError(t, err)

	assert.Equal(t, "certified", *result.Merged.Filing.FilingStatus)
	assert.True(t, *result.Merged.Filing.HasPrimary)
	require.NotNil(t, result.Merged.Filing.FilingDate)
	assert.Contains(t, result.ChangedFields, "filing_status")
	assert.Contains(t, result.ChangedFields, "has_primary")
	assert.Contains(t, result.ChangedFields, "filing_date")
}

func TestMerge_JurisdictionUnion(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting() // DURHAM, WAKE
	incoming := baseIncoming()
	incoming.Jurisdictions = []string{"ORANGE", "WAKE"}

	result, err := m.Merge(context.Background(), existing, incoming, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"DURHAM", "ORANGE", "WAKE"}, result.Merged.Jurisdictions)
	assert.Contains(t, result.ChangedFields, "jurisdictions")
}

func TestMerge_JurisdictionUnionCollapsesAtThreshold(t *testing.T) {
	m := New(DefaultPolicy(), Config{StatewideThreshold: 4}, ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {}))

	existing := baseExisting() // 2 counties
	incoming := baseIncoming()
	incoming.Jurisdictions = []string{"ORANGE", "CHATHAM"}

	result, err := m.Merge(context.Background(), existing, incoming, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{models.JurisdictionStatewide}, result.Merged.Jurisdictions)
}

func TestMerge_StatewideMarkerAbsorbsCounties(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	existing.Jurisdictions = []string{models.JurisdictionStatewide}

	incoming := baseIncoming()
	incoming.Jurisdictions = []string{"WAKE"}

	result, err := m.Merge(context.Background(), existing, incoming, "run-1")
	require.NoError(t, err)
	assert.Equal(t, []string{models.JurisdictionStatewide}, result.Merged.Jurisdictions)
	assert.NotContains(t, result.ChangedFields, "jurisdictions")
}

func TestMerge_NoChanges(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	incoming := baseIncoming()
	incoming.Jurisdictions = []string{"DURHAM", "WAKE"}

	result, err := m.Merge(context.Background(), existing, incoming, "run-1")
	require.NoError(t, err)
	assert.Empty(t, result.ChangedFields)
	assert.Nil(t, result.Merged.LastRunID)
	assert.Equal(t, existing, result.Merged)
}

func TestMerge_YearMismatchFails(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	incoming := baseIncoming()
	incoming.ElectionYear = 2026

	_, err := m.Merge(context.Background(), existing, incoming, "run-1")
	assert.Error(t, err)
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	snapshot := baseExisting()

	incoming := baseIncoming()
	incoming.Contact.PhonePrimary = strPtr("919-555-0100")
	incoming.Jurisdictions = []string{"ORANGE"}

	_, err := m.Merge(context.Background(), existing, incoming, "run-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot, existing)
}

func TestMerge_SetsLastRunID(t *testing.T) {
	m := newTestMerger()

	existing := baseExisting()
	incoming := baseIncoming()
	incoming.Contact.Email = strPtr("jane@example.com")

	result, err := m.Merge(context.Background(), existing, incoming, "run-7")
	require.NoError(t, err)
	require.NotNil(t, result.Merged.LastRunID)
	assert.Equal(t, "run-7", *result.Merged.LastRunID)
}
