package models

import (
	"time"
)

// JurisdictionStatewide is the single marker stored in place of the full
// jurisdiction list once a contest spans enough counties to be statewide.
const JurisdictionStatewide = "STATEWIDE"

// ConsolidatedCandidate is one person+contest after intra-batch
// consolidation: the jurisdiction set is unioned and per-row fields are
// merged, but the candidate has not yet been matched against storage.
type ConsolidatedCandidate struct {
	IdentityKey    string      `json:"identity_key"`
	FullName       string      `json:"full_name"`
	FirstName      *string     `json:"first_name,omitempty"`
	MiddleName     *string     `json:"middle_name,omitempty"`
	LastName       *string     `json:"last_name,omitempty"`
	NameSuffix     *string     `json:"name_suffix,omitempty"`
	Party          *string     `json:"party,omitempty"`
	OfficeName     string      `json:"office_name"`
	OfficeLevel    OfficeLevel `json:"office_level"`
	DistrictNumber *string     `json:"district_number,omitempty"`
	ElectionYear   int         `json:"election_year"`
	ElectionDate   *time.Time  `json:"election_date,omitempty"`

	// Jurisdictions is sorted and deduplicated. It holds either county
	// labels or exactly the one statewide marker, never both.
	Jurisdictions []string `json:"jurisdictions"`

	Contact ContactInfo `json:"contact"`
	Filing  FilingInfo  `json:"filing"`

	// SourceRowIDs tracks which raw rows were folded into this candidate.
	SourceRowIDs []string `json:"source_row_ids,omitempty"`
	RecordCount  int      `json:"record_count"`

	// AnomalousSize flags groups larger than the expected jurisdiction
	// count for the state. The group is still processed.
	AnomalousSize bool `json:"anomalous_size,omitempty"`
}

// IsStatewide reports whether the jurisdiction set collapsed to the marker.
func (c *ConsolidatedCandidate) IsStatewide() bool {
	return len(c.Jurisdictions) == 1 && c.Jurisdictions[0] == JurisdictionStatewide
}

// Candidate is a stored candidate row. Reads are always scoped to
// state_code + election_year; cross-state matching is never performed.
type Candidate struct {
	ID             string      `json:"id" db:"id"`
	StateCode      string      `json:"state_code" db:"state_code"`
	IdentityKey    string      `json:"identity_key" db:"identity_key"`
	FullName       string      `json:"full_name" db:"full_name"`
	FirstName      *string     `json:"first_name,omitempty" db:"first_name"`
	MiddleName     *string     `json:"middle_name,omitempty" db:"middle_name"`
	LastName       *string     `json:"last_name,omitempty" db:"last_name"`
	NameSuffix     *string     `json:"name_suffix,omitempty" db:"name_suffix"`
	Party          *string     `json:"party,omitempty" db:"party"`
	OfficeName     string      `json:"office_name" db:"office_name"`
	OfficeLevel    OfficeLevel `json:"office_level" db:"office_level"`
	DistrictNumber *string     `json:"district_number,omitempty" db:"district_number"`
	ElectionYear   int         `json:"election_year" db:"election_year"`
	ElectionDate   *time.Time  `json:"election_date,omitempty" db:"election_date"`
	Jurisdictions  []string    `json:"jurisdictions" db:"jurisdictions"`
	Contact        ContactInfo `json:"contact" db:"contact"`
	Filing         FilingInfo  `json:"filing" db:"filing"`
	Status         string      `json:"status" db:"status"`
	IsWithdrawn    bool        `json:"is_withdrawn" db:"is_withdrawn"`
	LastRunID      *string     `json:"last_run_id,omitempty" db:"last_run_id"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// CandidateListResponse is the response for listing candidates
type CandidateListResponse struct {
	Items      []Candidate `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}
