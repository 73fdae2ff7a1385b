package models

import (
	"time"
)

// OfficeLevel classifies the level of government an office belongs to
type OfficeLevel string

const (
	OfficeLevelFederal  OfficeLevel = "federal"
	OfficeLevelState    OfficeLevel = "state"
	OfficeLevelJudicial OfficeLevel = "judicial"
	OfficeLevelLocal    OfficeLevel = "local"
)

// CandidateStatus constants
const (
	CandidateStatusActive       = "active"
	CandidateStatusPending      = "pending"
	CandidateStatusWithdrawn    = "withdrawn"
	CandidateStatusDisqualified = "disqualified"
)

// ContactInfo holds candidate contact fields carried from filings
type ContactInfo struct {
	PhonePrimary   *string `json:"phone_primary,omitempty" db:"phone_primary"`
	PhoneSecondary *string `json:"phone_secondary,omitempty" db:"phone_secondary"`
	PhoneBusiness  *string `json:"phone_business,omitempty" db:"phone_business"`
	Email          *string `json:"email,omitempty" db:"email"`
	Website        *string `json:"website,omitempty" db:"website"`
	MailingStreet  *string `json:"mailing_street,omitempty" db:"mailing_street"`
	MailingCity    *string `json:"mailing_city,omitempty" db:"mailing_city"`
	MailingState   *string `json:"mailing_state,omitempty" db:"mailing_state"`
	MailingZip     *string `json:"mailing_zip,omitempty" db:"mailing_zip"`
}

// FilingInfo holds per-run filing metadata. Unlike identity and contact
// fields, filing metadata always reflects the most recent ingest run.
type FilingInfo struct {
	FilingDate    *time.Time `json:"filing_date,omitempty" db:"filing_date"`
	FilingType    *string    `json:"filing_type,omitempty" db:"filing_type"`
	FilingStatus  *string    `json:"filing_status,omitempty" db:"filing_status"`
	IsUnexpired   *bool      `json:"is_unexpired,omitempty" db:"is_unexpired"`
	HasPrimary    *bool      `json:"has_primary,omitempty" db:"has_primary"`
	IsPartisan    *bool      `json:"is_partisan,omitempty" db:"is_partisan"`
	TermLength    *string    `json:"term_length,omitempty" db:"term_length"`
	BallotMeasure *string    `json:"ballot_measure,omitempty" db:"ballot_measure"`
}

// RawRecord is one normalized candidate filing row as produced by a state
// transformer. A single person commonly appears in many raw records, one
// per county jurisdiction the contest spans.
type RawRecord struct {
	FullName       string      `json:"full_name"`
	FirstName      *string     `json:"first_name,omitempty"`
	MiddleName     *string     `json:"middle_name,omitempty"`
	LastName       *string     `json:"last_name,omitempty"`
	NameSuffix     *string     `json:"name_suffix,omitempty"`
	Party          *string     `json:"party,omitempty"`
	OfficeName     string      `json:"office_name"`
	OfficeLevel    OfficeLevel `json:"office_level,omitempty"`
	DistrictNumber *string     `json:"district_number,omitempty"`
	Jurisdiction   *string     `json:"jurisdiction,omitempty"`
	ElectionYear   int         `json:"election_year"`
	ElectionDate   *time.Time  `json:"election_date,omitempty"`
	Contact        ContactInfo `json:"contact"`
	Filing         FilingInfo  `json:"filing"`
	SourceRowID    string      `json:"source_row_id,omitempty"`
}

// RecordError reports a raw record rejected for a data-quality reason.
// The record is skipped and counted; the batch continues.
type RecordError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}
