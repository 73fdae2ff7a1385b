package models

import (
	"time"
)

// Disposition classifies the outcome of matching a consolidated candidate
// against stored candidates.
type Disposition string

const (
	DispositionExact       Disposition = "exact"        // identity key hit
	DispositionAutoUpdate  Disposition = "auto_update"  // score at or above auto threshold
	DispositionNeedsReview Disposition = "needs_review" // score in the review band, or ambiguous
	DispositionNew         Disposition = "new"          // no candidate above the review threshold
)

// MatchDecision review statuses
const (
	DecisionStatusPending  = "pending"
	DecisionStatusApproved = "approved"
	DecisionStatusRejected = "rejected"
	DecisionStatusApplied  = "applied"
)

// MatchDecision records how one consolidated candidate was resolved during
// an ingest run. Decisions with disposition needs_review stay pending until
// a reviewer approves or rejects them.
type MatchDecision struct {
	ID                 string      `json:"id" db:"id"`
	StateCode          string      `json:"state_code" db:"state_code"`
	RunID              string      `json:"run_id" db:"run_id"`
	IdentityKey        string      `json:"identity_key" db:"identity_key"`
	Disposition        Disposition `json:"disposition" db:"disposition"`
	MatchedCandidateID *string     `json:"matched_candidate_id,omitempty" db:"matched_candidate_id"`
	Score              float64     `json:"score" db:"score"`
	NameScore          float64     `json:"name_score" db:"name_score"`
	OfficeScore        float64     `json:"office_score" db:"office_score"`
	PartyConflict      bool        `json:"party_conflict" db:"party_conflict"`
	Ambiguous          bool        `json:"ambiguous" db:"ambiguous"`

	// Incoming is the consolidated candidate snapshot carried on a pending
	// decision so a reviewer can apply it later without re-running the batch.
	Incoming ConsolidatedCandidate `json:"incoming"`

	Status     string     `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy *string    `json:"resolved_by,omitempty" db:"resolved_by"`
}

// ResolveDecisionRequest is the request to approve or reject a pending decision
type ResolveDecisionRequest struct {
	ResolvedBy string `json:"resolved_by" validate:"required"`
	Note       string `json:"note,omitempty"`
}

// MatchDecisionListResponse is the response for listing match decisions
type MatchDecisionListResponse struct {
	Items      []MatchDecision `json:"items"`
	TotalCount int             `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}
