package models

import (
	"time"
)

// IngestRun statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestRun is the durable record of one batch ingest for a state + year.
type IngestRun struct {
	ID           string     `json:"id" db:"id"`
	StateCode    string     `json:"state_code" db:"state_code"`
	Source       string     `json:"source" db:"source"`
	ElectionYear int        `json:"election_year" db:"election_year"`
	Status       string     `json:"status" db:"status"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`

	RawRecords     int      `json:"raw_records" db:"raw_records"`
	Consolidated   int      `json:"consolidated" db:"consolidated"`
	NewCandidates  int      `json:"new_candidates" db:"new_candidates"`
	Updated        int      `json:"updated" db:"updated"`
	ReviewQueued   int      `json:"review_queued" db:"review_queued"`
	Unchanged      int      `json:"unchanged" db:"unchanged"`
	RecordErrors   int      `json:"record_errors" db:"record_errors"`
	MergeErrors    int      `json:"merge_errors" db:"merge_errors"`
	ErrorNotes     []string `json:"error_notes,omitempty"`
	FailureMessage *string  `json:"failure_message,omitempty" db:"failure_message"`
}

// IngestRunListResponse is the response for listing ingest runs
type IngestRunListResponse struct {
	Items      []IngestRun `json:"items"`
	TotalCount int         `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}
