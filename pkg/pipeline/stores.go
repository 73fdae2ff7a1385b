package pipeline

import (
	"context"

	"github.com/ballotline/registry/pkg/models"
)

// CandidateStore is the storage surface the pipeline needs for candidates.
// Reads are scoped to one state + election year; the pipeline never sees
// another state's candidates.
type CandidateStore interface {
	ListByStateYear(ctx context.Context, stateCode string, electionYear int) ([]models.Candidate, error)
	GetByID(ctx context.Context, id string) (*models.Candidate, error)
	Create(ctx context.Context, candidate *models.Candidate) error
	Update(ctx context.Context, candidate *models.Candidate) error
}

// DecisionStore persists match decisions.
type DecisionStore interface {
	CreateBatch(ctx context.Context, decisions []*models.MatchDecision) error
	Update(ctx context.Context, decision *models.MatchDecision) error
}

// RunStore persists ingest run records.
type RunStore interface {
	Create(ctx context.Context, run *models.IngestRun) error
	Finalize(ctx context.Context, run *models.IngestRun) error
}

// AuditEmitter publishes audit events. Emission failures are logged and
// counted but never fail a run.
type AuditEmitter interface {
	EmitCandidateCreated(ctx context.Context, candidate *models.Candidate, runID string) error
	EmitCandidateUpdated(ctx context.Context, candidate *models.Candidate, runID string, changedFields []string) error
	EmitReviewQueued(ctx context.Context, decision *models.MatchDecision) error
	EmitRunCompleted(ctx context.Context, run *models.IngestRun) error
}
