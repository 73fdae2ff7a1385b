package pipeline

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/tracing"
	"github.com/pkg/errors"
)

// ApplyResolution resolves a pending match decision. Approval merges the
// incoming snapshot into the matched candidate; rejection records the
// incoming snapshot as a brand new candidate. Either way the decision
// leaves the review queue.
func (r *Runner) ApplyResolution(ctx context.Context, decision *models.MatchDecision, approved bool, resolvedBy string) (*models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Runner.ApplyResolution")
	defer span.End()

	if decision.Status != models.DecisionStatusPending {
		return nil, errors.Errorf("decision %s is %s, not pending", decision.ID, decision.Status)
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"decision_id":  decision.ID,
		"state_code":   decision.StateCode,
		"identity_key": decision.IdentityKey,
		"approved":     approved,
	})

	var resolved *models.Candidate
	var err error
	if approved {
		resolved, err = r.approveDecision(ctx, decision, log)
	} else {
		resolved, err = r.rejectDecision(ctx, decision, log)
	}
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	decision.ResolvedAt = &now
	decision.ResolvedBy = &resolvedBy
	if err := r.decisions.Update(ctx, decision); err != nil {
		return nil, errors.Wrap(err, "failed to persist resolved decision")
	}

	log.Info("Match decision resolved")
	return resolved, nil
}

func (r *Runner) approveDecision(ctx context.Context, decision *models.MatchDecision, log ectologger.Logger) (*models.Candidate, error) {
	if decision.MatchedCandidateID == nil {
		return nil, errors.Errorf("decision %s has no matched candidate to approve", decision.ID)
	}

	existing, err := r.candidates.GetByID(ctx, *decision.MatchedCandidateID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load matched candidate")
	}

	result, err := r.merger.Merge(ctx, *existing, decision.Incoming, decision.RunID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to merge approved decision")
	}

	if len(result.ChangedFields) > 0 {
		if err := r.candidates.Update(ctx, &result.Merged); err != nil {
			return nil, errors.Wrap(err, "failed to persist merged candidate")
		}
		if err := r.emitter.EmitCandidateUpdated(ctx, &result.Merged, decision.RunID, result.ChangedFields); err != nil {
			log.WithError(err).Warn("Failed to emit candidate updated event")
		}
	}

	decision.Status = models.DecisionStatusApproved
	return &result.Merged, nil
}

func (r *Runner) rejectDecision(ctx context.Context, decision *models.MatchDecision, log ectologger.Logger) (*models.Candidate, error) {
	run := &models.IngestRun{ID: decision.RunID, StateCode: decision.StateCode}
	created := r.newCandidate(run, &decision.Incoming)

	if err := r.candidates.Create(ctx, created); err != nil {
		return nil, errors.Wrap(err, "failed to create candidate from rejected decision")
	}
	if err := r.emitter.EmitCandidateCreated(ctx, created, decision.RunID); err != nil {
		log.WithError(err).Warn("Failed to emit candidate created event")
	}

	decision.Status = models.DecisionStatusRejected
	return created, nil
}
