// Package pipeline orchestrates one ingest run: consolidate, match,
// classify, apply, account.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/consolidate"
	"github.com/ballotline/registry/pkg/matching"
	"github.com/ballotline/registry/pkg/merging"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/tracing"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type Config struct {
	// Workers bounds the concurrent match/classify goroutines per run.
	Workers int
}

// Runner executes ingest runs. Matching runs concurrently; application is
// sequential in consolidation order so runs are deterministic and each
// candidate update stays atomic.
type Runner struct {
	consolidator *consolidate.Consolidator
	matchConfig  matching.Config
	classifier   *matching.Classifier
	merger       *merging.Merger
	candidates   CandidateStore
	decisions    DecisionStore
	runs         RunStore
	emitter      AuditEmitter
	config       Config
	logger       ectologger.Logger
}

func NewRunner(
	consolidator *consolidate.Consolidator,
	matchConfig matching.Config,
	classifier *matching.Classifier,
	merger *merging.Merger,
	candidates CandidateStore,
	decisions DecisionStore,
	runs RunStore,
	emitter AuditEmitter,
	config Config,
	logger ectologger.Logger,
) *Runner {
	if config.Workers <= 0 {
		config.Workers = 4
	}
	return &Runner{
		consolidator: consolidator,
		matchConfig:  matchConfig,
		classifier:   classifier,
		merger:       merger,
		candidates:   candidates,
		decisions:    decisions,
		runs:         runs,
		emitter:      emitter,
		config:       config,
		logger:       logger,
	}
}

// Run ingests one normalized batch for a state + year.
func (r *Runner) Run(ctx context.Context, stateCode string, electionYear int, source string, records []models.RawRecord) (*models.IngestRun, error) {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Runner.Run")
	defer span.End()

	run := &models.IngestRun{
		ID:           uuid.New().String(),
		StateCode:    stateCode,
		Source:       source,
		ElectionYear: electionYear,
		Status:       models.RunStatusRunning,
		StartedAt:    time.Now().UTC(),
	}
	if err := r.runs.Create(ctx, run); err != nil {
		return nil, errors.Wrap(err, "failed to create ingest run")
	}

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"run_id":        run.ID,
		"state_code":    stateCode,
		"election_year": electionYear,
	})
	log.WithFields(map[string]any{"raw_records": len(records)}).Info("Starting ingest run")

	stats := Stats{}.WithRawRecords(len(records))

	consolidation := r.consolidator.Consolidate(ctx, records)
	stats = stats.WithConsolidated(len(consolidation.Candidates))
	for _, recerr := range consolidation.Errors {
		stats = stats.AddRecordError(fmt.Sprintf("record %d: %s", recerr.Index, recerr.Reason))
	}

	// The index load is the one hard dependency. Matching against a
	// partial or missing index would misclassify the whole batch as new,
	// so a storage error aborts the run.
	existing, err := r.candidates.ListByStateYear(ctx, stateCode, electionYear)
	if err != nil {
		return r.failRun(ctx, run, stats, errors.Wrap(err, "existing-candidate index unavailable"))
	}

	matcher := matching.NewMatcher(matching.NewIndex(existing), r.matchConfig, r.logger)
	classifications := r.classifyAll(ctx, stateCode, matcher, consolidation.Candidates)

	var decisions []*models.MatchDecision
	for i := range consolidation.Candidates {
		candidate := &consolidation.Candidates[i]
		decision := r.buildDecision(run, candidate, classifications[i])

		stats = r.apply(ctx, run, candidate, classifications[i], decision, stats, log)
		decisions = append(decisions, decision)
	}

	if len(decisions) > 0 {
		if err := r.decisions.CreateBatch(ctx, decisions); err != nil {
			// Decisions are the audit trail, not the source of truth, so
			// the run still completes.
			log.WithError(err).Error("Failed to persist match decisions")
			stats = stats.AddMergeError("failed to persist match decisions")
		}
	}

	now := time.Now().UTC()
	run.Status = models.RunStatusCompleted
	run.FinishedAt = &now
	stats.ApplyTo(run)

	if err := r.runs.Finalize(ctx, run); err != nil {
		return nil, errors.Wrap(err, "failed to finalize ingest run")
	}

	if err := r.emitter.EmitRunCompleted(ctx, run); err != nil {
		log.WithError(err).Warn("Failed to emit run completed event")
	}

	log.WithFields(map[string]any{
		"consolidated":  run.Consolidated,
		"new":           run.NewCandidates,
		"updated":       run.Updated,
		"review_queued": run.ReviewQueued,
		"unchanged":     run.Unchanged,
		"record_errors": run.RecordErrors,
		"merge_errors":  run.MergeErrors,
	}).Info("Ingest run completed")

	return run, nil
}

// classifyAll scores and classifies candidates with a bounded worker pool.
// Results land in a slice indexed by input position, so concurrency never
// reorders the batch.
func (r *Runner) classifyAll(ctx context.Context, stateCode string, matcher *matching.Matcher, candidates []models.ConsolidatedCandidate) []matching.Classification {
	ctx, span := tracing.StartSpan(ctx, "pipeline.Runner.classifyAll")
	defer span.End()

	results := make([]matching.Classification, len(candidates))
	if len(candidates) == 0 {
		return results
	}

	workers := r.config.Workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	indexes := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				outcome := matcher.Match(ctx, &candidates[i])
				results[i] = r.classifier.Classify(stateCode, outcome)
			}
		}()
	}
	for i := range candidates {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	return results
}

// apply executes one classification. Errors are isolated: a failed
// candidate is counted and the rest of the batch continues.
func (r *Runner) apply(ctx context.Context, run *models.IngestRun, candidate *models.ConsolidatedCandidate, cls matching.Classification, decision *models.MatchDecision, stats Stats, log ectologger.Logger) Stats {
	switch cls.Disposition {
	case models.DispositionExact, models.DispositionAutoUpdate:
		result, err := r.merger.Merge(ctx, *cls.Match.Candidate, *candidate, run.ID)
		if err != nil {
			log.WithError(err).WithFields(map[string]any{"identity_key": candidate.IdentityKey}).Error("Merge failed")
			decision.Status = models.DecisionStatusRejected
			return stats.AddMergeError(fmt.Sprintf("%s: %s", candidate.IdentityKey, err.Error()))
		}

		decision.Status = models.DecisionStatusApplied
		if len(result.ChangedFields) == 0 {
			return stats.AddUnchanged()
		}

		if err := r.candidates.Update(ctx, &result.Merged); err != nil {
			log.WithError(err).WithFields(map[string]any{"candidate_id": result.Merged.ID}).Error("Failed to persist merged candidate")
			decision.Status = models.DecisionStatusRejected
			return stats.AddMergeError(fmt.Sprintf("%s: update failed", candidate.IdentityKey))
		}

		if err := r.emitter.EmitCandidateUpdated(ctx, &result.Merged, run.ID, result.ChangedFields); err != nil {
			log.WithError(err).Warn("Failed to emit candidate updated event")
		}
		return stats.AddUpdated()

	case models.DispositionNeedsReview:
		decision.Status = models.DecisionStatusPending
		if err := r.emitter.EmitReviewQueued(ctx, decision); err != nil {
			log.WithError(err).Warn("Failed to emit review queued event")
		}
		return stats.AddReviewQueued()

	default: // DispositionNew
		created := r.newCandidate(run, candidate)
		if err := r.candidates.Create(ctx, created); err != nil {
			log.WithError(err).WithFields(map[string]any{"identity_key": candidate.IdentityKey}).Error("Failed to create candidate")
			decision.Status = models.DecisionStatusRejected
			return stats.AddMergeError(fmt.Sprintf("%s: insert failed", candidate.IdentityKey))
		}
		decision.Status = models.DecisionStatusApplied
		decision.MatchedCandidateID = &created.ID

		if err := r.emitter.EmitCandidateCreated(ctx, created, run.ID); err != nil {
			log.WithError(err).Warn("Failed to emit candidate created event")
		}
		return stats.AddNew()
	}
}

func (r *Runner) buildDecision(run *models.IngestRun, candidate *models.ConsolidatedCandidate, cls matching.Classification) *models.MatchDecision {
	decision := &models.MatchDecision{
		ID:          uuid.New().String(),
		StateCode:   run.StateCode,
		RunID:       run.ID,
		IdentityKey: candidate.IdentityKey,
		Disposition: cls.Disposition,
		Ambiguous:   cls.Ambiguous,
		Incoming:    *candidate,
		CreatedAt:   time.Now().UTC(),
	}
	if cls.Match != nil {
		decision.MatchedCandidateID = &cls.Match.Candidate.ID
		decision.Score = cls.Match.Score
		decision.NameScore = cls.Match.NameScore
		decision.OfficeScore = cls.Match.OfficeScore
		decision.PartyConflict = cls.Match.PartyConflict
	}
	return decision
}

func (r *Runner) newCandidate(run *models.IngestRun, candidate *models.ConsolidatedCandidate) *models.Candidate {
	now := time.Now().UTC()
	return &models.Candidate{
		ID:             uuid.New().String(),
		StateCode:      run.StateCode,
		IdentityKey:    candidate.IdentityKey,
		FullName:       candidate.FullName,
		FirstName:      candidate.FirstName,
		MiddleName:     candidate.MiddleName,
		LastName:       candidate.LastName,
		NameSuffix:     candidate.NameSuffix,
		Party:          candidate.Party,
		OfficeName:     candidate.OfficeName,
		OfficeLevel:    candidate.OfficeLevel,
		DistrictNumber: candidate.DistrictNumber,
		ElectionYear:   candidate.ElectionYear,
		ElectionDate:   candidate.ElectionDate,
		Jurisdictions:  candidate.Jurisdictions,
		Contact:        candidate.Contact,
		Filing:         candidate.Filing,
		Status:         models.CandidateStatusActive,
		LastRunID:      &run.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// failRun marks a run failed (fail closed) and surfaces the error.
func (r *Runner) failRun(ctx context.Context, run *models.IngestRun, stats Stats, cause error) (*models.IngestRun, error) {
	now := time.Now().UTC()
	msg := cause.Error()
	run.Status = models.RunStatusFailed
	run.FinishedAt = &now
	run.FailureMessage = &msg
	stats.ApplyTo(run)

	if err := r.runs.Finalize(ctx, run); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to finalize failed run")
	}
	if err := r.emitter.EmitRunCompleted(ctx, run); err != nil {
		r.logger.WithContext(ctx).WithError(err).Warn("Failed to emit run failed event")
	}

	return run, cause
}

