// Package events handles audit event emission for candidate lifecycle
// changes and ingest run outcomes.
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/fingerprint"
	"github.com/ballotline/registry/pkg/kafka"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// volatileFields are excluded from the event fingerprint: they change on
// every run even when the candidate content did not.
var volatileFields = map[string]bool{
	"updated_at":  true,
	"created_at":  true,
	"last_run_id": true,
}

// Emitter publishes audit events for the ingest pipeline. Candidate
// lifecycle events and run terminal events go to separate topics.
type Emitter struct {
	producer    *kafka.Producer
	runProducer *kafka.Producer
	logger      ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer, runProducer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer:    producer,
		runProducer: runProducer,
		logger:      logger,
	}
}

// EmitCandidateCreated emits a candidate created event
func (e *Emitter) EmitCandidateCreated(ctx context.Context, candidate *models.Candidate, runID string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCandidateCreated")
	defer span.End()

	data, _ := json.Marshal(candidate)
	fp, _ := fingerprint.GenerateFromJSONWithExclusions(data, volatileFields)

	event := &kafka.CandidateEvent{
		EventType:   "candidate.created",
		StateCode:   candidate.StateCode,
		CandidateID: candidate.ID,
		IdentityKey: candidate.IdentityKey,
		RunID:       runID,
		Data:        data,
		Fingerprint: fp,
	}

	if err := e.producer.PublishCandidateEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit candidate.created event")
		return err
	}

	return nil
}

// EmitCandidateUpdated emits a candidate updated event with the fields the
// merge actually changed
func (e *Emitter) EmitCandidateUpdated(ctx context.Context, candidate *models.Candidate, runID string, changedFields []string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitCandidateUpdated")
	defer span.End()

	data, _ := json.Marshal(candidate)
	fp, _ := fingerprint.GenerateFromJSONWithExclusions(data, volatileFields)

	event := &kafka.CandidateEvent{
		EventType:     "candidate.updated",
		StateCode:     candidate.StateCode,
		CandidateID:   candidate.ID,
		IdentityKey:   candidate.IdentityKey,
		RunID:         runID,
		ChangedFields: changedFields,
		Data:          data,
		Fingerprint:   fp,
	}

	if err := e.producer.PublishCandidateEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit candidate.updated event")
		return err
	}

	return nil
}

// EmitReviewQueued emits an event when a match decision is queued for review
func (e *Emitter) EmitReviewQueued(ctx context.Context, decision *models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitReviewQueued")
	defer span.End()

	payload := map[string]any{
		"schema_version": SchemaVersion,
		"decision_id":    decision.ID,
		"score":          decision.Score,
		"ambiguous":      decision.Ambiguous,
	}
	if decision.MatchedCandidateID != nil {
		payload["matched_candidate_id"] = *decision.MatchedCandidateID
	}
	data, _ := json.Marshal(payload)

	event := &kafka.CandidateEvent{
		EventType:   "candidate.review_queued",
		StateCode:   decision.StateCode,
		IdentityKey: decision.IdentityKey,
		RunID:       decision.RunID,
		Data:        data,
	}

	if err := e.producer.PublishCandidateEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit candidate.review_queued event")
		return err
	}

	return nil
}

// EmitRunCompleted emits the terminal event for an ingest run, whether it
// completed or failed
func (e *Emitter) EmitRunCompleted(ctx context.Context, run *models.IngestRun) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRunCompleted")
	defer span.End()

	eventType := "run.completed"
	if run.Status == models.RunStatusFailed {
		eventType = "run.failed"
	}

	data, _ := json.Marshal(run)

	event := &kafka.RunEvent{
		EventType: eventType,
		StateCode: run.StateCode,
		RunID:     run.ID,
		Data:      data,
	}

	if err := e.runProducer.PublishRunEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit run event")
		return err
	}

	return nil
}
