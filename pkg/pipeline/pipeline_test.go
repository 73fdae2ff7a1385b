package pipeline

import (
	"context"
	"sync"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/ballotline/registry/pkg/consolidate"
	"github.com/ballotline/registry/pkg/kafka"
	"github.com/ballotline/registry/pkg/matching"
	"github.com/ballotline/registry/pkg/merging"
	"github.com/ballotline/registry/pkg/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func strPtr(s string) *string { return &s }

type fakeCandidateStore struct {
	mu           sync.Mutex
	existing     []models.Candidate
	listErr      error
	createErrFor map[string]error
	updateErr    error
	created      []*models.Candidate
	updated      []*models.Candidate
}

func (f *fakeCandidateStore) ListByStateYear(_ context.Context, _ string, _ int) ([]models.Candidate, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.existing, nil
}

func (f *fakeCandidateStore) GetByID(_ context.Context, id string) (*models.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.existing {
		if f.existing[i].ID == id {
			c := f.existing[i]
			return &c, nil
		}
	}
	for _, c := range f.created {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.Errorf("candidate %s not found", id)
}

func (f *fakeCandidateStore) Create(_ context.Context, candidate *models.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.createErrFor[candidate.IdentityKey]; ok {
		return err
	}
	f.created = append(f.created, candidate)
	return nil
}

func (f *fakeCandidateStore) Update(_ context.Context, candidate *models.Candidate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = append(f.updated, candidate)
	return nil
}

type fakeDecisionStore struct {
	batches  [][]*models.MatchDecision
	updated  []*models.MatchDecision
	batchErr error
}

func (f *fakeDecisionStore) CreateBatch(_ context.Context, decisions []*models.MatchDecision) error {
	if f.batchErr != nil {
		return f.batchErr
	}
	f.batches = append(f.batches, decisions)
	return nil
}

func (f *fakeDecisionStore) Update(_ context.Context, decision *models.MatchDecision) error {
	f.updated = append(f.updated, decision)
	return nil
}

type fakeRunStore struct {
	created   *models.IngestRun
	finalized *models.IngestRun
}

func (f *fakeRunStore) Create(_ context.Context, run *models.IngestRun) error {
	f.created = run
	return nil
}

func (f *fakeRunStore) Finalize(_ context.Context, run *models.IngestRun) error {
	f.finalized = run
	return nil
}

type fakeEmitter struct {
	createdEvents []string
	updatedEvents []string
	reviewEvents  []string
	runEvents     []string
	lastChanged   []string
}

func (f *fakeEmitter) EmitCandidateCreated(_ context.Context, candidate *models.Candidate, _ string) error {
	f.createdEvents = append(f.createdEvents, candidate.IdentityKey)
	return nil
}

func (f *fakeEmitter) EmitCandidateUpdated(_ context.Context, candidate *models.Candidate, _ string, changedFields []string) error {
	f.updatedEvents = append(f.updatedEvents, candidate.IdentityKey)
	f.lastChanged = changedFields
	return nil
}

func (f *fakeEmitter) EmitReviewQueued(_ context.Context, decision *models.MatchDecision) error {
	f.reviewEvents = append(f.reviewEvents, decision.IdentityKey)
	return nil
}

func (f *fakeEmitter) EmitRunCompleted(_ context.Context, run *models.IngestRun) error {
	f.runEvents = append(f.runEvents, run.Status)
	return nil
}

func newTestRunner(candidates *fakeCandidateStore, decisions *fakeDecisionStore, runs *fakeRunStore, emitter *fakeEmitter) *Runner {
	logger := testLogger()
	return NewRunner(
		consolidate.New(consolidate.Config{StatewideThreshold: 50}, logger),
		matching.DefaultConfig(),
		matching.NewClassifier(matching.DefaultThresholds(), nil),
		merging.New(nil, merging.Config{StatewideThreshold: 50}, logger),
		candidates,
		decisions,
		runs,
		emitter,
		Config{Workers: 2},
		logger,
	)
}

func storedSenator() models.Candidate {
	return models.Candidate{
		ID:           "c-existing",
		StateCode:    "NC",
		IdentityKey:  "john_smith_us_senate_2024",
		FullName:     "John Smith",
		Party:        strPtr("Democratic"),
		OfficeName:   "US Senate",
		OfficeLevel:  models.OfficeLevelFederal,
		ElectionYear: 2024,
		Status:       models.CandidateStatusActive,
	}
}

func TestRunner_EndToEnd(t *testing.T) {
	candidates := &fakeCandidateStore{existing: []models.Candidate{storedSenator()}}
	decisions := &fakeDecisionStore{}
	runs := &fakeRunStore{}
	emitter := &fakeEmitter{}
	runner := newTestRunner(candidates, decisions, runs, emitter)

	records := []models.RawRecord{
		{
			// exact identity key match, brings a new email
			FullName:     "John Smith",
			Party:        strPtr("Democratic"),
			OfficeName:   "US Senate",
			ElectionYear: 2024,
			Contact:      models.ContactInfo{Email: strPtr("john@example.com")},
			SourceRowID:  "row-1",
		},
		{
			// nobody like her in the index
			FullName:     "Maria Garcia",
			Party:        strPtr("Republican"),
			OfficeName:   "Governor",
			ElectionYear: 2024,
			SourceRowID:  "row-2",
		},
		{
			// data-quality reject
			FullName:     "",
			OfficeName:   "Governor",
			ElectionYear: 2024,
		},
	}

	run, err := runner.Run(context.Background(), "NC", 2024, "nc-sboe", records)
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 3, run.RawRecords)
	assert.Equal(t, 2, run.Consolidated)
	assert.Equal(t, 1, run.NewCandidates)
	assert.Equal(t, 1, run.Updated)
	assert.Equal(t, 0, run.ReviewQueued)
	assert.Equal(t, 1, run.RecordErrors)
	assert.Equal(t, 0, run.MergeErrors)
	require.NotNil(t, run.FinishedAt)

	require.Len(t, candidates.created, 1)
	assert.Equal(t, "maria_garcia_governor_2024", candidates.created[0].IdentityKey)
	assert.Equal(t, models.CandidateStatusActive, candidates.created[0].Status)
	require.NotNil(t, candidates.created[0].LastRunID)
	assert.Equal(t, run.ID, *candidates.created[0].LastRunID)

	require.Len(t, candidates.updated, 1)
	require.NotNil(t, candidates.updated[0].Contact.Email)
	assert.Equal(t, "john@example.com", *candidates.updated[0].Contact.Email)
	assert.Contains(t, emitter.lastChanged, "email")

	require.Len(t, decisions.batches, 1)
	batch := decisions.batches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, models.DispositionExact, batch[0].Disposition)
	assert.Equal(t, models.DecisionStatusApplied, batch[0].Status)
	assert.Equal(t, models.DispositionNew, batch[1].Disposition)

	assert.Equal(t, []string{"maria_garcia_governor_2024"}, emitter.createdEvents)
	assert.Equal(t, []string{"john_smith_us_senate_2024"}, emitter.updatedEvents)
	assert.Equal(t, []string{models.RunStatusCompleted}, emitter.runEvents)
	assert.NotNil(t, runs.finalized)
}

func TestRunner_IndexUnavailableFailsClosed(t *testing.T) {
	candidates := &fakeCandidateStore{listErr: errors.New("connection refused")}
	decisions := &fakeDecisionStore{}
	runs := &fakeRunStore{}
	emitter := &fakeEmitter{}
	runner := newTestRunner(candidates, decisions, runs, emitter)

	records := []models.RawRecord{
		{FullName: "John Smith", OfficeName: "US Senate", ElectionYear: 2024},
	}

	run, err := runner.Run(context.Background(), "NC", 2024, "nc-sboe", records)
	require.Error(t, err)
	require.NotNil(t, run)

	// nothing classified as new against a missing index
	assert.Empty(t, candidates.created)
	assert.Empty(t, decisions.batches)

	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotNil(t, run.FailureMessage)
	assert.Contains(t, *run.FailureMessage, "index unavailable")
	require.NotNil(t, runs.finalized)
	assert.Equal(t, models.RunStatusFailed, runs.finalized.Status)
	assert.Equal(t, []string{models.RunStatusFailed}, emitter.runEvents)
}

func TestRunner_PerCandidateErrorIsolation(t *testing.T) {
	candidates := &fakeCandidateStore{
		createErrFor: map[string]error{
			"maria_garcia_governor_2024": errors.New("unique violation"),
		},
	}
	decisions := &fakeDecisionStore{}
	runs := &fakeRunStore{}
	emitter := &fakeEmitter{}
	runner := newTestRunner(candidates, decisions, runs, emitter)

	records := []models.RawRecord{
		{FullName: "Maria Garcia", OfficeName: "Governor", ElectionYear: 2024},
		{FullName: "Dana Lee", OfficeName: "Attorney General", ElectionYear: 2024},
	}

	run, err := runner.Run(context.Background(), "NC", 2024, "nc-sboe", records)
	require.NoError(t, err)

	// the failed insert is counted, the rest of the batch lands
	assert.Equal(t, models.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.NewCandidates)
	assert.Equal(t, 1, run.MergeErrors)
	require.Len(t, candidates.created, 1)
	assert.Equal(t, "dana_lee_attorney_general_2024", candidates.created[0].IdentityKey)

	require.Len(t, decisions.batches, 1)
	assert.Equal(t, models.DecisionStatusRejected, decisions.batches[0][0].Status)
	assert.Equal(t, models.DecisionStatusApplied, decisions.batches[0][1].Status)
}

func TestRunner_QueuesFuzzyMatchForReview(t *testing.T) {
	existing := storedSenator()
	existing.FullName = "Jonathan Smith"
	existing.IdentityKey = "jonathan_smith_us_senate_2024"

	candidates := &fakeCandidateStore{existing: []models.Candidate{existing}}
	decisions := &fakeDecisionStore{}
	runs := &fakeRunStore{}
	emitter := &fakeEmitter{}
	runner := newTestRunner(candidates, decisions, runs, emitter)

	records := []models.RawRecord{
		{
			FullName:     "John Smith",
			Party:        strPtr("Democratic"),
			OfficeName:   "US Senate",
			ElectionYear: 2024,
		},
	}

	run, err := runner.Run(context.Background(), "NC", 2024, "nc-sboe", records)
	require.NoError(t, err)

	assert.Equal(t, 1, run.ReviewQueued)
	assert.Equal(t, 0, run.NewCandidates)
	assert.Equal(t, 0, run.Updated)
	assert.Empty(t, candidates.created)
	assert.Empty(t, candidates.updated)

	require.Len(t, decisions.batches, 1)
	decision := decisions.batches[0][0]
	assert.Equal(t, models.DispositionNeedsReview, decision.Disposition)
	assert.Equal(t, models.DecisionStatusPending, decision.Status)
	require.NotNil(t, decision.MatchedCandidateID)
	assert.Equal(t, "c-existing", *decision.MatchedCandidateID)
	assert.GreaterOrEqual(t, decision.Score, 0.85)
	assert.Less(t, decision.Score, 0.95)

	assert.Equal(t, []string{"john_smith_us_senate_2024"}, emitter.reviewEvents)
}

func TestRunner_ConcurrentClassificationIsDeterministic(t *testing.T) {
	var names []string
	var records []models.RawRecord
	for _, name := range []string{"Ada One", "Ben Two", "Cal Three", "Dee Four", "Eli Five", "Fay Six", "Gus Seven", "Hal Eight"} {
		names = append(names, name)
		records = append(records, models.RawRecord{
			FullName:     name,
			OfficeName:   "School Board",
			Jurisdiction: strPtr(name),
			ElectionYear: 2024,
		})
	}

	var first []string
	for trial := 0; trial < 5; trial++ {
		candidates := &fakeCandidateStore{}
		runner := newTestRunner(candidates, &fakeDecisionStore{}, &fakeRunStore{}, &fakeEmitter{})

		run, err := runner.Run(context.Background(), "NC", 2024, "nc-sboe", records)
		require.NoError(t, err)
		require.Equal(t, len(names), run.NewCandidates)

		var order []string
		for _, c := range candidates.created {
			order = append(order, c.FullName)
		}
		if trial == 0 {
			first = order
			assert.Equal(t, names, order)
		} else {
			assert.Equal(t, first, order)
		}
	}
}

func TestApplyResolution_ApproveMergesIntoMatch(t *testing.T) {
	candidates := &fakeCandidateStore{existing: []models.Candidate{storedSenator()}}
	decisions := &fakeDecisionStore{}
	emitter := &fakeEmitter{}
	runner := newTestRunner(candidates, decisions, &fakeRunStore{}, emitter)

	decision := &models.MatchDecision{
		ID:                 "d1",
		StateCode:          "NC",
		RunID:              "run-1",
		IdentityKey:        "john_smith_us_senate_2024",
		Disposition:        models.DispositionNeedsReview,
		MatchedCandidateID: strPtr("c-existing"),
		Status:             models.DecisionStatusPending,
		Incoming: models.ConsolidatedCandidate{
			IdentityKey:  "john_smith_us_senate_2024",
			FullName:     "John Smith",
			OfficeName:   "US Senate",
			ElectionYear: 2024,
			Contact:      models.ContactInfo{Website: strPtr("https://smithforsenate.example")},
		},
	}

	resolved, err := runner.ApplyResolution(context.Background(), decision, true, "reviewer@ballotline")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	assert.Equal(t, models.DecisionStatusApproved, decision.Status)
	require.NotNil(t, decision.ResolvedAt)
	require.NotNil(t, decision.ResolvedBy)
	assert.Equal(t, "reviewer@ballotline", *decision.ResolvedBy)

	require.Len(t, candidates.updated, 1)
	require.NotNil(t, candidates.updated[0].Contact.Website)
	assert.Contains(t, emitter.lastChanged, "website")
	require.Len(t, decisions.updated, 1)
}

func TestApplyResolution_RejectInsertsNewCandidate(t *testing.T) {
	candidates := &fakeCandidateStore{existing: []models.Candidate{storedSenator()}}
	decisions := &fakeDecisionStore{}
	emitter := &fakeEmitter{}
	runner := newTestRunner(candidates, decisions, &fakeRunStore{}, emitter)

	decision := &models.MatchDecision{
		ID:                 "d2",
		StateCode:          "NC",
		RunID:              "run-1",
		IdentityKey:        "john_smith_us_senate_2024",
		Disposition:        models.DispositionNeedsReview,
		MatchedCandidateID: strPtr("c-existing"),
		Status:             models.DecisionStatusPending,
		Incoming: models.ConsolidatedCandidate{
			IdentityKey:  "john_smith_us_senate_2024",
			FullName:     "John Smith",
			OfficeName:   "US Senate",
			ElectionYear: 2024,
		},
	}

	resolved, err := runner.ApplyResolution(context.Background(), decision, false, "reviewer@ballotline")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	assert.Equal(t, models.DecisionStatusRejected, decision.Status)
	require.Len(t, candidates.created, 1)
	assert.Equal(t, "NC", candidates.created[0].StateCode)
	assert.Equal(t, "john_smith_us_senate_2024", candidates.created[0].IdentityKey)
	assert.Empty(t, candidates.updated)
	assert.Equal(t, []string{"john_smith_us_senate_2024"}, emitter.createdEvents)
}

func TestApplyResolution_RequiresPendingDecision(t *testing.T) {
	runner := newTestRunner(&fakeCandidateStore{}, &fakeDecisionStore{}, &fakeRunStore{}, &fakeEmitter{})

	decision := &models.MatchDecision{ID: "d3", Status: models.DecisionStatusApplied}
	_, err := runner.ApplyResolution(context.Background(), decision, true, "reviewer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
}

func TestHandleBatch(t *testing.T) {
	runner := newTestRunner(&fakeCandidateStore{}, &fakeDecisionStore{}, &fakeRunStore{}, &fakeEmitter{})

	err := runner.HandleBatch(context.Background(), &kafka.IncomingMessage{})
	require.Error(t, err, "a message without a parsed batch is rejected")

	candidates := &fakeCandidateStore{}
	runs := &fakeRunStore{}
	runner = newTestRunner(candidates, &fakeDecisionStore{}, runs, &fakeEmitter{})

	msg := &kafka.IncomingMessage{
		Batch: &kafka.BatchMessage{
			StateCode:    "NC",
			ElectionYear: 2024,
			Source:       "nc-sboe",
			Records: []models.RawRecord{
				{FullName: "Maria Garcia", OfficeName: "Governor", ElectionYear: 2024},
			},
		},
	}
	require.NoError(t, runner.HandleBatch(context.Background(), msg))
	assert.Len(t, candidates.created, 1)
	require.NotNil(t, runs.finalized)
	assert.Equal(t, models.RunStatusCompleted, runs.finalized.Status)
}

func TestHandleBatch_FailedRunLeavesMessageUncommitted(t *testing.T) {
	candidates := &fakeCandidateStore{listErr: errors.New("connection refused")}
	runner := newTestRunner(candidates, &fakeDecisionStore{}, &fakeRunStore{}, &fakeEmitter{})

	msg := &kafka.IncomingMessage{
		Batch: &kafka.BatchMessage{
			StateCode:    "NC",
			ElectionYear: 2024,
			Source:       "nc-sboe",
			Records: []models.RawRecord{
				{FullName: "Maria Garcia", OfficeName: "Governor", ElectionYear: 2024},
			},
		},
	}
	err := runner.HandleBatch(context.Background(), msg)
	require.Error(t, err)
}
