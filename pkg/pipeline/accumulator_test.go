package pipeline

import (
	"testing"

	"github.com/ballotline/registry/pkg/models"
	"github.com/stretchr/testify/assert"
)

func TestStats_Accumulates(t *testing.T) {
	stats := Stats{}.
		WithRawRecords(120).
		WithConsolidated(5).
		AddNew().
		AddNew().
		AddUpdated().
		AddReviewQueued().
		AddUnchanged().
		AddRecordError("record 7: missing candidate name").
		AddMergeError("jane_doe_governor_2024: update failed")

	assert.Equal(t, 120, stats.RawRecords)
	assert.Equal(t, 5, stats.Consolidated)
	assert.Equal(t, 2, stats.New)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 1, stats.ReviewQueued)
	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 1, stats.RecordErrors)
	assert.Equal(t, 1, stats.MergeErrors)
	assert.Equal(t, 5, stats.Processed())
	assert.Equal(t, []string{
		"record 7: missing candidate name",
		"jane_doe_governor_2024: update failed",
	}, stats.Notes)
}

func TestStats_MethodsReturnCopies(t *testing.T) {
	base := Stats{}.AddRecordError("first")

	a := base.AddNew().AddMergeError("from a")
	b := base.AddUpdated().AddMergeError("from b")

	assert.Equal(t, 0, base.New)
	assert.Equal(t, 0, base.Updated)
	assert.Equal(t, []string{"first"}, base.Notes)
	assert.Equal(t, []string{"first", "from a"}, a.Notes)
	assert.Equal(t, []string{"first", "from b"}, b.Notes)
}

func TestStats_ApplyTo(t *testing.T) {
	stats := Stats{}.
		WithRawRecords(10).
		WithConsolidated(3).
		AddNew().
		AddUnchanged().
		AddRecordError("record 2: missing election year")

	var run models.IngestRun
	stats.ApplyTo(&run)

	assert.Equal(t, 10, run.RawRecords)
	assert.Equal(t, 3, run.Consolidated)
	assert.Equal(t, 1, run.NewCandidates)
	assert.Equal(t, 1, run.Unchanged)
	assert.Equal(t, 1, run.RecordErrors)
	assert.Equal(t, []string{"record 2: missing election year"}, run.ErrorNotes)
}
