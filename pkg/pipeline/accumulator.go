package pipeline

import (
	"github.com/ballotline/registry/pkg/models"
)

// Stats is the run accumulator. It is a value type: every method returns an
// updated copy, so partially applied batches can never leave a shared
// counter half-incremented.
type Stats struct {
	RawRecords   int
	Consolidated int
	New          int
	Updated      int
	ReviewQueued int
	Unchanged    int
	RecordErrors int
	MergeErrors  int
	Notes        []string
}

func (s Stats) WithRawRecords(n int) Stats {
	s.RawRecords = n
	return s
}

func (s Stats) WithConsolidated(n int) Stats {
	s.Consolidated = n
	return s
}

func (s Stats) AddNew() Stats {
	s.New++
	return s
}

func (s Stats) AddUpdated() Stats {
	s.Updated++
	return s
}

func (s Stats) AddReviewQueued() Stats {
	s.ReviewQueued++
	return s
}

func (s Stats) AddUnchanged() Stats {
	s.Unchanged++
	return s
}

func (s Stats) AddRecordError(note string) Stats {
	s.RecordErrors++
	return s.addNote(note)
}

func (s Stats) AddMergeError(note string) Stats {
	s.MergeErrors++
	return s.addNote(note)
}

func (s Stats) addNote(note string) Stats {
	if note == "" {
		return s
	}
	notes := make([]string, len(s.Notes), len(s.Notes)+1)
	copy(notes, s.Notes)
	s.Notes = append(notes, note)
	return s
}

// Processed returns how many consolidated candidates reached a terminal
// disposition.
func (s Stats) Processed() int {
	return s.New + s.Updated + s.ReviewQueued + s.Unchanged
}

// ApplyTo copies the accumulated counts onto a run record.
func (s Stats) ApplyTo(run *models.IngestRun) {
	run.RawRecords = s.RawRecords
	run.Consolidated = s.Consolidated
	run.NewCandidates = s.New
	run.Updated = s.Updated
	run.ReviewQueued = s.ReviewQueued
	run.Unchanged = s.Unchanged
	run.RecordErrors = s.RecordErrors
	run.MergeErrors = s.MergeErrors
	run.ErrorNotes = s.Notes
}
