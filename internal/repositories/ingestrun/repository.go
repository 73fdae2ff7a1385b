package ingestrun

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/ballotline/registry/pkg/database"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/tracing"
)

var columns = []string{
	"id", "state_code", "source", "election_year", "status",
	"started_at", "finished_at", "raw_records", "consolidated",
	"new_candidates", "updated", "review_queued", "unchanged",
	"record_errors", "merge_errors", "error_notes", "failure_message",
}

type row struct {
	ID             string                   `db:"id"`
	StateCode      string                   `db:"state_code"`
	Source         string                   `db:"source"`
	ElectionYear   int                      `db:"election_year"`
	Status         string                   `db:"status"`
	StartedAt      time.Time                `db:"started_at"`
	FinishedAt     *time.Time               `db:"finished_at"`
	RawRecords     int                      `db:"raw_records"`
	Consolidated   int                      `db:"consolidated"`
	NewCandidates  int                      `db:"new_candidates"`
	Updated        int                      `db:"updated"`
	ReviewQueued   int                      `db:"review_queued"`
	Unchanged      int                      `db:"unchanged"`
	RecordErrors   int                      `db:"record_errors"`
	MergeErrors    int                      `db:"merge_errors"`
	ErrorNotes     database.JSONB[[]string] `db:"error_notes"`
	FailureMessage *string                  `db:"failure_message"`
}

func (r *row) toModel() models.IngestRun {
	return models.IngestRun{
		ID:             r.ID,
		StateCode:      r.StateCode,
		Source:         r.Source,
		ElectionYear:   r.ElectionYear,
		Status:         r.Status,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		RawRecords:     r.RawRecords,
		Consolidated:   r.Consolidated,
		NewCandidates:  r.NewCandidates,
		Updated:        r.Updated,
		ReviewQueued:   r.ReviewQueued,
		Unchanged:      r.Unchanged,
		RecordErrors:   r.RecordErrors,
		MergeErrors:    r.MergeErrors,
		ErrorNotes:     r.ErrorNotes.Data,
		FailureMessage: r.FailureMessage,
	}
}

// Repository handles ingest run persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new ingest run repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the run record at the start of an ingest, so a run that
// dies mid-flight still leaves a trace.
func (r *Repository) Create(ctx context.Context, run *models.IngestRun) error {
	ctx, span := tracing.StartSpan(ctx, "ingestrun.Repository.Create")
	defer span.End()

	ib := database.NewInsertBuilder()
	ib.InsertInto("ingest_runs")
	ib.Cols(columns...)
	ib.Values(
		run.ID, run.StateCode, run.Source, run.ElectionYear, run.Status,
		run.StartedAt, run.FinishedAt, run.RawRecords, run.Consolidated,
		run.NewCandidates, run.Updated, run.ReviewQueued, run.Unchanged,
		run.RecordErrors, run.MergeErrors,
		database.JSONB[[]string]{Data: run.ErrorNotes},
		run.FailureMessage,
	)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": run.ID, "state_code": run.StateCode, "source": run.Source}).Error("Failed to create ingest run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create ingest run")
	}
	return nil
}

// Finalize writes the terminal status and accumulated counters of a run
func (r *Repository) Finalize(ctx context.Context, run *models.IngestRun) error {
	ctx, span := tracing.StartSpan(ctx, "ingestrun.Repository.Finalize")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("ingest_runs")
	ub.Set(
		ub.Assign("status", run.Status),
		ub.Assign("finished_at", run.FinishedAt),
		ub.Assign("raw_records", run.RawRecords),
		ub.Assign("consolidated", run.Consolidated),
		ub.Assign("new_candidates", run.NewCandidates),
		ub.Assign("updated", run.Updated),
		ub.Assign("review_queued", run.ReviewQueued),
		ub.Assign("unchanged", run.Unchanged),
		ub.Assign("record_errors", run.RecordErrors),
		ub.Assign("merge_errors", run.MergeErrors),
		ub.Assign("error_notes", database.JSONB[[]string]{Data: run.ErrorNotes}),
		ub.Assign("failure_message", run.FailureMessage),
	)
	ub.Where(
		ub.Equal("id", run.ID),
		ub.Equal("state_code", run.StateCode),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": run.ID, "status": run.Status}).Error("Failed to finalize ingest run")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to finalize ingest run")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "ingest run %s not found", run.ID)
	}
	return nil
}

// Get retrieves an ingest run by ID, scoped to a state
func (r *Repository) Get(ctx context.Context, stateCode, id string) (*models.IngestRun, error) {
	ctx, span := tracing.StartSpan(ctx, "ingestrun.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("ingest_runs")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("state_code", stateCode),
	)

	query, args := sb.Build()
	var result row
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "ingest run %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "state_code": stateCode}).Error("Failed to get ingest run")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get ingest run")
	}

	run := result.toModel()
	return &run, nil
}

// List retrieves ingest runs for a state, most recent first
func (r *Repository) List(ctx context.Context, stateCode string, status *string, page, pageSize int) (*models.IngestRunListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "ingestrun.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	countSb := database.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("ingest_runs")
	countWhere := []string{countSb.Equal("state_code", stateCode)}
	if status != nil {
		countWhere = append(countWhere, countSb.Equal("status", *status))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode}).Error("Failed to count ingest runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count ingest runs")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("ingest_runs")
	where := []string{sb.Equal("state_code", stateCode)}
	if status != nil {
		where = append(where, sb.Equal("status", *status))
	}
	sb.Where(where...)
	sb.OrderBy("started_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode, "page": page, "page_size": pageSize}).Error("Failed to list ingest runs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list ingest runs")
	}

	items := make([]models.IngestRun, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toModel())
	}

	return &models.IngestRunListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
