package matchdecision

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
	"id", "state_code", "run_id", "identity_key", "disposition",
	"matched_candidate_id", "score", "name_score", "office_score",
	"party_conflict", "ambiguous", "incoming", "status",
	"created_at", "resolved_at", "resolved_by",
}

// row is the sqlx scan target. The incoming candidate snapshot lives in a
// jsonb column so a reviewer can apply it long after the run finished.
type row struct {
	ID                 string                                       `db:"id"`
	StateCode          string                                       `db:"state_code"`
	RunID              string                                       `db:"run_id"`
	IdentityKey        string                                       `db:"identity_key"`
	Disposition        string                                       `db:"disposition"`
	MatchedCandidateID *string                                      `db:"matched_candidate_id"`
	Score              float64                                      `db:"score"`
	NameScore          float64                                      `db:"name_score"`
	OfficeScore        float64                                      `db:"office_score"`
	PartyConflict      bool                                         `db:"party_conflict"`
	Ambiguous          bool                                         `db:"ambiguous"`
	Incoming           database.JSONB[models.ConsolidatedCandidate] `db:"incoming"`
	Status             string                                       `db:"status"`
	CreatedAt          time.Time                                    `db:"created_at"`
	ResolvedAt         *time.Time                                   `db:"resolved_at"`
	ResolvedBy         *string                                      `db:"resolved_by"`
}

func (r *row) toModel() models.MatchDecision {
	return models.MatchDecision{
		ID:                 r.ID,
		StateCode:          r.StateCode,
		RunID:              r.RunID,
		IdentityKey:        r.IdentityKey,
		Disposition:        models.Disposition(r.Disposition),
		MatchedCandidateID: r.MatchedCandidateID,
		Score:              r.Score,
		NameScore:          r.NameScore,
		OfficeScore:        r.OfficeScore,
		PartyConflict:      r.PartyConflict,
		Ambiguous:          r.Ambiguous,
		Incoming:           r.Incoming.Data,
		Status:             r.Status,
		CreatedAt:          r.CreatedAt,
		ResolvedAt:         r.ResolvedAt,
		ResolvedBy:         r.ResolvedBy,
	}
}

// Repository handles match decision persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new match decision repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// insertBatchSize bounds one INSERT's bind parameters well under the
// postgres limit of 65535.
const insertBatchSize = 500

func chunkEnd(start, total int) int {
	end := start + insertBatchSize
	if end > total {
		return total
	}
	return end
}

// CreateBatch inserts every decision from one ingest run. Large runs are
// chunked, and the chunks share one transaction so the run's audit trail
// lands atomically.
func (r *Repository) CreateBatch(ctx context.Context, decisions []*models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.CreateBatch")
	defer span.End()

	if len(decisions) == 0 {
		return nil
	}

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to start match decision transaction")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	for i := 0; i < len(decisions); i += insertBatchSize {
		end := chunkEnd(i, len(decisions))

		ib := database.NewInsertBuilder()
		ib.InsertInto("match_decisions")
		ib.Cols(columns...)
		for _, d := range decisions[i:end] {
			ib.Values(
				d.ID, d.StateCode, d.RunID, d.IdentityKey, string(d.Disposition),
				d.MatchedCandidateID, d.Score, d.NameScore, d.OfficeScore,
				d.PartyConflict, d.Ambiguous,
				database.JSONB[models.ConsolidatedCandidate]{Data: d.Incoming},
				d.Status, d.CreatedAt, d.ResolvedAt, d.ResolvedBy,
			)
		}

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"count": len(decisions), "run_id": decisions[0].RunID}).Error("Failed to create match decisions")
			return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create match decisions")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"run_id": decisions[0].RunID}).Error("Failed to commit match decisions")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit match decisions")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"count": len(decisions), "run_id": decisions[0].RunID}).Debug("Created match decisions")
	return nil
}

// Get retrieves a match decision by ID, scoped to a state
func (r *Repository) Get(ctx context.Context, stateCode, id string) (*models.MatchDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.Get")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_decisions")
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("state_code", stateCode),
	)

	query, args := sb.Build()
	var result row
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "match decision %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "state_code": stateCode}).Error("Failed to get match decision")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get match decision")
	}

	decision := result.toModel()
	return &decision, nil
}

// Update persists the resolution fields of a decision
func (r *Repository) Update(ctx context.Context, decision *models.MatchDecision) error {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.Update")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("match_decisions")
	ub.Set(
		ub.Assign("status", decision.Status),
		ub.Assign("matched_candidate_id", decision.MatchedCandidateID),
		ub.Assign("resolved_at", decision.ResolvedAt),
		ub.Assign("resolved_by", decision.ResolvedBy),
	)
	ub.Where(
		ub.Equal("id", decision.ID),
		ub.Equal("state_code", decision.StateCode),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": decision.ID, "status": decision.Status}).Error("Failed to update match decision")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update match decision")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "match decision %s not found", decision.ID)
	}
	return nil
}

// List retrieves match decisions for a state with filtering and pagination.
// A nil status returns decisions in every status.
func (r *Repository) List(ctx context.Context, stateCode string, status *string, runID *string, page, pageSize int) (*models.MatchDecisionListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "matchdecision.Repository.List")
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
	countSb.From("match_decisions")
	countWhere := []string{countSb.Equal("state_code", stateCode)}
	if status != nil {
		countWhere = append(countWhere, countSb.Equal("status", *status))
	}
	if runID != nil {
		countWhere = append(countWhere, countSb.Equal("run_id", *runID))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode, "status": status}).Error("Failed to count match decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count match decisions")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("match_decisions")
	where := []string{sb.Equal("state_code", stateCode)}
	if status != nil {
		where = append(where, sb.Equal("status", *status))
	}
	if runID != nil {
		where = append(where, sb.Equal("run_id", *runID))
	}
	sb.Where(where...)
	sb.OrderBy("created_at DESC")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode, "page": page, "page_size": pageSize}).Error("Failed to list match decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list match decisions")
	}

	items := make([]models.MatchDecision, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toModel())
	}

	return &models.MatchDecisionListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}
