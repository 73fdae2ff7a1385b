package candidate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/ballotline/registry/pkg/database"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/tracing"
)

var columns = []string{
	"id", "state_code", "identity_key", "full_name", "first_name", "middle_name",
	"last_name", "name_suffix", "party", "office_name", "office_level",
	"district_number", "election_year", "election_date", "jurisdictions",
	"contact", "filing", "status", "is_withdrawn", "last_run_id",
	"created_at", "updated_at",
}

// upsertColumns are the mutable columns refreshed when an insert collides
// with an existing (state_code, identity_key) row.
var upsertColumns = []string{
	"full_name", "first_name", "middle_name", "last_name", "name_suffix",
	"party", "office_name", "office_level", "district_number", "election_date",
	"jurisdictions", "contact", "filing", "status", "is_withdrawn",
	"last_run_id", "updated_at",
}

// row is the sqlx scan target. Jurisdictions, contact and filing live in
// jsonb columns.
type row struct {
	ID             string                             `db:"id"`
	StateCode      string                             `db:"state_code"`
	IdentityKey    string                             `db:"identity_key"`
	FullName       string                             `db:"full_name"`
	FirstName      *string                            `db:"first_name"`
	MiddleName     *string                            `db:"middle_name"`
	LastName       *string                            `db:"last_name"`
	NameSuffix     *string                            `db:"name_suffix"`
	Party          *string                            `db:"party"`
	OfficeName     string                             `db:"office_name"`
	OfficeLevel    string                             `db:"office_level"`
	DistrictNumber *string                            `db:"district_number"`
	ElectionYear   int                                `db:"election_year"`
	ElectionDate   *time.Time                         `db:"election_date"`
	Jurisdictions  database.JSONB[[]string]           `db:"jurisdictions"`
	Contact        database.JSONB[models.ContactInfo] `db:"contact"`
	Filing         database.JSONB[models.FilingInfo]  `db:"filing"`
	Status         string                             `db:"status"`
	IsWithdrawn    bool                               `db:"is_withdrawn"`
	LastRunID      *string                            `db:"last_run_id"`
	CreatedAt      time.Time                          `db:"created_at"`
	UpdatedAt      time.Time                          `db:"updated_at"`
}

func (r *row) toModel() models.Candidate {
	return models.Candidate{
		ID:             r.ID,
		StateCode:      r.StateCode,
		IdentityKey:    r.IdentityKey,
		FullName:       r.FullName,
		FirstName:      r.FirstName,
		MiddleName:     r.MiddleName,
		LastName:       r.LastName,
		NameSuffix:     r.NameSuffix,
		Party:          r.Party,
		OfficeName:     r.OfficeName,
		OfficeLevel:    models.OfficeLevel(r.OfficeLevel),
		DistrictNumber: r.DistrictNumber,
		ElectionYear:   r.ElectionYear,
		ElectionDate:   r.ElectionDate,
		Jurisdictions:  r.Jurisdictions.Data,
		Contact:        r.Contact.Data,
		Filing:         r.Filing.Data,
		Status:         r.Status,
		IsWithdrawn:    r.IsWithdrawn,
		LastRunID:      r.LastRunID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

// Repository handles candidate persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new candidate repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListByStateYear returns every candidate for a state + election year. This
// feeds the in-memory match index, so it returns the full set unpaginated.
func (r *Repository) ListByStateYear(ctx context.Context, stateCode string, electionYear int) ([]models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.ListByStateYear")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("candidates")
	sb.Where(
		sb.Equal("state_code", stateCode),
		sb.Equal("election_year", electionYear),
	)
	sb.OrderBy("identity_key")

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode, "election_year": electionYear}).Error("Failed to list candidates for match index")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidates")
	}

	candidates := make([]models.Candidate, 0, len(rows))
	for i := range rows {
		candidates = append(candidates, rows[i].toModel())
	}
	return candidates, nil
}

// GetByID retrieves a candidate by ID
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetByID")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("candidates")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var result row
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "candidate %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id}).Error("Failed to get candidate")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get candidate")
	}

	candidate := result.toModel()
	return &candidate, nil
}

// GetByIdentityKey retrieves a candidate by (state_code, identity_key).
// Returns nil, nil when no candidate carries the key.
func (r *Repository) GetByIdentityKey(ctx context.Context, stateCode, identityKey string) (*models.Candidate, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.GetByIdentityKey")
	defer span.End()

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("candidates")
	sb.Where(
		sb.Equal("state_code", stateCode),
		sb.Equal("identity_key", identityKey),
	)
	sb.Limit(1)

	query, args := sb.Build()
	var result row
	if err := r.db.GetContext(ctx, &result, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode, "identity_key": identityKey}).Error("Failed to get candidate by identity key")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get candidate")
	}

	candidate := result.toModel()
	return &candidate, nil
}

// Create inserts a new candidate
func (r *Repository) Create(ctx context.Context, candidate *models.Candidate) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	if candidate.CreatedAt.IsZero() {
		candidate.CreatedAt = now
	}
	candidate.UpdatedAt = now

	ib := database.NewInsertBuilder()
	ib.InsertInto("candidates")
	ib.Cols(columns...)
	ib.Values(
		candidate.ID, candidate.StateCode, candidate.IdentityKey, candidate.FullName,
		candidate.FirstName, candidate.MiddleName, candidate.LastName, candidate.NameSuffix,
		candidate.Party, candidate.OfficeName, string(candidate.OfficeLevel),
		candidate.DistrictNumber, candidate.ElectionYear, candidate.ElectionDate,
		database.JSONB[[]string]{Data: candidate.Jurisdictions},
		database.JSONB[models.ContactInfo]{Data: candidate.Contact},
		database.JSONB[models.FilingInfo]{Data: candidate.Filing},
		candidate.Status, candidate.IsWithdrawn, candidate.LastRunID,
		candidate.CreatedAt, candidate.UpdatedAt,
	)

	// Batches are delivered at least once. A replayed create hits the
	// (state_code, identity_key) unique index; the upsert keeps it
	// idempotent instead of poisoning the whole batch.
	assignments := make([]string, len(upsertColumns))
	for i, col := range upsertColumns {
		assignments[i] = database.Excluded(col)
	}
	ib.OnConflict([]string{"state_code", "identity_key"}, assignments...)

	query, args := ib.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": candidate.ID, "state_code": candidate.StateCode, "identity_key": candidate.IdentityKey}).Error("Failed to create candidate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create candidate")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{"id": candidate.ID, "identity_key": candidate.IdentityKey}).Info("Created candidate")
	return nil
}

// Update persists a fully merged candidate in a single statement, so readers
// never observe a half-applied merge.
func (r *Repository) Update(ctx context.Context, candidate *models.Candidate) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.Update")
	defer span.End()

	now := time.Now().UTC()
	candidate.UpdatedAt = now

	ub := database.NewUpdateBuilder()
	ub.Update("candidates")
	ub.Set(
		ub.Assign("full_name", candidate.FullName),
		ub.Assign("first_name", candidate.FirstName),
		ub.Assign("middle_name", candidate.MiddleName),
		ub.Assign("last_name", candidate.LastName),
		ub.Assign("name_suffix", candidate.NameSuffix),
		ub.Assign("party", candidate.Party),
		ub.Assign("office_name", candidate.OfficeName),
		ub.Assign("office_level", string(candidate.OfficeLevel)),
		ub.Assign("district_number", candidate.DistrictNumber),
		ub.Assign("election_date", candidate.ElectionDate),
		ub.Assign("jurisdictions", database.JSONB[[]string]{Data: candidate.Jurisdictions}),
		ub.Assign("contact", database.JSONB[models.ContactInfo]{Data: candidate.Contact}),
		ub.Assign("filing", database.JSONB[models.FilingInfo]{Data: candidate.Filing}),
		ub.Assign("status", candidate.Status),
		ub.Assign("is_withdrawn", candidate.IsWithdrawn),
		ub.Assign("last_run_id", candidate.LastRunID),
		ub.Assign("updated_at", now),
	)
	ub.Where(
		ub.Equal("id", candidate.ID),
		ub.Equal("state_code", candidate.StateCode),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": candidate.ID, "identity_key": candidate.IdentityKey}).Error("Failed to update candidate")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update candidate")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("candidate %s not found", candidate.ID))
	}
	return nil
}

// List retrieves candidates for a state with filtering and pagination
func (r *Repository) List(ctx context.Context, stateCode string, electionYear *int, officeLevel *string, page, pageSize int) (*models.CandidateListResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.List")
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
	countSb.From("candidates")
	countWhere := []string{countSb.Equal("state_code", stateCode)}
	if electionYear != nil {
		countWhere = append(countWhere, countSb.Equal("election_year", *electionYear))
	}
	if officeLevel != nil {
		countWhere = append(countWhere, countSb.Equal("office_level", *officeLevel))
	}
	countSb.Where(countWhere...)

	countQuery, countArgs := countSb.Build()
	var totalCount int
	if err := r.db.GetContext(ctx, &totalCount, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode}).Error("Failed to count candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count candidates")
	}

	sb := database.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("candidates")
	where := []string{sb.Equal("state_code", stateCode)}
	if electionYear != nil {
		where = append(where, sb.Equal("election_year", *electionYear))
	}
	if officeLevel != nil {
		where = append(where, sb.Equal("office_level", *officeLevel))
	}
	sb.Where(where...)
	sb.OrderBy("full_name", "identity_key")
	sb.Limit(pageSize).Offset(offset)

	query, args := sb.Build()
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"state_code": stateCode, "page": page, "page_size": pageSize}).Error("Failed to list candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list candidates")
	}

	items := make([]models.Candidate, 0, len(rows))
	for i := range rows {
		items = append(items, rows[i].toModel())
	}

	return &models.CandidateListResponse{
		Items:      items,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// SetWithdrawn flags or unflags a candidate as withdrawn
func (r *Repository) SetWithdrawn(ctx context.Context, stateCode, id string, withdrawn bool) error {
	ctx, span := tracing.StartSpan(ctx, "candidate.Repository.SetWithdrawn")
	defer span.End()

	status := models.CandidateStatusActive
	if withdrawn {
		status = models.CandidateStatusWithdrawn
	}

	ub := database.NewUpdateBuilder()
	ub.Update("candidates")
	ub.Set(
		ub.Assign("is_withdrawn", withdrawn),
		ub.Assign("status", status),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("state_code", stateCode),
	)

	query, args := ub.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"id": id, "state_code": stateCode}).Error("Failed to set candidate withdrawn flag")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update candidate")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "candidate %s not found", id)
	}
	return nil
}
