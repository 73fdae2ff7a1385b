package review

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ballotline/registry/internal/repositories/matchdecision"
	ctxmiddleware "github.com/ballotline/registry/pkg/context"
	"github.com/ballotline/registry/pkg/models"
	"github.com/ballotline/registry/pkg/pipeline"
	"github.com/ballotline/registry/pkg/tracing"
)

var validate = validator.New()

// Register registers match decision review routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/:id", Get)
	g.POST("/:id/approve", Approve)
	g.POST("/:id/reject", Reject)
}

// List returns match decisions for the request's state. Defaults to the
// pending review queue; pass status=all for every decision.
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.List")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	status := c.QueryParam("status")
	if status == "" {
		status = models.DecisionStatusPending
	}
	var statusFilter *string
	if status != "all" {
		statusFilter = &status
	}

	var runID *string
	if raw := c.QueryParam("run_id"); raw != "" {
		runID = &raw
	}

	ctx, repo, err := ectoinject.GetContext[*matchdecision.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	response, err := repo.List(ctx, stateCode, statusFilter, runID, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response)
}

// Get returns a match decision by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.Get")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	ctx, repo, err := ectoinject.GetContext[*matchdecision.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	decision, err := repo.Get(ctx, stateCode, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, decision)
}

// Approve applies a pending decision by merging the incoming candidate into
// the matched stored candidate
func Approve(c echo.Context) error {
	return resolve(c, true, "Approved match decision")
}

// Reject resolves a pending decision by recording the incoming candidate as
// a brand new candidate
func Reject(c echo.Context) error {
	return resolve(c, false, "Rejected match decision")
}

func resolve(c echo.Context, approved bool, message string) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "review_handler.resolve")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	var req models.ResolveDecisionRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid request: %v", err)
	}

	ctx, repo, err := ectoinject.GetContext[*matchdecision.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	decision, err := repo.Get(ctx, stateCode, c.Param("id"))
	if err != nil {
		return err
	}
	if decision.Status != models.DecisionStatusPending {
		return httperror.NewHTTPErrorf(http.StatusConflict, "match decision %s is already %s", decision.ID, decision.Status)
	}

	ctx, runner, err := ectoinject.GetContext[*pipeline.Runner](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pipeline")
	}

	resolved, err := runner.ApplyResolution(ctx, decision, approved, req.ResolvedBy)
	if err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"decision_id":  decision.ID,
			"state_code":   stateCode,
			"candidate_id": resolved.ID,
			"resolved_by":  req.ResolvedBy,
		}).Info(message)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"decision":  decision,
		"candidate": resolved,
	})
}
