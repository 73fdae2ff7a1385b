package candidate

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/ballotline/registry/internal/repositories/candidate"
	ctxmiddleware "github.com/ballotline/registry/pkg/context"
	"github.com/ballotline/registry/pkg/tracing"
)

// Register registers candidate routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/:id", Get)
	g.POST("/:id/withdraw", Withdraw)
	g.POST("/:id/reinstate", Reinstate)
}

// List returns candidates for the request's state
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "candidate_handler.List")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	var electionYear *int
	if raw := c.QueryParam("election_year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "election_year must be an integer")
		}
		electionYear = &year
	}

	var officeLevel *string
	if raw := c.QueryParam("office_level"); raw != "" {
		officeLevel = &raw
	}

	ctx, repo, err := ectoinject.GetContext[*candidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	response, err := repo.List(ctx, stateCode, electionYear, officeLevel, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response)
}

// Get returns a candidate by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "candidate_handler.Get")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*candidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	found, err := repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if found.StateCode != stateCode {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "candidate %s not found", id)
	}

	return c.JSON(http.StatusOK, found)
}

// Withdraw marks a candidate as withdrawn
func Withdraw(c echo.Context) error {
	return setWithdrawn(c, true, "Withdrew candidate")
}

// Reinstate clears the withdrawn flag on a candidate
func Reinstate(c echo.Context) error {
	return setWithdrawn(c, false, "Reinstated candidate")
}

func setWithdrawn(c echo.Context, withdrawn bool, message string) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "candidate_handler.setWithdrawn")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	id := c.Param("id")

	ctx, repo, err := ectoinject.GetContext[*candidate.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	if err := repo.SetWithdrawn(ctx, stateCode, id, withdrawn); err != nil {
		return err
	}

	ctx, logger, _ := ectoinject.GetContext[ectologger.Logger](ctx)
	if logger != nil {
		logger.WithContext(ctx).WithFields(map[string]any{
			"candidate_id": id,
			"state_code":   stateCode,
		}).Info(message)
	}

	return c.JSON(http.StatusOK, map[string]bool{"is_withdrawn": withdrawn})
}
