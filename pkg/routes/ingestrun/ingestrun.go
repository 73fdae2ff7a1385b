package ingestrun

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	"github.com/ballotline/registry/internal/repositories/ingestrun"
	ctxmiddleware "github.com/ballotline/registry/pkg/context"
	"github.com/ballotline/registry/pkg/tracing"
)

// Register registers ingest run routes
func Register(g *echo.Group) {
	g.GET("", List)
	g.GET("/:id", Get)
}

// List returns ingest runs for the request's state, most recent first
func List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ingestrun_handler.List")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	pageSize, _ := strconv.Atoi(c.QueryParam("page_size"))

	var status *string
	if raw := c.QueryParam("status"); raw != "" {
		status = &raw
	}

	ctx, repo, err := ectoinject.GetContext[*ingestrun.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	response, err := repo.List(ctx, stateCode, status, page, pageSize)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, response)
}

// Get returns an ingest run by ID
func Get(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "ingestrun_handler.Get")
	defer span.End()

	stateCode := ctxmiddleware.GetStateCode(ctx)
	if stateCode == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "state code header is required")
	}

	ctx, repo, err := ectoinject.GetContext[*ingestrun.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to get repository")
	}

	run, err := repo.Get(ctx, stateCode, c.Param("id"))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, run)
}
