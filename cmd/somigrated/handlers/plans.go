package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/somigrate/pkg/api/types/errors"
	apiplans "github.com/opst/somigrate/pkg/api/types/plans"
	"github.com/opst/somigrate/pkg/auth"
	"github.com/opst/somigrate/pkg/conn/es"
	"github.com/opst/somigrate/pkg/migration"
)

// Coordinator plans and applies migrations of live indices.
type Coordinator interface {
	Plan(ctx context.Context, index string) (migration.Plan, error)
	Apply(ctx context.Context, index string) (migration.Plan, error)
}

var _ Coordinator = &migration.Coordinator{}

// OfflinePlanHandler plans an index described in the request body.
func OfflinePlanHandler(planner *migration.Planner) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		if !strings.HasPrefix(strings.ToLower(req.Header.Get("content-type")), "application/json") {
			return apierr.BadRequest(
				"unexpected content type. it should be application/json", nil,
			)
		}

		body := new(apiplans.Request)
		if err := json.NewDecoder(req.Body).Decode(body); err != nil {
			return apierr.BadRequest("can not understand the requested json", err)
		}

		plan, err := planner.Plan(body.Index, body.Exists, body.Meta, body.Live)
		if err != nil {
			return planError(err)
		}
		return c.JSON(http.StatusOK, apiplans.Compose(plan))
	}
}

// IndexPlanHandler plans a live index.
func IndexPlanHandler(coord Coordinator, indexParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		plan, err := coord.Plan(c.Request().Context(), c.Param(indexParam))
		if err != nil {
			return planError(err)
		}
		return c.JSON(http.StatusOK, apiplans.Compose(plan))
	}
}

// ApplyHandler applies a plan to a live index.
//
// It should be behind auth.Middleware.
func ApplyHandler(coord Coordinator, indexParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		index := c.Param(indexParam)
		by := ""
		if claims, ok := auth.ClaimsOf(c); ok {
			by = claims.Subject
		}

		plan, err := coord.Apply(c.Request().Context(), index)
		if err != nil {
			return planError(err)
		}
		c.Logger().Infof("applied migration to %s (%s) by %s", index, plan.Action, by)
		return c.JSON(http.StatusOK, apiplans.Applied{
			Detail:    apiplans.Compose(plan),
			AppliedBy: by,
		})
	}
}

func planError(err error) error {
	var rerr *es.ResponseError
	switch {
	case errors.Is(err, migration.ErrIndexNewer):
		return apierr.Conflict(
			"the index has been migrated by a newer release",
			apierr.WithAdvice("downgrade is not supported. upgrade the type registry."),
			apierr.WithError(err),
		)
	case errors.Is(err, migration.ErrReindexRequired):
		return apierr.Conflict(
			"types should be moved into the index",
			apierr.WithAdvice("reindex documents of the types before applying."),
			apierr.WithError(err),
		)
	case errors.Is(err, es.ErrAmbiguousIndex):
		return apierr.BadRequest("specify a concrete index, or an alias to a single index.", err)
	case errors.As(err, &rerr):
		return apierr.ServiceUnavailable("elasticsearch responded error. retry later.", err)
	default:
		return apierr.InternalServerError(err)
	}
}
