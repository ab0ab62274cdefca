package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/somigrate/pkg/api/types/errors"
	apiplans "github.com/opst/somigrate/pkg/api/types/plans"
	"github.com/opst/somigrate/pkg/migration"
)

type DriftSource interface {
	Latest() (migration.Drift, bool)
}

var _ DriftSource = &migration.Monitor{}

// DriftHandler responds the latest drift check.
func DriftHandler(source DriftSource) echo.HandlerFunc {
	return func(c echo.Context) error {
		d, ok := source.Latest()
		if !ok {
			return apierr.ServiceUnavailable(
				"drift check has not been done. it may be disabled by config.", nil,
			)
		}
		return c.JSON(http.StatusOK, apiplans.ComposeReport(d))
	}
}
