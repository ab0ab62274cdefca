package main

import (
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/somigrate/cmd/somigrated/handlers"
	"github.com/opst/somigrate/pkg/auth"
	"github.com/opst/somigrate/pkg/echoutil"
	"github.com/opst/somigrate/pkg/migration"
	"github.com/opst/somigrate/pkg/savedobjects/registry"
)

// api returns a path under /api, terminated with "/".
func api(p ...string) string {
	return path.Join(append([]string{"/api"}, p...)...) + "/"
}

// newServer builds echo with all routes.
func newServer(
	loglevel string,
	reg *registry.Registry,
	coord handlers.Coordinator,
	drift handlers.DriftSource,
	signingKey []byte,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Pre(middleware.AddTrailingSlash())

	echoutil.SetLevel(e, loglevel)
	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}
	e.Use(echoutil.LogHandlerFunc)

	{
		e.GET(api("types/:type/legacy-index"), handlers.LegacyIndexHandler("type"))
		e.GET(api("indices/:index/legacy-types"), handlers.LegacyTypesHandler("index"))
		e.GET(api("hashes/:type/:hash"), handlers.HashVersionHandler("type", "hash"))
	}

	{
		e.POST(api("plans"), handlers.OfflinePlanHandler(migration.NewPlanner(reg)))
		e.GET(api("indices/:index/plan"), handlers.IndexPlanHandler(coord, "index"))
		e.POST(
			api("indices/:index/apply"),
			handlers.ApplyHandler(coord, "index"),
			auth.Middleware(signingKey),
		)
		e.GET(api("drift"), handlers.DriftHandler(drift))
	}

	return e
}
