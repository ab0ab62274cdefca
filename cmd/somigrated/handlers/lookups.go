package handlers

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	apierr "github.com/opst/somigrate/pkg/api/types/errors"
	"github.com/opst/somigrate/pkg/api/types/lookups"
	"github.com/opst/somigrate/pkg/savedobjects"
	"github.com/opst/somigrate/pkg/savedobjects/hashversion"
	"github.com/opst/somigrate/pkg/savedobjects/indextypes"
)

// LegacyIndexHandler responds the index where the type was stored before multiple indices.
func LegacyIndexHandler(typeParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		t := savedobjects.Type(c.Param(typeParam))
		index, ok := indextypes.LegacyIndexOf(t)
		if !ok {
			return apierr.NotFound(fmt.Sprintf("type %s is not in legacy indices", t))
		}
		return c.JSON(http.StatusOK, lookups.LegacyIndex{Type: t, Index: index})
	}
}

// LegacyTypesHandler responds types which were stored in the index before multiple indices.
func LegacyTypesHandler(indexParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		index := c.Param(indexParam)
		types, ok := indextypes.TypesIn(index)
		if !ok {
			return apierr.NotFound(fmt.Sprintf("index %s is not a legacy index", index))
		}
		return c.JSON(http.StatusOK, lookups.LegacyTypes{Index: index, Types: types})
	}
}

// HashVersionHandler translates a legacy mappings hash of a type into a model version.
func HashVersionHandler(typeParam, hashParam string) echo.HandlerFunc {
	return func(c echo.Context) error {
		t := savedobjects.Type(c.Param(typeParam))
		hash := c.Param(hashParam)
		version, ok := hashversion.Lookup(t, hash)
		if !ok {
			return apierr.NotFound(fmt.Sprintf("hash %s of type %s is unknown", hash, t))
		}
		return c.JSON(http.StatusOK, lookups.HashVersion{Type: t, Hash: hash, Version: version})
	}
}
