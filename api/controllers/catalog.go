package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

func CatalogList(cat *catalog.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"courses": cat.All()})
	}
}

func CatalogBySlug(cat *catalog.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		course, ok := cat.BySlug(strings.TrimSpace(chi.URLParam(r, "slug")))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "course not found"))
			return
		}
		responses.WriteSuccess(w, course)
	}
}
