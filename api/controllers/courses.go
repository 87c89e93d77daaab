package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/internal/courses"
	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

// CourseHash derives the order hash a buyer would get for a course.
func CourseHash(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courses service unavailable"))
			return
		}
		query := r.URL.Query()
		buyer, err := identity.ParseAddress(strings.TrimSpace(query.Get("buyer")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid buyer address"))
			return
		}
		courseID := strings.TrimSpace(query.Get("course_id"))
		hash, err := svc.CourseHash(courseID, buyer)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"course_id": courseID,
			"buyer":     buyer.Hex(),
			"hash":      hash.Hex(),
		})
	}
}

// CourseByHash returns the raw ledger record. Unknown hashes yield the
// zero-owner record rather than 404.
func CourseByHash(reader ContractReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract unavailable"))
			return
		}
		hash, err := identity.ParseHash(strings.TrimSpace(chi.URLParam(r, "hash")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course hash"))
			return
		}
		course, err := reader.GetCourseByHash(r.Context(), hash)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, course)
	}
}

func CourseHashAtIndex(reader ContractReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract unavailable"))
			return
		}
		index, err := strconv.ParseUint(strings.TrimSpace(chi.URLParam(r, "index")), 10, 64)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "index must be a non-negative integer"))
			return
		}
		hash, err := reader.GetCourseHashAtIndex(r.Context(), index)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"index": index, "hash": hash.Hex()})
	}
}
