package controllers

import (
	"math/big"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/api/validators"
	"github.com/angelmondragon/coursemarket-backend/internal/courses"
	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

// AdminCourses lists ledger records newest index first.
func AdminCourses(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courses service unavailable"))
			return
		}
		pageQuery, err := validators.ParsePageQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ManagedCourses(r.Context(), courses.ManagedParams{
			State:  strings.TrimSpace(r.URL.Query().Get("state")),
			Cursor: pageQuery.Cursor,
			Limit:  pageQuery.Limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminSearchCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courses service unavailable"))
			return
		}
		course, err := svc.SearchCourse(r.Context(), strings.TrimSpace(r.URL.Query().Get("hash")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, course)
	}
}

type verifyRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// AdminVerifyCourse recomputes the proof from an email. It grants nothing.
func AdminVerifyCourse(svc courses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "courses service unavailable"))
			return
		}
		var body verifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.VerifyOwnership(r.Context(), strings.TrimSpace(chi.URLParam(r, "hash")), strings.TrimSpace(body.Email))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminCourseTransition submits activate or deactivate for the course in
// the path.
func AdminCourseTransition(method enums.ContractMethod, seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash, err := identity.ParseHash(strings.TrimSpace(chi.URLParam(r, "hash")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course hash"))
			return
		}
		submitCall(w, r, seq, cfg.WaitTimeout, nil, marketplace.Call{Method: method, Hash: hash}, logg)
	}
}

type withdrawRequest struct {
	AmountWei string `json:"amount_wei" validate:"required,wei"`
}

func AdminWithdraw(seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body withdrawRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(body.AmountWei), 10)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount_wei"))
			return
		}
		submitCall(w, r, seq, cfg.WaitTimeout, nil, marketplace.Call{Method: enums.MethodWithdraw, Amount: amount}, logg)
	}
}

type transferOwnershipRequest struct {
	NewAdmin string `json:"new_admin" validate:"required,eth_addr"`
}

func AdminTransferOwnership(seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body transferOwnershipRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		newAdmin, err := identity.ParseAddress(strings.TrimSpace(body.NewAdmin))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid new_admin"))
			return
		}
		submitCall(w, r, seq, cfg.WaitTimeout, nil, marketplace.Call{Method: enums.MethodTransferOwnership, NewAdmin: newAdmin}, logg)
	}
}

// AdminContractCall submits an argument-free administrative call such as
// pause or self destruct.
func AdminContractCall(method enums.ContractMethod, seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		submitCall(w, r, seq, cfg.WaitTimeout, nil, marketplace.Call{Method: method}, logg)
	}
}
