package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/coursemarket-backend/api/middleware"
	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/api/validators"
	"github.com/angelmondragon/coursemarket-backend/internal/catalog"
	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

// purchaseRequest is the order form. The email only feeds the proof and is
// never persisted.
type purchaseRequest struct {
	CourseID     string `json:"course_id" validate:"required,max=16"`
	Email        string `json:"email" validate:"required,email"`
	ConfirmEmail string `json:"confirm_email" validate:"required,eqfield=Email"`
	ValueWei     string `json:"value_wei" validate:"required_without=PriceEth,omitempty,wei"`
	PriceEth     string `json:"price_eth" validate:"required_without=ValueWei"`
	AcceptTOS    bool   `json:"accept_tos" validate:"required"`
}

type repurchaseRequest struct {
	ValueWei string `json:"value_wei" validate:"required_without=PriceEth,omitempty,wei"`
	PriceEth string `json:"price_eth" validate:"required_without=ValueWei"`
}

// Purchase buys a catalog course for the signed-in wallet.
func Purchase(cat *catalog.Catalog, seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cat == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		wallet, ok := middleware.WalletFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
			return
		}

		var body purchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		meta, ok := cat.ByID(strings.TrimSpace(body.CourseID))
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "course not in catalog"))
			return
		}
		courseID, err := meta.CourseID()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course id"))
			return
		}
		value, err := resolveValue(body.ValueWei, body.PriceEth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderHash := identity.DeriveHash(courseID, wallet)
		proof := identity.ProofFromEmail(strings.TrimSpace(body.Email), orderHash)

		submitCall(w, r, seq, cfg.WaitTimeout, value, marketplace.Call{
			Method:   enums.MethodPurchase,
			CourseID: courseID,
			Proof:    proof,
		}, logg)
	}
}

// Repurchase pays again for a deactivated course. Ownership and state are
// checked by the contract when the call is applied.
func Repurchase(seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hash, err := identity.ParseHash(strings.TrimSpace(chi.URLParam(r, "hash")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course hash"))
			return
		}

		var body repurchaseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		value, err := resolveValue(body.ValueWei, body.PriceEth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		submitCall(w, r, seq, cfg.WaitTimeout, value, marketplace.Call{
			Method: enums.MethodRepurchaseCourse,
			Hash:   hash,
		}, logg)
	}
}
