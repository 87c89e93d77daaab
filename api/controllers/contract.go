package controllers

import (
	"math/big"
	"net/http"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/api/validators"
	"github.com/angelmondragon/coursemarket-backend/internal/courses"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/config"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

type contractView struct {
	Address      string `json:"address"`
	Admin        string `json:"admin"`
	BalanceWei   string `json:"balance_wei"`
	BalanceEth   string `json:"balance_eth"`
	TotalCourses uint64 `json:"total_courses"`
	Paused       bool   `json:"paused"`
	Destroyed    bool   `json:"destroyed"`
}

func newContractView(state marketplace.ContractState) contractView {
	balance := state.Balance
	if balance == nil {
		balance = new(big.Int)
	}
	return contractView{
		Address:      state.Address.Hex(),
		Admin:        state.Admin.Hex(),
		BalanceWei:   balance.String(),
		BalanceEth:   courses.FromWei(balance),
		TotalCourses: state.TotalCourses,
		Paused:       state.Paused,
		Destroyed:    state.Destroyed,
	}
}

func ContractStatus(reader ContractReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "contract unavailable"))
			return
		}
		state, err := reader.Contract(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newContractView(state))
	}
}

type depositRequest struct {
	ValueWei string `json:"value_wei" validate:"required_without=PriceEth,omitempty,wei"`
	PriceEth string `json:"price_eth" validate:"required_without=ValueWei"`
}

// ContractDeposit sends a plain value transfer to the contract.
func ContractDeposit(seq Submitter, cfg config.MarketplaceConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body depositRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		value, err := resolveValue(body.ValueWei, body.PriceEth)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		submitCall(w, r, seq, cfg.WaitTimeout, value, marketplace.Call{Method: enums.MethodDeposit}, logg)
	}
}
