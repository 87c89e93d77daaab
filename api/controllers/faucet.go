package controllers

import (
	"context"
	"math/big"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/api/validators"
	"github.com/angelmondragon/coursemarket-backend/internal/identity"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

// Funder credits simulated native balances.
type Funder interface {
	Fund(ctx context.Context, address common.Address, amount *big.Int) (*big.Int, error)
}

type faucetRequest struct {
	Address   string `json:"address" validate:"required,eth_addr"`
	AmountWei string `json:"amount_wei" validate:"required,wei"`
}

// DevFaucet tops up a wallet so it can pay for purchases in local setups.
func DevFaucet(funder Funder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if funder == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "faucet unavailable"))
			return
		}
		var body faucetRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		address, err := identity.ParseAddress(strings.TrimSpace(body.Address))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address"))
			return
		}
		amount, ok := new(big.Int).SetString(strings.TrimSpace(body.AmountWei), 10)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid amount_wei"))
			return
		}
		balance, err := funder.Fund(r.Context(), address, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithFields(r.Context(), map[string]any{"address": address.Hex(), "amount_wei": amount.String()})
			logg.Info(ctx, "faucet.funded")
		}
		responses.WriteSuccess(w, balanceView(address, balance))
	}
}
