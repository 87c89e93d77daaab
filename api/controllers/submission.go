package controllers

import (
	"context"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/angelmondragon/coursemarket-backend/api/middleware"
	"github.com/angelmondragon/coursemarket-backend/api/responses"
	"github.com/angelmondragon/coursemarket-backend/internal/chain"
	"github.com/angelmondragon/coursemarket-backend/internal/courses"
	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

const defaultWaitTimeout = 30 * time.Second

// Submitter queues contract calls. *chain.Sequencer implements it.
type Submitter interface {
	Submit(ctx context.Context, sub chain.Submission) (*chain.Pending, error)
}

// TransactionReader serves receipts. *chain.Sequencer implements it.
type TransactionReader interface {
	Lookup(ctx context.Context, id uuid.UUID) (*chain.Receipt, error)
	ListBySender(ctx context.Context, params chain.ListParams) (*chain.ListResult, error)
}

// ContractReader is the read side of the marketplace contract.
type ContractReader interface {
	Contract(ctx context.Context) (marketplace.ContractState, error)
	GetCourseByHash(ctx context.Context, hash common.Hash) (marketplace.Course, error)
	GetCourseHashAtIndex(ctx context.Context, index uint64) (common.Hash, error)
}

type transactionResponse struct {
	Transaction chain.Receipt `json:"transaction"`
}

// submitCall sends the call on behalf of the signed-in wallet. Without
// ?wait=true it answers 202 with the pending receipt. With it, the request
// blocks until finality or waitTimeout and a reverted call is rendered as
// its domain error.
func submitCall(w http.ResponseWriter, r *http.Request, seq Submitter, waitTimeout time.Duration, value *big.Int, call marketplace.Call, logg *logger.Logger) {
	ctx := r.Context()
	if seq == nil {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sequencer unavailable"))
		return
	}
	sender, ok := middleware.WalletFromContext(ctx)
	if !ok {
		responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "wallet context missing"))
		return
	}

	pending, err := seq.Submit(ctx, chain.Submission{Sender: sender, Value: value, Call: call})
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if logg != nil {
		ctx = logg.WithTxID(ctx, pending.ID().String())
		ctx = logg.WithField(ctx, "method", string(call.Method))
		logg.Info(ctx, "transaction.submitted")
	}

	if !wantsWait(r) {
		responses.WriteAccepted(w, "/api/v1/transactions/"+pending.ID().String(), transactionResponse{Transaction: pending.Submitted()})
		return
	}

	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()

	receipt, err := pending.Wait(waitCtx)
	if err != nil {
		responses.WriteError(ctx, logg, w, err)
		return
	}
	if receipt.Status == enums.TransactionStatusFailed {
		responses.WriteError(ctx, logg, w, receiptError(receipt))
		return
	}
	responses.WriteSuccess(w, transactionResponse{Transaction: *receipt})
}

func receiptError(receipt *chain.Receipt) error {
	code := pkgerrors.Code(receipt.ErrorCode)
	if typed := pkgerrors.As(receipt.Err); typed != nil {
		code = typed.Code()
	}
	return pkgerrors.Wrap(code, receipt.Err, receipt.ErrorMessage).
		WithDetails(map[string]any{"transaction_id": receipt.TransactionID.String()})
}

func wantsWait(r *http.Request) bool {
	ok, _ := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get("wait")))
	return ok
}

// resolveValue prefers an exact wei amount and falls back to an ether
// decimal string.
func resolveValue(valueWei, priceEth string) (*big.Int, error) {
	if raw := strings.TrimSpace(valueWei); raw != "" {
		value, ok := new(big.Int).SetString(raw, 10)
		if !ok || value.Sign() <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "value_wei must be a positive integer")
		}
		return value, nil
	}
	value, err := courses.ToWei(priceEth)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price_eth")
	}
	if value.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be greater than zero")
	}
	return value, nil
}
