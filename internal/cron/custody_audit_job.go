package cron

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
	"github.com/angelmondragon/coursemarket-backend/pkg/logger"
)

type contractReader interface {
	Contract(ctx context.Context) (marketplace.ContractState, error)
}

type custodyJournal interface {
	CustodyBalance(ctx context.Context, custodian common.Address) (*big.Int, error)
}

type driftRecorder interface {
	SetCustodyDrift(wei *big.Int)
}

type CustodyAuditJobParams struct {
	Logger   *logger.Logger
	Contract contractReader
	Journal  custodyJournal
	Metrics  driftRecorder
}

// NewCustodyAuditJob checks that the contract's stored balance equals the
// balance replayed from the custody journal. Any drift fails the job.
func NewCustodyAuditJob(params CustodyAuditJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Contract == nil {
		return nil, fmt.Errorf("contract reader required")
	}
	if params.Journal == nil {
		return nil, fmt.Errorf("custody journal required")
	}
	return &custodyAuditJob{
		logg:     params.Logger,
		contract: params.Contract,
		journal:  params.Journal,
		metrics:  params.Metrics,
	}, nil
}

type custodyAuditJob struct {
	logg     *logger.Logger
	contract contractReader
	journal  custodyJournal
	metrics  driftRecorder
}

func (j *custodyAuditJob) Name() string { return "custody-audit" }

func (j *custodyAuditJob) Run(ctx context.Context) error {
	state, err := j.contract.Contract(ctx)
	if pkgerrors.IsCode(err, pkgerrors.CodeDestroyed) {
		j.logg.Info(ctx, "contract destroyed; nothing to audit")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load contract: %w", err)
	}
	replayed, err := j.journal.CustodyBalance(ctx, state.Address)
	if err != nil {
		return fmt.Errorf("replay custody journal: %w", err)
	}
	stored := state.Balance
	if stored == nil {
		stored = new(big.Int)
	}

	drift := new(big.Int).Sub(stored, replayed)
	if j.metrics != nil {
		j.metrics.SetCustodyDrift(drift)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"contract":     state.Address.Hex(),
		"stored_wei":   stored.String(),
		"replayed_wei": replayed.String(),
		"drift_wei":    drift.String(),
	})
	if drift.Sign() != 0 {
		j.logg.Warn(logCtx, "custody.drift_detected")
		return fmt.Errorf("custody drift of %s wei", drift)
	}
	j.logg.Info(logCtx, "custody balance matches journal")
	return nil
}
