package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service records custody fund movements. Callers pass the open transaction
// so the journal entry commits or rolls back with the transfer it describes.
type Service interface {
	RecordTransfer(ctx context.Context, tx *gorm.DB, input RecordTransferInput) (*models.LedgerEvent, error)
	History(ctx context.Context, courseHash common.Hash) ([]models.LedgerEvent, error)
	ForTransaction(ctx context.Context, txID uuid.UUID) ([]models.LedgerEvent, error)
	CustodyBalance(ctx context.Context, custodian common.Address) (*big.Int, error)
}

type service struct {
	repo Repository
}

// RecordTransferInput captures the immutable data a ledger event requires.
type RecordTransferInput struct {
	TransactionID uuid.UUID             `json:"transaction_id"`
	CourseHash    *common.Hash          `json:"course_hash,omitempty"`
	From          common.Address        `json:"from"`
	To            common.Address        `json:"to"`
	Type          enums.LedgerEventType `json:"type"`
	Amount        *big.Int              `json:"amount"`
	Metadata      json.RawMessage       `json:"metadata,omitempty"`
	// Custodian, when set, must be the receiving side of an inflow and the
	// paying side of an outflow.
	Custodian     common.Address        `json:"-"`
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) RecordTransfer(ctx context.Context, tx *gorm.DB, input RecordTransferInput) (*models.LedgerEvent, error) {
	if input.TransactionID == uuid.Nil {
		return nil, fmt.Errorf("transaction id is required")
	}
	if !input.Type.IsValid() {
		return nil, fmt.Errorf("invalid ledger event type %q", input.Type)
	}
	if input.Amount == nil || input.Amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	if input.Custodian != (common.Address{}) {
		side := input.From
		if input.Type.Inflow() {
			side = input.To
		}
		if side != input.Custodian {
			return nil, fmt.Errorf("%s transfer does not touch custodian %s", input.Type, input.Custodian.Hex())
		}
	}

	event := &models.LedgerEvent{
		ID:            uuid.New(),
		TransactionID: input.TransactionID,
		FromAddress:   input.From.Hex(),
		ToAddress:     input.To.Hex(),
		Type:          input.Type,
		AmountWei:     decimal.NewFromBigInt(input.Amount, 0),
		Metadata:      input.Metadata,
	}
	if input.CourseHash != nil {
		hash := input.CourseHash.Hex()
		event.CourseHash = &hash
	}

	if err := s.repo.WithTx(tx).Create(ctx, event); err != nil {
		return nil, err
	}
	return event, nil
}

func (s *service) History(ctx context.Context, courseHash common.Hash) ([]models.LedgerEvent, error) {
	if courseHash == (common.Hash{}) {
		return nil, fmt.Errorf("course hash is required")
	}
	return s.repo.ListByCourseHash(ctx, courseHash.Hex())
}

func (s *service) ForTransaction(ctx context.Context, txID uuid.UUID) ([]models.LedgerEvent, error) {
	if txID == uuid.Nil {
		return nil, fmt.Errorf("transaction id is required")
	}
	return s.repo.ListByTransactionID(ctx, txID)
}

// CustodyBalance replays the journal for custodian: everything received
// minus everything paid out.
func (s *service) CustodyBalance(ctx context.Context, custodian common.Address) (*big.Int, error) {
	in, out, err := s.repo.FlowTotals(ctx, custodian.Hex())
	if err != nil {
		return nil, err
	}
	return in.Sub(in, out), nil
}
