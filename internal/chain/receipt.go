package chain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/angelmondragon/coursemarket-backend/internal/marketplace"
	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/coursemarket-backend/pkg/errors"
)

// Submission is a contract call as sent by a wallet.
type Submission struct {
	Sender common.Address
	Value  *big.Int
	Call   marketplace.Call
}

// Receipt is the outcome of a submission. Status stays pending until the
// sequencer finalizes it.
type Receipt struct {
	TransactionID uuid.UUID               `json:"transaction_id"`
	Hash          common.Hash             `json:"hash"`
	Method        enums.ContractMethod    `json:"method"`
	Sender        common.Address          `json:"sender"`
	Value         *big.Int                `json:"value"`
	Status        enums.TransactionStatus `json:"status"`
	BlockNumber   *int64                  `json:"block_number,omitempty"`
	CourseHash    *common.Hash            `json:"course_hash,omitempty"`
	ErrorCode     string                  `json:"error_code,omitempty"`
	ErrorMessage  string                  `json:"error_message,omitempty"`
	Transfers     []marketplace.Transfer  `json:"transfers,omitempty"`
	SubmittedAt   time.Time               `json:"submitted_at"`
	FinalizedAt   *time.Time              `json:"finalized_at,omitempty"`

	// Err is the typed failure of a failed receipt.
	Err error `json:"-"`
}

// Pending is the future returned by Submit. It resolves exactly once, when
// the transaction is applied or rejected.
type Pending struct {
	id        uuid.UUID
	hash      common.Hash
	submitted Receipt
	final     *Receipt
	done      chan struct{}
}

func newPending(submitted Receipt) *Pending {
	return &Pending{
		id:        submitted.TransactionID,
		hash:      submitted.Hash,
		submitted: submitted,
		done:      make(chan struct{}),
	}
}

func (p *Pending) ID() uuid.UUID { return p.id }

func (p *Pending) Hash() common.Hash { return p.hash }

// Done is closed once the receipt is final.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Receipt returns the final receipt, or false while still pending.
func (p *Pending) Receipt() (*Receipt, bool) {
	select {
	case <-p.done:
		return p.final, true
	default:
		return nil, false
	}
}

// Wait blocks until finality or until ctx ends. A context deadline is
// reported as CodeTimeout; the transaction itself stays queued.
func (p *Pending) Wait(ctx context.Context) (*Receipt, error) {
	select {
	case <-p.done:
		return p.final, nil
	case <-ctx.Done():
		return nil, pkgerrors.Wrap(pkgerrors.CodeTimeout, ctx.Err(), "transaction still pending").
			WithDetails(map[string]any{"transaction_id": p.id.String()})
	}
}

// Submitted returns the receipt as it was when the call was queued.
func (p *Pending) Submitted() Receipt {
	return p.submitted
}

func (p *Pending) resolve(final *Receipt) {
	p.final = final
	close(p.done)
}

func receiptFromModel(row *models.Transaction) *Receipt {
	receipt := &Receipt{
		TransactionID: row.ID,
		Hash:          common.HexToHash(row.Hash),
		Method:        row.Method,
		Sender:        common.HexToAddress(row.Sender),
		Value:         row.ValueWei.BigInt(),
		Status:        row.Status,
		BlockNumber:   row.BlockNumber,
		SubmittedAt:   row.SubmittedAt,
		FinalizedAt:   row.FinalizedAt,
	}
	if row.CourseHash != nil {
		hash := common.HexToHash(*row.CourseHash)
		receipt.CourseHash = &hash
	}
	if row.ErrorCode != nil {
		receipt.ErrorCode = *row.ErrorCode
	}
	if row.ErrorMessage != nil {
		receipt.ErrorMessage = *row.ErrorMessage
	}
	if row.Status == enums.TransactionStatusFailed {
		receipt.Err = pkgerrors.New(pkgerrors.Code(receipt.ErrorCode), receipt.ErrorMessage)
	}
	return receipt
}
