package ledger

import (
	"context"
	"math/big"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const custodyBatchSize = 500

// Repository manages persistence for custody ledger events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.LedgerEvent) error
	ListByCourseHash(ctx context.Context, courseHash string) ([]models.LedgerEvent, error)
	ListByTransactionID(ctx context.Context, txID uuid.UUID) ([]models.LedgerEvent, error)
	FlowTotals(ctx context.Context, address string) (in *big.Int, out *big.Int, err error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, event *models.LedgerEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *repository) ListByCourseHash(ctx context.Context, courseHash string) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	if err := r.db.WithContext(ctx).
		Where("course_hash = ?", courseHash).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repository) ListByTransactionID(ctx context.Context, txID uuid.UUID) ([]models.LedgerEvent, error) {
	var events []models.LedgerEvent
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", txID).
		Order("created_at ASC").
		Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// FlowTotals sums every amount received and sent by address. Amounts are
// added in Go because numeric(78,0) does not survive every driver's SUM.
func (r *repository) FlowTotals(ctx context.Context, address string) (*big.Int, *big.Int, error) {
	in, out := new(big.Int), new(big.Int)
	var batch []models.LedgerEvent
	err := r.db.WithContext(ctx).
		Where("to_address = ? OR from_address = ?", address, address).
		FindInBatches(&batch, custodyBatchSize, func(tx *gorm.DB, _ int) error {
			for _, event := range batch {
				amount := event.AmountWei.BigInt()
				if event.ToAddress == address {
					in.Add(in, amount)
				}
				if event.FromAddress == address {
					out.Add(out, amount)
				}
			}
			return nil
		}).Error
	if err != nil {
		return nil, nil, err
	}
	return in, out, nil
}
