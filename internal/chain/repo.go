package chain

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
	pkgpagination "github.com/angelmondragon/coursemarket-backend/pkg/pagination"
)

// blockLockKey names the Postgres advisory lock guarding block allocation.
const blockLockKey int64 = 0x636f7572736573

// Repository persists submitted transactions and their receipts.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, row *models.Transaction) error {
	return r.db.WithContext(ctx).Create(row).Error
}

// FindByID returns the transaction or nil when unknown.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	var row models.Transaction
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ListBySender returns a sender's transactions, newest first.
func (r *Repository) ListBySender(ctx context.Context, sender string, cursor *pkgpagination.Cursor, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).Model(&models.Transaction{}).Where("sender_address = ?", sender)
	if cursor != nil {
		query = query.Where("(submitted_at < ?) OR (submitted_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Transaction
	if err := query.Order("submitted_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkSucceeded finalizes a pending transaction. It only touches rows still
// pending.
func (r *Repository) MarkSucceeded(ctx context.Context, id uuid.UUID, block int64, courseHash *string, at time.Time) error {
	return r.finalize(ctx, id, map[string]any{
		"status":       enums.TransactionStatusSucceeded,
		"block_number": block,
		"course_hash":  courseHash,
		"finalized_at": at,
	})
}

func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, block *int64, code, message string, at time.Time) error {
	return r.finalize(ctx, id, map[string]any{
		"status":        enums.TransactionStatusFailed,
		"block_number":  block,
		"error_code":    code,
		"error_message": message,
		"finalized_at":  at,
	})
}

func (r *Repository) finalize(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, enums.TransactionStatusPending).
		Updates(updates).Error
}

// FailPending rejects the transactions an earlier run of instance left
// pending. Rows queued by other instances are theirs to finalize.
func (r *Repository) FailPending(ctx context.Context, instance, code, message string, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("status = ? AND instance_id = ?", enums.TransactionStatusPending, instance).
		Updates(map[string]any{
			"status":        enums.TransactionStatusFailed,
			"error_code":    code,
			"error_message": message,
			"finalized_at":  at,
		})
	return res.RowsAffected, res.Error
}

// NextBlock allocates the block after the latest one. It must run inside
// the transaction that records the block; on Postgres an advisory lock held
// until commit keeps concurrent sequencers from allocating the same number.
func (r *Repository) NextBlock(ctx context.Context) (int64, error) {
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		if err := r.db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", blockLockKey).Error; err != nil {
			return 0, err
		}
	}
	latest, err := r.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	return latest + 1, nil
}

// LatestBlock returns the highest block number assigned so far, zero if none.
func (r *Repository) LatestBlock(ctx context.Context) (int64, error) {
	var latest sql.NullInt64
	row := r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Select("MAX(block_number)").
		Row()
	if err := row.Scan(&latest); err != nil {
		return 0, err
	}
	return latest.Int64, nil
}
