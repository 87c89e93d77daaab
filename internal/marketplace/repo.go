package marketplace

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/coursemarket-backend/pkg/db/models"
	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// Repository persists the contract root, the course ledger and the
// simulated native account balances.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// GetContract returns the contract root or nil when it was never deployed.
func (r *Repository) GetContract(ctx context.Context) (*models.Contract, error) {
	return r.findContract(ctx, false)
}

// LockContract is GetContract holding a row lock until the surrounding
// transaction ends. Every transition goes through the root row, so this
// serializes writers across processes.
func (r *Repository) LockContract(ctx context.Context) (*models.Contract, error) {
	return r.findContract(ctx, true)
}

func (r *Repository) findContract(ctx context.Context, forUpdate bool) (*models.Contract, error) {
	query := r.db.WithContext(ctx).Order("created_at ASC")
	if forUpdate && r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var contract models.Contract
	err := query.First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *Repository) CreateContract(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *Repository) SaveContract(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Save(contract).Error
}

// FindCourse returns the record stored under hash, or nil if none exists.
func (r *Repository) FindCourse(ctx context.Context, hash string) (*models.CourseRecord, error) {
	var record models.CourseRecord
	err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindCourseAt returns the record at an enumeration position, or nil.
func (r *Repository) FindCourseAt(ctx context.Context, position int64) (*models.CourseRecord, error) {
	var record models.CourseRecord
	err := r.db.WithContext(ctx).Where("position = ?", position).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) CreateCourse(ctx context.Context, record *models.CourseRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *Repository) SaveCourse(ctx context.Context, record *models.CourseRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// ListCoursesByOwner returns every record owned by the address in index order.
func (r *Repository) ListCoursesByOwner(ctx context.Context, owner string) ([]models.CourseRecord, error) {
	var rows []models.CourseRecord
	if err := r.db.WithContext(ctx).
		Where("owner_address = ?", owner).
		Order("position ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type listQuery struct {
	state  *enums.CourseState
	before *int64
	limit  int
}

// ListCourses returns records newest position first, optionally filtered by
// state and starting strictly below the cursor position.
func (r *Repository) ListCourses(ctx context.Context, opts listQuery) ([]models.CourseRecord, error) {
	query := r.db.WithContext(ctx).Model(&models.CourseRecord{})
	if opts.state != nil {
		query = query.Where("state = ?", *opts.state)
	}
	if opts.before != nil {
		query = query.Where("position < ?", *opts.before)
	}
	query = query.Order("position DESC").Limit(opts.limit)

	var rows []models.CourseRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteAllCourses wipes the ledger. Only self destruct calls it.
func (r *Repository) DeleteAllCourses(ctx context.Context) error {
	return r.db.WithContext(ctx).Where("1 = 1").Delete(&models.CourseRecord{}).Error
}

// GetBalance returns the native balance of an address, zero when unknown.
func (r *Repository) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	var account models.Account
	err := r.db.WithContext(ctx).Where("address = ?", address).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return new(big.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return account.BalanceWei.BigInt(), nil
}

// Credit adds amount to an account, creating it on first use.
func (r *Repository) Credit(ctx context.Context, address string, amount *big.Int) error {
	now := time.Now().UTC()
	row := models.Account{
		Address:    address,
		BalanceWei: decimal.NewFromBigInt(amount, 0),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{
			"balance_wei": gorm.Expr("accounts.balance_wei + excluded.balance_wei"),
			"updated_at":  now,
		}),
	}).Create(&row).Error
}

// Debit subtracts amount from an account. It reports false without writing
// when the balance does not cover the amount.
func (r *Repository) Debit(ctx context.Context, address string, amount *big.Int) (bool, error) {
	value := decimal.NewFromBigInt(amount, 0)
	res := r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("address = ? AND balance_wei >= ?", address, value).
		Updates(map[string]any{
			"balance_wei": gorm.Expr("balance_wei - ?", value),
			"updated_at":  time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
