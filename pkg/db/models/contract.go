package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract is the root of the marketplace store: the administrator, the
// custody balance and the safety flags. The singleton index keeps it to
// exactly one row.
type Contract struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Singleton   bool            `gorm:"column:singleton;not null;default:true;uniqueIndex:ux_contracts_singleton"`
	Address     string          `gorm:"column:address;type:varchar(42);not null;uniqueIndex:ux_contracts_address"`
	Admin       string          `gorm:"column:admin_address;type:varchar(42);not null"`
	BalanceWei  decimal.Decimal `gorm:"column:balance_wei;type:numeric(78,0);not null"`
	CourseCount int64           `gorm:"column:course_count;not null;default:0"`
	Paused      bool            `gorm:"column:paused;not null;default:false"`
	Destroyed   bool            `gorm:"column:destroyed;not null;default:false"`
	DestroyedAt *time.Time      `gorm:"column:destroyed_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Contract) TableName() string { return "contracts" }
