package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a native balance held outside the contract.
type Account struct {
	Address    string          `gorm:"column:address;type:varchar(42);primaryKey"`
	BalanceWei decimal.Decimal `gorm:"column:balance_wei;type:numeric(78,0);not null"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string { return "accounts" }
