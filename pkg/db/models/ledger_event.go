package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// LedgerEvent records an immutable movement of funds into or out of custody.
type LedgerEvent struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	TransactionID uuid.UUID             `gorm:"column:transaction_id;type:uuid;not null;index:ix_ledger_events_tx"`
	CourseHash    *string               `gorm:"column:course_hash;type:char(66);index:ix_ledger_events_course"`
	FromAddress   string                `gorm:"column:from_address;type:varchar(42);not null"`
	ToAddress     string                `gorm:"column:to_address;type:varchar(42);not null"`
	Type          enums.LedgerEventType `gorm:"column:type;type:ledger_event_type_enum;not null"`
	AmountWei     decimal.Decimal       `gorm:"column:amount_wei;type:numeric(78,0);not null"`
	Metadata      json.RawMessage       `gorm:"column:metadata;type:jsonb"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (LedgerEvent) TableName() string { return "ledger_events" }
