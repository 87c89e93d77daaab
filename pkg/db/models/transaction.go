package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// Transaction is the receipt of one submitted contract call. It is written
// as pending when queued and finalized by the sequencer. Instance names the
// api process that queued it.
type Transaction struct {
	ID           uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	Hash         string                  `gorm:"column:hash;type:char(66);not null;uniqueIndex:ux_transactions_hash"`
	Method       enums.ContractMethod    `gorm:"column:method;type:contract_method_enum;not null"`
	Sender       string                  `gorm:"column:sender_address;type:varchar(42);not null;index:ix_transactions_sender"`
	Instance     string                  `gorm:"column:instance_id;type:varchar(128);not null;default:'';index:ix_transactions_instance"`
	ValueWei     decimal.Decimal         `gorm:"column:value_wei;type:numeric(78,0);not null"`
	Args         json.RawMessage         `gorm:"column:args;type:jsonb"`
	Status       enums.TransactionStatus `gorm:"column:status;type:transaction_status_enum;not null"`
	BlockNumber  *int64                  `gorm:"column:block_number"`
	CourseHash   *string                 `gorm:"column:course_hash;type:char(66)"`
	ErrorCode    *string                 `gorm:"column:error_code"`
	ErrorMessage *string                 `gorm:"column:error_message"`
	SubmittedAt  time.Time               `gorm:"column:submitted_at;not null"`
	FinalizedAt  *time.Time              `gorm:"column:finalized_at"`
}

func (Transaction) TableName() string { return "transactions" }
