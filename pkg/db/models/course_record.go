package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/coursemarket-backend/pkg/enums"
)

// CourseRecord is one ledger entry keyed by the ownership hash of a
// (course id, buyer) pair. Hashes and addresses are stored as 0x hex.
type CourseRecord struct {
	Hash      string            `gorm:"column:hash;type:char(66);primaryKey"`
	CourseID  string            `gorm:"column:course_id;type:char(34);not null"`
	Position  int64             `gorm:"column:position;not null;uniqueIndex:ux_course_records_position"`
	PriceWei  decimal.Decimal   `gorm:"column:price_wei;type:numeric(78,0);not null"`
	Proof     string            `gorm:"column:proof;type:char(66);not null"`
	Owner     string            `gorm:"column:owner_address;type:varchar(42);not null;index:ix_course_records_owner"`
	State     enums.CourseState `gorm:"column:state;type:course_state_enum;not null"`
	CreatedAt time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (CourseRecord) TableName() string { return "course_records" }
