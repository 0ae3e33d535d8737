package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// StockMovement is an immutable signed-quantity inventory fact. Outbound
// movements are stored negative. Rows are never updated; the only delete
// path is the annotation-correction repost, keyed by AnnotationValueID.
type StockMovement struct {
	ID           uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID uuid.UUID          `gorm:"column:department_id;type:uuid;not null;index"`
	ItemID       uuid.UUID          `gorm:"column:item_id;type:uuid;not null;index:idx_movement_item_moved"`
	LotID        *uuid.UUID         `gorm:"column:lot_id;type:uuid;index:idx_movement_lot_moved"`
	Quantity     decimal.Decimal    `gorm:"column:quantity;type:numeric;not null"`
	Type         enums.MovementType `gorm:"column:type;not null"`
	Reason       string             `gorm:"column:reason;not null;default:''"`
	// MovedAt is the logical event time; balances are computed over it, not
	// over the row creation time.
	MovedAt           time.Time  `gorm:"column:moved_at;not null;index:idx_movement_item_moved;index:idx_movement_lot_moved"`
	AnnotationValueID *uuid.UUID `gorm:"column:annotation_value_id;type:uuid;index"`
	IsExternalSync    bool       `gorm:"column:is_external_sync;not null;default:false"`
	CreatedAt         time.Time  `gorm:"column:created_at;autoCreateTime"`
}
