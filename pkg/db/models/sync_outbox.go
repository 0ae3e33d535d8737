package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// SyncOutbox queues one qualifying local stock movement for delivery to the
// external procurement system. Rows are written in the same transaction as
// the movement and drained by the sync worker with at-least-once semantics.
type SyncOutbox struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	MovementID uuid.UUID `gorm:"column:movement_id;type:uuid;not null;uniqueIndex"`
	SKU        string    `gorm:"column:sku;not null"`
	LotNumber  *string   `gorm:"column:lot_number"`
	// Quantity is the absolute value; direction travels in Type.
	Quantity      decimal.Decimal    `gorm:"column:quantity;type:numeric;not null"`
	Type          enums.MovementType `gorm:"column:type;not null"`
	Reason        string             `gorm:"column:reason;not null;default:''"`
	PublishedAt   *time.Time         `gorm:"column:published_at;index"`
	AttemptCount  int                `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt *time.Time         `gorm:"column:next_attempt_at"`
	LastError     *string            `gorm:"column:last_error"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
}
