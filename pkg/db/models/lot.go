package models

import (
	"time"

	"github.com/google/uuid"
)

// Lot is a traceable batch of one item. It has no quantity column; its
// balance is the sum of its stock movements.
type Lot struct {
	ID           uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID uuid.UUID  `gorm:"column:department_id;type:uuid;not null;index"`
	ItemID       uuid.UUID  `gorm:"column:item_id;type:uuid;not null;uniqueIndex:idx_lot_item_number"`
	LotNumber    string     `gorm:"column:lot_number;not null;uniqueIndex:idx_lot_item_number"`
	ExpiredAt    *time.Time `gorm:"column:expired_at"`
	Item         *Item      `gorm:"foreignKey:ItemID"`
	CreatedAt    time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
