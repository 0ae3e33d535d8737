package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BOMEdge is one directed parent -> child composition link with the child
// quantity required per unit of parent.
type BOMEdge struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ParentItemID uuid.UUID       `gorm:"column:parent_item_id;type:uuid;not null;uniqueIndex:idx_bom_parent_child"`
	ChildItemID  uuid.UUID       `gorm:"column:child_item_id;type:uuid;not null;uniqueIndex:idx_bom_parent_child"`
	Quantity     decimal.Decimal `gorm:"column:quantity;type:numeric;not null"`
	Note         *string         `gorm:"column:note"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
