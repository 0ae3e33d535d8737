package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// ProductionOrder targets one item and optionally one lot. Sub-lot orders
// reference a parent order and inherit its completed records for shared
// processes.
type ProductionOrder struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID   uuid.UUID          `gorm:"column:department_id;type:uuid;not null;index"`
	ItemID         uuid.UUID          `gorm:"column:item_id;type:uuid;not null;index"`
	LotID          *uuid.UUID         `gorm:"column:lot_id;type:uuid;index"`
	ParentOrderID  *uuid.UUID         `gorm:"column:parent_order_id;type:uuid"`
	TargetQuantity decimal.Decimal    `gorm:"column:target_quantity;type:numeric;not null"`
	Status         enums.OrderStatus  `gorm:"column:status;not null;default:pending"`
	Note           *string            `gorm:"column:note"`
	Records        []ProductionRecord `gorm:"foreignKey:ProductionOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
