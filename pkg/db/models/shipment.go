package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// Shipment is one shipped (or planned) lot allocation against a sales order.
type Shipment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID   uuid.UUID            `gorm:"column:department_id;type:uuid;not null;index"`
	SalesOrderID   uuid.UUID            `gorm:"column:sales_order_id;type:uuid;not null;index"`
	ItemID         uuid.UUID            `gorm:"column:item_id;type:uuid;not null"`
	LotID          *uuid.UUID           `gorm:"column:lot_id;type:uuid;index"`
	ShipmentNumber string               `gorm:"column:shipment_number;not null"`
	ShippingDate   *time.Time           `gorm:"column:shipping_date"`
	Quantity       decimal.Decimal      `gorm:"column:quantity;type:numeric;not null"`
	Status         enums.ShipmentStatus `gorm:"column:status;not null;default:planned"`
	Note           *string              `gorm:"column:note"`
	Lot            *Lot                 `gorm:"foreignKey:LotID"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
