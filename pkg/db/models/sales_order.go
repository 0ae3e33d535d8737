package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// SalesOrder is customer demand for one item.
type SalesOrder struct {
	ID           uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID uuid.UUID              `gorm:"column:department_id;type:uuid;not null;uniqueIndex:idx_sales_order_dept_number"`
	PartnerID    *uuid.UUID             `gorm:"column:partner_id;type:uuid"`
	ItemID       uuid.UUID              `gorm:"column:item_id;type:uuid;not null;index"`
	OrderNumber  string                 `gorm:"column:order_number;not null;uniqueIndex:idx_sales_order_dept_number"`
	OrderDate    time.Time              `gorm:"column:order_date;not null"`
	DueDate      *time.Time             `gorm:"column:due_date"`
	Quantity     decimal.Decimal        `gorm:"column:quantity;type:numeric;not null"`
	Status       enums.SalesOrderStatus `gorm:"column:status;not null;default:pending"`
	Note         *string                `gorm:"column:note"`
	Partner      *Partner               `gorm:"foreignKey:PartnerID"`
	Item         *Item                  `gorm:"foreignKey:ItemID"`
	Shipments    []Shipment             `gorm:"foreignKey:SalesOrderID;constraint:OnDelete:CASCADE"`
	CreatedAt    time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
