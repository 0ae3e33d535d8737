package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a manufactured or purchased article. Its stock is never stored on
// the row; balances are always derived from stock movements.
type Item struct {
	ID                uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID      uuid.UUID        `gorm:"column:department_id;type:uuid;not null;index"`
	Code              string           `gorm:"column:code;not null;uniqueIndex"`
	Name              string           `gorm:"column:name;not null"`
	Unit              string           `gorm:"column:unit;not null;default:''"`
	UnitPrice         *decimal.Decimal `gorm:"column:unit_price;type:numeric"`
	InventoryAlertQty decimal.Decimal  `gorm:"column:inventory_alert_qty;type:numeric;not null;default:0"`
	// AutoInventoryUpdate posts an inbound ledger entry when the item's final
	// process completes.
	AutoInventoryUpdate bool `gorm:"column:auto_inventory_update;not null;default:false"`
	// SyncToProcurement mirrors local in/out movements to the external
	// procurement system.
	SyncToProcurement bool      `gorm:"column:sync_to_procurement;not null;default:false"`
	Processes         []Process `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
