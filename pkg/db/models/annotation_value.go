package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AnnotationValue is one captured datum per (production record, field).
// Material-type values attribute exactly one outbound stock movement via
// StockMovement.AnnotationValueID; re-saving reposts that movement.
type AnnotationValue struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductionRecordID uuid.UUID        `gorm:"column:production_record_id;type:uuid;not null;uniqueIndex:idx_value_record_field"`
	FieldID            uuid.UUID        `gorm:"column:field_id;type:uuid;not null;uniqueIndex:idx_value_record_field"`
	Value              string           `gorm:"column:value;not null;default:''"`
	Note               *string          `gorm:"column:note"`
	LotID              *uuid.UUID       `gorm:"column:lot_id;type:uuid;index"`
	Quantity           *decimal.Decimal `gorm:"column:quantity;type:numeric"`
	IsWithinTolerance  bool             `gorm:"column:is_within_tolerance;not null;default:true"`
	Field              *AnnotationField `gorm:"foreignKey:FieldID"`
	Lot                *Lot             `gorm:"foreignKey:LotID"`
	CreatedAt          time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}
