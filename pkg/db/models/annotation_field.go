package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// AnnotationField is a configurable data-capture point on a process.
type AnnotationField struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ProcessID   uuid.UUID       `gorm:"column:process_id;type:uuid;not null;index"`
	FieldKey    string          `gorm:"column:field_key;not null"`
	Label       string          `gorm:"column:label;not null"`
	Type        enums.FieldType `gorm:"column:type;not null"`
	TargetValue *float64        `gorm:"column:target_value"`
	MinValue    *float64        `gorm:"column:min_value"`
	MaxValue    *float64        `gorm:"column:max_value"`
	IsOptional  bool            `gorm:"column:is_optional;not null;default:false"`
	// LinkedItemID constrains which item's lots may be selected for
	// material-type fields.
	LinkedItemID *uuid.UUID `gorm:"column:linked_item_id;type:uuid"`
	// RelatedFieldID pairs a lot-selection field with its quantity field when
	// the two are captured separately.
	RelatedFieldID *uuid.UUID `gorm:"column:related_field_id;type:uuid"`
	CreatedAt      time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
