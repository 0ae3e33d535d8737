package models

import (
	"time"

	"github.com/google/uuid"
)

// Process is one manufacturing step of an item. SortOrder defines a strict
// total order of the item's steps.
type Process struct {
	ID                  uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ItemID              uuid.UUID `gorm:"column:item_id;type:uuid;not null;index"`
	Name                string    `gorm:"column:name;not null"`
	SortOrder           int       `gorm:"column:sort_order;not null"`
	Description         *string   `gorm:"column:description"`
	StandardTimeMinutes *float64  `gorm:"column:standard_time_minutes"`
	// TemplateMediaID is an opaque reference into the media store; the core
	// never dereferences it.
	TemplateMediaID *uuid.UUID `gorm:"column:template_media_id;type:uuid"`
	// ShareTemplateWithPrevious borrows the nearest earlier process's
	// template and annotation surface when this process has none of its own.
	ShareTemplateWithPrevious bool              `gorm:"column:share_template_with_previous;not null;default:false"`
	AnnotationFields          []AnnotationField `gorm:"foreignKey:ProcessID;constraint:OnDelete:CASCADE"`
	CreatedAt                 time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
