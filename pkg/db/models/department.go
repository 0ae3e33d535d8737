package models

import (
	"time"

	"github.com/google/uuid"
)

// Department is the tenant boundary. Every scoped row carries its id and
// every core call receives it explicitly.
type Department struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
