package models

import (
	"time"

	"github.com/google/uuid"
)

// Partner is a customer or supplier referenced by sales orders.
type Partner struct {
	ID           uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DepartmentID uuid.UUID `gorm:"column:department_id;type:uuid;not null;index"`
	Name         string    `gorm:"column:name;not null"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
