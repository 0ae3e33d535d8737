package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// ProductionRecord is the state-machine instance for one (order, process)
// pair. It is created lazily on the first stamp and becomes immutable once
// completed or stopped.
type ProductionRecord struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ProductionOrderID  uuid.UUID          `gorm:"column:production_order_id;type:uuid;not null;uniqueIndex:idx_record_order_process"`
	ProcessID          uuid.UUID          `gorm:"column:process_id;type:uuid;not null;uniqueIndex:idx_record_order_process"`
	WorkerID           *uuid.UUID         `gorm:"column:worker_id;type:uuid"`
	Status             enums.RecordStatus `gorm:"column:status;not null;default:pending"`
	InputQuantity      decimal.Decimal    `gorm:"column:input_quantity;type:numeric;not null;default:0"`
	GoodQuantity       decimal.Decimal    `gorm:"column:good_quantity;type:numeric;not null;default:0"`
	DefectiveQuantity  decimal.Decimal    `gorm:"column:defective_quantity;type:numeric;not null;default:0"`
	SetupStartedAt     *time.Time         `gorm:"column:setup_started_at"`
	SetupFinishedAt    *time.Time         `gorm:"column:setup_finished_at"`
	WorkStartedAt      *time.Time         `gorm:"column:work_started_at"`
	WorkFinishedAt     *time.Time         `gorm:"column:work_finished_at;index"`
	PausedAt           *time.Time         `gorm:"column:paused_at"`
	TotalPausedSeconds int64              `gorm:"column:total_paused_seconds;not null;default:0"`
	Note               *string            `gorm:"column:note"`
	AnnotationValues   []AnnotationValue  `gorm:"foreignKey:ProductionRecordID;constraint:OnDelete:CASCADE"`
	Process            *Process           `gorm:"foreignKey:ProcessID"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// WorkedDuration is the effective time spent working: wall time between
// work start and finish minus accumulated pauses, floored at zero.
func (r ProductionRecord) WorkedDuration() time.Duration {
	if r.WorkStartedAt == nil || r.WorkFinishedAt == nil {
		return 0
	}
	d := r.WorkFinishedAt.Sub(*r.WorkStartedAt) - time.Duration(r.TotalPausedSeconds)*time.Second
	if d < 0 {
		return 0
	}
	return d
}
