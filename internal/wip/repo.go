package wip

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// Repository provides the read queries the WIP calculator needs.
type Repository interface {
	OrdersForLot(ctx context.Context, lotID uuid.UUID, asOf time.Time) ([]models.ProductionOrder, error)
	FinishedRecords(ctx context.Context, orderID uuid.UUID, asOf time.Time) ([]models.ProductionRecord, error)
	ProcessesForItem(ctx context.Context, itemID uuid.UUID) ([]models.Process, error)
	LotsForDepartment(ctx context.Context, departmentID uuid.UUID) ([]models.Lot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a WIP repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) OrdersForLot(ctx context.Context, lotID uuid.UUID, asOf time.Time) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	if err := r.db.WithContext(ctx).
		Where("lot_id = ? AND created_at <= ? AND status <> ?", lotID, asOf, enums.OrderStatusCancelled).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) FinishedRecords(ctx context.Context, orderID uuid.UUID, asOf time.Time) ([]models.ProductionRecord, error) {
	var records []models.ProductionRecord
	if err := r.db.WithContext(ctx).
		Where("production_order_id = ? AND work_finished_at IS NOT NULL AND work_finished_at <= ?", orderID, asOf).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ProcessesForItem(ctx context.Context, itemID uuid.UUID) ([]models.Process, error) {
	var processes []models.Process
	if err := r.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("sort_order ASC").
		Find(&processes).Error; err != nil {
		return nil, err
	}
	return processes, nil
}

func (r *repository) LotsForDepartment(ctx context.Context, departmentID uuid.UUID) ([]models.Lot, error) {
	var lots []models.Lot
	if err := r.db.WithContext(ctx).
		Preload("Item").
		Where("department_id = ?", departmentID).
		Order("created_at ASC").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}
