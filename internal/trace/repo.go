package trace

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
)

// Repository provides the genealogy read queries.
type Repository interface {
	SalesOrderByNumber(ctx context.Context, departmentID uuid.UUID, orderNumber string) (*models.SalesOrder, error)
	LotByNumber(ctx context.Context, departmentID uuid.UUID, lotNumber string) (*models.Lot, error)
	OrdersForLot(ctx context.Context, lotID uuid.UUID) ([]models.ProductionOrder, error)
	RecordsWithValues(ctx context.Context, orderID uuid.UUID) ([]models.ProductionRecord, error)
	SalesOrdersShippingLot(ctx context.Context, lotID uuid.UUID) ([]models.SalesOrder, error)
	// LotsConsuming returns the product lots whose production records consumed
	// the given lot through a material annotation.
	LotsConsuming(ctx context.Context, lotID uuid.UUID) ([]models.Lot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a trace repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SalesOrderByNumber(ctx context.Context, departmentID uuid.UUID, orderNumber string) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).
		Preload("Partner").
		Preload("Item").
		Preload("Shipments").
		Preload("Shipments.Lot").
		Where("department_id = ? AND order_number = ?", departmentID, orderNumber).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) LotByNumber(ctx context.Context, departmentID uuid.UUID, lotNumber string) (*models.Lot, error) {
	var lot models.Lot
	if err := r.db.WithContext(ctx).
		Preload("Item").
		Where("department_id = ? AND lot_number = ?", departmentID, lotNumber).
		First(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *repository) OrdersForLot(ctx context.Context, lotID uuid.UUID) ([]models.ProductionOrder, error) {
	var orders []models.ProductionOrder
	if err := r.db.WithContext(ctx).
		Where("lot_id = ?", lotID).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) RecordsWithValues(ctx context.Context, orderID uuid.UUID) ([]models.ProductionRecord, error) {
	var records []models.ProductionRecord
	if err := r.db.WithContext(ctx).
		Preload("Process").
		Preload("AnnotationValues").
		Preload("AnnotationValues.Field").
		Preload("AnnotationValues.Lot").
		Where("production_order_id = ?", orderID).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) SalesOrdersShippingLot(ctx context.Context, lotID uuid.UUID) ([]models.SalesOrder, error) {
	var orders []models.SalesOrder
	if err := r.db.WithContext(ctx).
		Preload("Partner").
		Joins("JOIN shipments ON shipments.sales_order_id = sales_orders.id").
		Where("shipments.lot_id = ?", lotID).
		Distinct("sales_orders.*").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) LotsConsuming(ctx context.Context, lotID uuid.UUID) ([]models.Lot, error) {
	var lots []models.Lot
	if err := r.db.WithContext(ctx).
		Preload("Item").
		Joins("JOIN production_orders ON production_orders.lot_id = lots.id").
		Joins("JOIN production_records ON production_records.production_order_id = production_orders.id").
		Joins("JOIN annotation_values ON annotation_values.production_record_id = production_records.id").
		Where("annotation_values.lot_id = ?", lotID).
		Distinct("lots.*").
		Find(&lots).Error; err != nil {
		return nil, err
	}
	return lots, nil
}
