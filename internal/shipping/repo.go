package shipping

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
)

// Repository manages persistence for sales orders and shipments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetSalesOrder(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error)
	UpdateSalesOrder(ctx context.Context, order *models.SalesOrder) error
	CreateShipment(ctx context.Context, shipment *models.Shipment) error
	ShipmentsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error)
	GetLot(ctx context.Context, id uuid.UUID) (*models.Lot, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shipping repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetSalesOrder(ctx context.Context, id uuid.UUID) (*models.SalesOrder, error) {
	var order models.SalesOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateSalesOrder(ctx context.Context, order *models.SalesOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) CreateShipment(ctx context.Context, shipment *models.Shipment) error {
	return r.db.WithContext(ctx).Create(shipment).Error
}

func (r *repository) ShipmentsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.Shipment, error) {
	var shipments []models.Shipment
	if err := r.db.WithContext(ctx).
		Preload("Lot").
		Where("sales_order_id = ?", orderID).
		Order("created_at ASC").
		Find(&shipments).Error; err != nil {
		return nil, err
	}
	return shipments, nil
}

func (r *repository) GetLot(ctx context.Context, id uuid.UUID) (*models.Lot, error) {
	var lot models.Lot
	if err := r.db.WithContext(ctx).First(&lot, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}
