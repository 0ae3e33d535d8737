package production

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
)

// Repository manages persistence for orders, records and annotation values.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	GetOrder(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error)
	UpdateOrder(ctx context.Context, order *models.ProductionOrder) error

	GetProcess(ctx context.Context, id uuid.UUID) (*models.Process, error)
	ProcessesForItem(ctx context.Context, itemID uuid.UUID) ([]models.Process, error)

	GetRecord(ctx context.Context, orderID, processID uuid.UUID) (*models.ProductionRecord, error)
	RecordsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductionRecord, error)
	CreateRecord(ctx context.Context, record *models.ProductionRecord) error
	UpdateRecord(ctx context.Context, record *models.ProductionRecord) error

	GetField(ctx context.Context, id uuid.UUID) (*models.AnnotationField, error)
	FieldsForProcess(ctx context.Context, processID uuid.UUID) ([]models.AnnotationField, error)

	GetValue(ctx context.Context, recordID, fieldID uuid.UUID) (*models.AnnotationValue, error)
	ValuesForRecord(ctx context.Context, recordID uuid.UUID) ([]models.AnnotationValue, error)
	CreateValue(ctx context.Context, value *models.AnnotationValue) error
	UpdateValue(ctx context.Context, value *models.AnnotationValue) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a production repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetOrder(ctx context.Context, id uuid.UUID) (*models.ProductionOrder, error) {
	var order models.ProductionOrder
	if err := r.db.WithContext(ctx).First(&order, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) UpdateOrder(ctx context.Context, order *models.ProductionOrder) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) GetProcess(ctx context.Context, id uuid.UUID) (*models.Process, error) {
	var process models.Process
	if err := r.db.WithContext(ctx).First(&process, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &process, nil
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

func (r *repository) GetRecord(ctx context.Context, orderID, processID uuid.UUID) (*models.ProductionRecord, error) {
	var record models.ProductionRecord
	if err := r.db.WithContext(ctx).
		Where("production_order_id = ? AND process_id = ?", orderID, processID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) RecordsForOrder(ctx context.Context, orderID uuid.UUID) ([]models.ProductionRecord, error) {
	var records []models.ProductionRecord
	if err := r.db.WithContext(ctx).
		Where("production_order_id = ?", orderID).
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) CreateRecord(ctx context.Context, record *models.ProductionRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) UpdateRecord(ctx context.Context, record *models.ProductionRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

func (r *repository) GetField(ctx context.Context, id uuid.UUID) (*models.AnnotationField, error) {
	var field models.AnnotationField
	if err := r.db.WithContext(ctx).First(&field, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &field, nil
}

func (r *repository) FieldsForProcess(ctx context.Context, processID uuid.UUID) ([]models.AnnotationField, error) {
	var fields []models.AnnotationField
	if err := r.db.WithContext(ctx).
		Where("process_id = ?", processID).
		Order("created_at ASC").
		Find(&fields).Error; err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *repository) GetValue(ctx context.Context, recordID, fieldID uuid.UUID) (*models.AnnotationValue, error) {
	var value models.AnnotationValue
	if err := r.db.WithContext(ctx).
		Where("production_record_id = ? AND field_id = ?", recordID, fieldID).
		First(&value).Error; err != nil {
		return nil, err
	}
	return &value, nil
}

func (r *repository) ValuesForRecord(ctx context.Context, recordID uuid.UUID) ([]models.AnnotationValue, error) {
	var values []models.AnnotationValue
	if err := r.db.WithContext(ctx).
		Preload("Field").
		Preload("Lot").
		Where("production_record_id = ?", recordID).
		Find(&values).Error; err != nil {
		return nil, err
	}
	return values, nil
}

func (r *repository) CreateValue(ctx context.Context, value *models.AnnotationValue) error {
	return r.db.WithContext(ctx).Create(value).Error
}

func (r *repository) UpdateValue(ctx context.Context, value *models.AnnotationValue) error {
	return r.db.WithContext(ctx).Save(value).Error
}
