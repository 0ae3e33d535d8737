package procurement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
)

// Repository manages the sync endpoint's persistence and the outbox queue.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	ItemByCode(ctx context.Context, code string) (*models.Item, error)
	LotByNumber(ctx context.Context, itemID uuid.UUID, lotNumber string) (*models.Lot, error)
	CreateLot(ctx context.Context, lot *models.Lot) error
	ProcessCount(ctx context.Context, itemID uuid.UUID) (int64, error)
	CreateOrder(ctx context.Context, order *models.ProductionOrder) error

	// ClaimBatch returns unpublished outbox rows that are due and below the
	// attempt ceiling, oldest first.
	ClaimBatch(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.SyncOutbox, error)
	MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a procurement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ItemByCode(ctx context.Context, code string) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) LotByNumber(ctx context.Context, itemID uuid.UUID, lotNumber string) (*models.Lot, error) {
	var lot models.Lot
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND lot_number = ?", itemID, lotNumber).
		First(&lot).Error; err != nil {
		return nil, err
	}
	return &lot, nil
}

func (r *repository) CreateLot(ctx context.Context, lot *models.Lot) error {
	return r.db.WithContext(ctx).Create(lot).Error
}

func (r *repository) ProcessCount(ctx context.Context, itemID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Process{}).
		Where("item_id = ?", itemID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.ProductionOrder) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) ClaimBatch(ctx context.Context, now time.Time, maxAttempts, limit int) ([]models.SyncOutbox, error) {
	var entries []models.SyncOutbox
	if err := r.db.WithContext(ctx).
		Where("published_at IS NULL AND attempt_count < ?", maxAttempts).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("created_at ASC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) MarkPublished(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{"published_at": at, "last_error": nil}).Error
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, attemptCount int, nextAttemptAt time.Time, lastError string) error {
	return r.db.WithContext(ctx).
		Model(&models.SyncOutbox{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempt_count":   attemptCount,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastError,
		}).Error
}
