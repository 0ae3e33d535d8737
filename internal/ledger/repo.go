package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
)

// Repository manages persistence for stock movements.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	SumForItem(ctx context.Context, itemID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
	SumForLot(ctx context.Context, lotID uuid.UUID, asOf time.Time) (decimal.Decimal, error)
	ListForLot(ctx context.Context, lotID uuid.UUID) ([]models.StockMovement, error)
	DeleteByAnnotationValues(ctx context.Context, valueIDs []uuid.UUID) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// Balances are summed in Go with decimal arithmetic; the quantity column is
// portable text-numeric and must not go through SQL SUM.
func (r *repository) SumForItem(ctx context.Context, itemID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	var quantities []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("item_id = ? AND moved_at <= ?", itemID, asOf).
		Pluck("quantity", &quantities).Error; err != nil {
		return decimal.Zero, err
	}
	return sum(quantities), nil
}

func (r *repository) SumForLot(ctx context.Context, lotID uuid.UUID, asOf time.Time) (decimal.Decimal, error) {
	var quantities []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("lot_id = ? AND moved_at <= ?", lotID, asOf).
		Pluck("quantity", &quantities).Error; err != nil {
		return decimal.Zero, err
	}
	return sum(quantities), nil
}

func (r *repository) ListForLot(ctx context.Context, lotID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("lot_id = ?", lotID).
		Order("moved_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// DeleteByAnnotationValues removes the movements attributed to the given
// annotation values. It is a no-op when none exist.
func (r *repository) DeleteByAnnotationValues(ctx context.Context, valueIDs []uuid.UUID) error {
	if len(valueIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("annotation_value_id IN ?", valueIDs).
		Delete(&models.StockMovement{}).Error
}

func sum(quantities []decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, q := range quantities {
		total = total.Add(q)
	}
	return total
}
