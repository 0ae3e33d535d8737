package bom

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
)

// Repository manages persistence for bill-of-material edges.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, edge *models.BOMEdge) error
	Update(ctx context.Context, edge *models.BOMEdge) error
	Delete(ctx context.Context, parentID, childID uuid.UUID) error
	Find(ctx context.Context, parentID, childID uuid.UUID) (*models.BOMEdge, error)
	ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMEdge, error)
	ParentsOf(ctx context.Context, childID uuid.UUID) ([]models.BOMEdge, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a BOM repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, edge *models.BOMEdge) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

func (r *repository) Update(ctx context.Context, edge *models.BOMEdge) error {
	return r.db.WithContext(ctx).Save(edge).Error
}

func (r *repository) Delete(ctx context.Context, parentID, childID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("parent_item_id = ? AND child_item_id = ?", parentID, childID).
		Delete(&models.BOMEdge{}).Error
}

func (r *repository) Find(ctx context.Context, parentID, childID uuid.UUID) (*models.BOMEdge, error) {
	var edge models.BOMEdge
	err := r.db.WithContext(ctx).
		Where("parent_item_id = ? AND child_item_id = ?", parentID, childID).
		First(&edge).Error
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *repository) ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMEdge, error) {
	var edges []models.BOMEdge
	if err := r.db.WithContext(ctx).
		Where("parent_item_id = ?", parentID).
		Order("created_at ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}

func (r *repository) ParentsOf(ctx context.Context, childID uuid.UUID) ([]models.BOMEdge, error) {
	var edges []models.BOMEdge
	if err := r.db.WithContext(ctx).
		Where("child_item_id = ?", childID).
		Order("created_at ASC").
		Find(&edges).Error; err != nil {
		return nil, err
	}
	return edges, nil
}
