package shortage

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
)

// Repository provides the read queries the shortage calculator needs.
type Repository interface {
	ItemsForDepartment(ctx context.Context, departmentID uuid.UUID) ([]models.Item, error)
	GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error)
	OpenSalesOrders(ctx context.Context, departmentID uuid.UUID) ([]models.SalesOrder, error)
	ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMEdge, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a shortage repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) ItemsForDepartment(ctx context.Context, departmentID uuid.UUID) ([]models.Item, error) {
	var items []models.Item
	if err := r.db.WithContext(ctx).
		Where("department_id = ?", departmentID).
		Order("code ASC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) GetItem(ctx context.Context, id uuid.UUID) (*models.Item, error) {
	var item models.Item
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) OpenSalesOrders(ctx context.Context, departmentID uuid.UUID) ([]models.SalesOrder, error) {
	var orders []models.SalesOrder
	if err := r.db.WithContext(ctx).
		Where("department_id = ? AND status NOT IN ?", departmentID,
			[]enums.SalesOrderStatus{enums.SalesOrderStatusShipped, enums.SalesOrderStatusCancelled}).
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
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
