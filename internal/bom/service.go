package bom

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

// Service maintains the bill-of-material graph. The graph must stay acyclic;
// every mutation re-checks that invariant before committing.
type Service interface {
	// AddEdge links child under parent with the per-unit quantity. Adding an
	// edge that already exists updates its quantity instead.
	AddEdge(ctx context.Context, input EdgeInput) (*models.BOMEdge, error)
	RemoveEdge(ctx context.Context, parentID, childID uuid.UUID) error
	ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMEdge, error)
	ParentsOf(ctx context.Context, childID uuid.UUID) ([]models.BOMEdge, error)
}

// EdgeInput describes one parent -> child composition link.
type EdgeInput struct {
	ParentItemID uuid.UUID
	ChildItemID  uuid.UUID
	Quantity     decimal.Decimal
	Note         *string
}

type service struct {
	client *db.Client
	repo   Repository
}

// NewService wires the BOM service.
func NewService(client *db.Client, repo Repository) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("bom repository required")
	}
	return &service{client: client, repo: repo}, nil
}

func (s *service) AddEdge(ctx context.Context, input EdgeInput) (*models.BOMEdge, error) {
	if input.ParentItemID == uuid.Nil || input.ChildItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent and child item ids are required")
	}
	if input.ParentItemID == input.ChildItemID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "an item cannot be its own component")
	}
	if input.Quantity.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity per unit must be positive")
	}

	var edge *models.BOMEdge
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		cyclic, err := s.reaches(ctx, repo, input.ChildItemID, input.ParentItemID)
		if err != nil {
			return err
		}
		if cyclic {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				"edge would make the bill of materials cyclic")
		}

		existing, err := repo.Find(ctx, input.ParentItemID, input.ChildItemID)
		switch {
		case err == nil:
			existing.Quantity = input.Quantity
			if input.Note != nil {
				existing.Note = input.Note
			}
			if err := repo.Update(ctx, existing); err != nil {
				return err
			}
			edge = existing
			return nil
		case err == gorm.ErrRecordNotFound:
			edge = &models.BOMEdge{
				ID:           uuid.New(),
				ParentItemID: input.ParentItemID,
				ChildItemID:  input.ChildItemID,
				Quantity:     input.Quantity,
				Note:         input.Note,
			}
			return repo.Create(ctx, edge)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	return edge, nil
}

func (s *service) RemoveEdge(ctx context.Context, parentID, childID uuid.UUID) error {
	if parentID == uuid.Nil || childID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "parent and child item ids are required")
	}
	return s.repo.Delete(ctx, parentID, childID)
}

func (s *service) ComponentsOf(ctx context.Context, parentID uuid.UUID) ([]models.BOMEdge, error) {
	if parentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent item id is required")
	}
	return s.repo.ComponentsOf(ctx, parentID)
}

func (s *service) ParentsOf(ctx context.Context, childID uuid.UUID) ([]models.BOMEdge, error) {
	if childID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "child item id is required")
	}
	return s.repo.ParentsOf(ctx, childID)
}

// reaches reports whether target is reachable from start by walking child
// edges. Iterative with a visited set so a corrupt graph cannot loop forever.
func (s *service) reaches(ctx context.Context, repo Repository, start, target uuid.UUID) (bool, error) {
	visited := map[uuid.UUID]bool{start: true}
	frontier := []uuid.UUID{start}
	for len(frontier) > 0 {
		current := frontier[len(frontier)-1]
		frontier = frontier[:len(frontier)-1]
		if current == target {
			return true, nil
		}
		edges, err := repo.ComponentsOf(ctx, current)
		if err != nil {
			return false, err
		}
		for _, e := range edges {
			if !visited[e.ChildItemID] {
				visited[e.ChildItemID] = true
				frontier = append(frontier, e.ChildItemID)
			}
		}
	}
	return false, nil
}
