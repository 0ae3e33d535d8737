package procurement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

// Service ingests stock movements pushed by the external procurement system.
// Inbound entries are posted unguarded: the external system is authoritative
// for its own side and local truth is never rejected retroactively.
type Service interface {
	Inbound(ctx context.Context, input InboundInput) (*InboundResult, error)
}

// InboundInput is one movement reported by the procurement system.
type InboundInput struct {
	SKU      string
	LotNo    *string
	Quantity decimal.Decimal
	Type     enums.MovementType
	Reason   string
}

// InboundResult reports what the sync created.
type InboundResult struct {
	MovementID   uuid.UUID  `json:"movement_id"`
	LotID        *uuid.UUID `json:"lot_id,omitempty"`
	LotCreated   bool       `json:"lot_created"`
	OrderID      *uuid.UUID `json:"order_id,omitempty"`
	OrderCreated bool       `json:"order_created"`
}

type service struct {
	client *db.Client
	repo   Repository
	ledger ledger.Service
	policy enums.AutoOrderPolicy
	clock  clock.Clock
	logg   *logger.Logger
}

// NewService wires the inbound sync service.
func NewService(client *db.Client, repo Repository, ledgerSvc ledger.Service, policy enums.AutoOrderPolicy, clk clock.Clock, logg *logger.Logger) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("procurement repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if !policy.IsValid() {
		return nil, fmt.Errorf("invalid auto order policy %q", policy)
	}
	if clk == nil {
		clk = clock.System
	}
	return &service{client: client, repo: repo, ledger: ledgerSvc, policy: policy, clock: clk, logg: logg}, nil
}

func (s *service) Inbound(ctx context.Context, input InboundInput) (*InboundResult, error) {
	if input.SKU == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sku is required")
	}
	if input.Type != enums.MovementTypeIn && input.Type != enums.MovementTypeOut {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "sync type must be in or out, got %q", input.Type)
	}
	if input.Quantity.Sign() <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var result InboundResult
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		item, err := repo.ItemByCode(ctx, input.SKU)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.Newf(pkgerrors.CodeNotFound, "no item with code %q", input.SKU)
		} else if err != nil {
			return err
		}

		var lot *models.Lot
		if input.LotNo != nil && *input.LotNo != "" {
			lot, result.LotCreated, err = s.findOrCreateLot(ctx, repo, item, *input.LotNo)
			if err != nil {
				return err
			}
			result.LotID = &lot.ID
		}

		quantity := input.Quantity
		if input.Type == enums.MovementTypeOut {
			quantity = quantity.Neg()
		}
		var lotID *uuid.UUID
		if lot != nil {
			lotID = &lot.ID
		}
		movement, err := s.ledger.PostTx(ctx, tx, ledger.PostInput{
			DepartmentID:   item.DepartmentID,
			ItemID:         item.ID,
			LotID:          lotID,
			Quantity:       quantity,
			Type:           input.Type,
			MovedAt:        s.clock.Now(),
			Reason:         input.Reason,
			IsExternalSync: true,
		})
		if err != nil {
			return err
		}
		result.MovementID = movement.ID

		if input.Type == enums.MovementTypeIn {
			if err := s.maybeCreateOrder(ctx, repo, item, lot, input.Quantity, result.LotCreated, &result); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) findOrCreateLot(ctx context.Context, repo Repository, item *models.Item, lotNumber string) (*models.Lot, bool, error) {
	lot, err := repo.LotByNumber(ctx, item.ID, lotNumber)
	if err == nil {
		return lot, false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, false, err
	}

	lot = &models.Lot{
		ID:           uuid.New(),
		DepartmentID: item.DepartmentID,
		ItemID:       item.ID,
		LotNumber:    lotNumber,
	}
	if err := repo.CreateLot(ctx, lot); err != nil {
		// A concurrent sync may have created it between the lookup and here.
		if db.IsUniqueViolation(err, "") {
			existing, lookupErr := repo.LotByNumber(ctx, item.ID, lotNumber)
			return existing, false, lookupErr
		}
		return nil, false, err
	}
	return lot, true, nil
}

// maybeCreateOrder applies the configured auto-order policy to an inbound
// receipt.
func (s *service) maybeCreateOrder(ctx context.Context, repo Repository, item *models.Item, lot *models.Lot, quantity decimal.Decimal, lotCreated bool, result *InboundResult) error {
	switch s.policy {
	case enums.AutoOrderPolicyNever:
		return nil
	case enums.AutoOrderPolicyNewLot:
		if lot == nil || !lotCreated {
			return nil
		}
		count, err := repo.ProcessCount(ctx, item.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			return nil
		}
	case enums.AutoOrderPolicyAlways:
	}

	var lotID *uuid.UUID
	if lot != nil {
		lotID = &lot.ID
	}
	order := &models.ProductionOrder{
		ID:             uuid.New(),
		DepartmentID:   item.DepartmentID,
		ItemID:         item.ID,
		LotID:          lotID,
		TargetQuantity: quantity,
		Status:         enums.OrderStatusPending,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return err
	}
	result.OrderID = &order.ID
	result.OrderCreated = true

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"item_code": item.Code,
			"order_id":  order.ID.String(),
		})
		s.logg.Info(logCtx, "auto production order created from inbound sync")
	}
	return nil
}
