package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

// splitTolerance absorbs decimal representation noise when comparing the
// allocation total against the order quantity.
var splitTolerance = decimal.New(1, -9)

// Service turns sales orders into shipped lot allocations and the matching
// outbound ledger entries.
type Service interface {
	// Ship splits the order across lots, creates one shipment per
	// allocation and posts a negative shipment entry for each.
	Ship(ctx context.Context, input ShipInput) ([]models.Shipment, error)
	// UpdateStatus applies a status-only transition. Shipped is reserved
	// for Ship.
	UpdateStatus(ctx context.Context, departmentID, orderID uuid.UUID, status enums.SalesOrderStatus) error
}

// Allocation assigns part of the order quantity to one lot.
type Allocation struct {
	LotID    uuid.UUID
	Quantity decimal.Decimal
}

// ShipInput describes one shipping action against a sales order.
type ShipInput struct {
	DepartmentID   uuid.UUID
	SalesOrderID   uuid.UUID
	ShipmentNumber string
	ShippingDate   time.Time
	Allocations    []Allocation
	Note           *string
}

type service struct {
	client *db.Client
	repo   Repository
	ledger ledger.Service
	clock  clock.Clock
}

// NewService wires the shipping service.
func NewService(client *db.Client, repo Repository, ledgerSvc ledger.Service, clk clock.Clock) (Service, error) {
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("shipping repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if clk == nil {
		clk = clock.System
	}
	return &service{client: client, repo: repo, ledger: ledgerSvc, clock: clk}, nil
}

func (s *service) Ship(ctx context.Context, input ShipInput) ([]models.Shipment, error) {
	if err := validateShip(input); err != nil {
		return nil, err
	}

	var shipments []models.Shipment
	err := s.client.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		order, err := repo.GetSalesOrder(ctx, input.SalesOrderID)
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sales order not found")
		} else if err != nil {
			return err
		}
		if order.DepartmentID != input.DepartmentID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "sales order not found")
		}
		if !order.Status.IsOpen() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is already %s", order.Status)
		}

		total := decimal.Zero
		for _, alloc := range input.Allocations {
			total = total.Add(alloc.Quantity)
		}
		if total.Sub(order.Quantity).Abs().GreaterThan(splitTolerance) {
			return pkgerrors.Newf(pkgerrors.CodeValidation,
				"allocated total %s does not match order quantity %s", total, order.Quantity).
				WithDetails(map[string]any{"allocated": total.String(), "ordered": order.Quantity.String()})
		}

		shippingDate := input.ShippingDate
		if shippingDate.IsZero() {
			shippingDate = s.clock.Now()
		}

		for i, alloc := range input.Allocations {
			lot, err := repo.GetLot(ctx, alloc.LotID)
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
			} else if err != nil {
				return err
			}
			if lot.ItemID != order.ItemID {
				return pkgerrors.Newf(pkgerrors.CodeValidation,
					"lot %s does not belong to the ordered item", lot.LotNumber)
			}

			// Row lock on the lot keeps concurrent outbounds honest.
			if err := db.LockForUpdate(tx.WithContext(ctx)).First(&models.Lot{}, "id = ?", lot.ID).Error; err != nil {
				return err
			}
			balance, err := s.ledger.LotBalanceTx(ctx, tx, lot.ID, shippingDate)
			if err != nil {
				return err
			}
			if balance.LessThan(alloc.Quantity) {
				return pkgerrors.Newf(pkgerrors.CodeInsufficientStock,
					"lot %s has %s on hand, %s requested", lot.LotNumber, balance, alloc.Quantity).
					WithDetails(map[string]any{"available": balance.String()})
			}

			number := input.ShipmentNumber
			if i > 0 {
				number = fmt.Sprintf("%s-%d", input.ShipmentNumber, i+1)
			}
			date := shippingDate
			shipment := models.Shipment{
				ID:             uuid.New(),
				DepartmentID:   order.DepartmentID,
				SalesOrderID:   order.ID,
				ItemID:         order.ItemID,
				LotID:          &lot.ID,
				ShipmentNumber: number,
				ShippingDate:   &date,
				Quantity:       alloc.Quantity,
				Status:         enums.ShipmentStatusShipped,
				Note:           input.Note,
			}
			if err := repo.CreateShipment(ctx, &shipment); err != nil {
				return err
			}

			if _, err := s.ledger.PostTx(ctx, tx, ledger.PostInput{
				DepartmentID: order.DepartmentID,
				ItemID:       order.ItemID,
				LotID:        &lot.ID,
				Quantity:     alloc.Quantity.Neg(),
				Type:         enums.MovementTypeShipment,
				MovedAt:      shippingDate,
				Reason:       "shipment " + number,
			}); err != nil {
				return err
			}
			shipments = append(shipments, shipment)
		}

		order.Status = enums.SalesOrderStatusShipped
		return repo.UpdateSalesOrder(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	return shipments, nil
}

func (s *service) UpdateStatus(ctx context.Context, departmentID, orderID uuid.UUID, status enums.SalesOrderStatus) error {
	if !status.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid sales order status %q", status)
	}
	if status == enums.SalesOrderStatusShipped {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipped is set by the shipping flow, not directly")
	}

	order, err := s.repo.GetSalesOrder(ctx, orderID)
	if err == gorm.ErrRecordNotFound {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sales order not found")
	} else if err != nil {
		return err
	}
	if order.DepartmentID != departmentID {
		return pkgerrors.New(pkgerrors.CodeNotFound, "sales order not found")
	}
	if order.Status == enums.SalesOrderStatusShipped {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "shipped orders cannot change status")
	}

	order.Status = status
	return s.repo.UpdateSalesOrder(ctx, order)
}

func validateShip(input ShipInput) error {
	if input.DepartmentID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "department id is required")
	}
	if input.SalesOrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "sales order id is required")
	}
	if input.ShipmentNumber == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipment number is required")
	}
	if len(input.Allocations) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one lot allocation is required")
	}
	for _, alloc := range input.Allocations {
		if alloc.LotID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "allocation lot id is required")
		}
		if alloc.Quantity.Sign() <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "allocation quantity must be positive")
		}
	}
	return nil
}
