package trace

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/db/models"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

// Service answers lot-genealogy questions: which material lots fed a
// customer shipment, and where a given lot ended up.
type Service interface {
	ByOrderNumber(ctx context.Context, departmentID uuid.UUID, orderNumber string) (*OrderTrace, error)
	ByLotNumber(ctx context.Context, departmentID uuid.UUID, lotNumber string) (*LotTrace, error)
}

// OrderTrace is the full backward chain of one sales order.
type OrderTrace struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	OrderDate   time.Time       `json:"order_date"`
	Status      string          `json:"status"`
	PartnerName string          `json:"partner_name,omitempty"`
	ItemCode    string          `json:"item_code"`
	ItemName    string          `json:"item_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	Shipments   []ShipmentTrace `json:"shipments"`
}

// ShipmentTrace is one shipped lot with its production history.
type ShipmentTrace struct {
	ShipmentID     uuid.UUID       `json:"shipment_id"`
	ShipmentNumber string          `json:"shipment_number"`
	ShippingDate   *time.Time      `json:"shipping_date,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	Status         string          `json:"status"`
	LotNumber      string          `json:"lot_number,omitempty"`
	Records        []RecordTrace   `json:"records,omitempty"`
}

// RecordTrace is one production record with its captured values.
type RecordTrace struct {
	RecordID    uuid.UUID       `json:"record_id"`
	ProcessName string          `json:"process_name"`
	Status      string          `json:"status"`
	Good        decimal.Decimal `json:"good_quantity"`
	Defective   decimal.Decimal `json:"defective_quantity"`
	Values      []ValueTrace    `json:"values,omitempty"`
}

// ValueTrace is one annotation value; material values name the consumed lot.
type ValueTrace struct {
	FieldLabel      string           `json:"field_label"`
	FieldType       string           `json:"field_type"`
	Value           string           `json:"value,omitempty"`
	ConsumedLot     string           `json:"consumed_lot,omitempty"`
	ConsumedItem    string           `json:"consumed_item,omitempty"`
	Quantity        *decimal.Decimal `json:"quantity,omitempty"`
	WithinTolerance bool             `json:"within_tolerance"`
}

// LotTrace is the forward and backward genealogy of one lot.
type LotTrace struct {
	LotID     uuid.UUID `json:"lot_id"`
	LotNumber string    `json:"lot_number"`
	ItemCode  string    `json:"item_code"`
	ItemName  string    `json:"item_name"`
	// DirectSalesOrders shipped this lot as the end item.
	DirectSalesOrders []SalesOrderRef `json:"direct_sales_orders"`
	// ConsumedBy are product lots whose production used this lot as material.
	ConsumedBy []ConsumerRef `json:"consumed_by"`
}

// SalesOrderRef is a compact sales-order reference.
type SalesOrderRef struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	PartnerName string    `json:"partner_name,omitempty"`
	Status      string    `json:"status"`
}

// ConsumerRef is one parent lot plus the customer orders it shipped to.
type ConsumerRef struct {
	LotID       uuid.UUID       `json:"lot_id"`
	LotNumber   string          `json:"lot_number"`
	ItemCode    string          `json:"item_code"`
	ItemName    string          `json:"item_name"`
	SalesOrders []SalesOrderRef `json:"sales_orders,omitempty"`
}

type service struct {
	repo Repository
}

// NewService wires the traceability resolver.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("trace repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ByOrderNumber(ctx context.Context, departmentID uuid.UUID, orderNumber string) (*OrderTrace, error) {
	if departmentID == uuid.Nil || orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "department id and order number are required")
	}

	order, err := s.repo.SalesOrderByNumber(ctx, departmentID, orderNumber)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sales order not found")
	} else if err != nil {
		return nil, err
	}

	result := &OrderTrace{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		OrderDate:   order.OrderDate,
		Status:      string(order.Status),
		Quantity:    order.Quantity,
	}
	if order.Partner != nil {
		result.PartnerName = order.Partner.Name
	}
	if order.Item != nil {
		result.ItemCode = order.Item.Code
		result.ItemName = order.Item.Name
	}

	for _, shipment := range order.Shipments {
		st := ShipmentTrace{
			ShipmentID:     shipment.ID,
			ShipmentNumber: shipment.ShipmentNumber,
			ShippingDate:   shipment.ShippingDate,
			Quantity:       shipment.Quantity,
			Status:         string(shipment.Status),
		}
		if shipment.Lot != nil {
			st.LotNumber = shipment.Lot.LotNumber
			records, err := s.recordsForLot(ctx, shipment.Lot.ID)
			if err != nil {
				return nil, err
			}
			st.Records = records
		}
		result.Shipments = append(result.Shipments, st)
	}
	return result, nil
}

func (s *service) recordsForLot(ctx context.Context, lotID uuid.UUID) ([]RecordTrace, error) {
	orders, err := s.repo.OrdersForLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	var traces []RecordTrace
	for _, order := range orders {
		records, err := s.repo.RecordsWithValues(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			rt := RecordTrace{
				RecordID:  rec.ID,
				Status:    string(rec.Status),
				Good:      rec.GoodQuantity,
				Defective: rec.DefectiveQuantity,
			}
			if rec.Process != nil {
				rt.ProcessName = rec.Process.Name
			}
			for _, value := range rec.AnnotationValues {
				vt := ValueTrace{
					Value:           value.Value,
					Quantity:        value.Quantity,
					WithinTolerance: value.IsWithinTolerance,
				}
				if value.Field != nil {
					vt.FieldLabel = value.Field.Label
					vt.FieldType = string(value.Field.Type)
				}
				if value.Lot != nil {
					vt.ConsumedLot = value.Lot.LotNumber
					if value.Lot.Item != nil {
						vt.ConsumedItem = value.Lot.Item.Name
					}
				}
				rt.Values = append(rt.Values, vt)
			}
			traces = append(traces, rt)
		}
	}
	return traces, nil
}

func (s *service) ByLotNumber(ctx context.Context, departmentID uuid.UUID, lotNumber string) (*LotTrace, error) {
	if departmentID == uuid.Nil || lotNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "department id and lot number are required")
	}

	lot, err := s.repo.LotByNumber(ctx, departmentID, lotNumber)
	if err == gorm.ErrRecordNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "lot not found")
	} else if err != nil {
		return nil, err
	}

	result := &LotTrace{
		LotID:     lot.ID,
		LotNumber: lot.LotNumber,
	}
	if lot.Item != nil {
		result.ItemCode = lot.Item.Code
		result.ItemName = lot.Item.Name
	}

	direct, err := s.repo.SalesOrdersShippingLot(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	result.DirectSalesOrders = salesOrderRefs(direct)

	// Backward hop: product lots whose records consumed this lot, then each
	// parent lot's own shipments for the second-order customer orders.
	parents, err := s.repo.LotsConsuming(ctx, lot.ID)
	if err != nil {
		return nil, err
	}
	seen := map[uuid.UUID]bool{}
	for _, parent := range parents {
		if seen[parent.ID] || parent.ID == lot.ID {
			continue
		}
		seen[parent.ID] = true

		ref := ConsumerRef{LotID: parent.ID, LotNumber: parent.LotNumber}
		if parent.Item != nil {
			ref.ItemCode = parent.Item.Code
			ref.ItemName = parent.Item.Name
		}
		orders, err := s.repo.SalesOrdersShippingLot(ctx, parent.ID)
		if err != nil {
			return nil, err
		}
		ref.SalesOrders = salesOrderRefs(orders)
		result.ConsumedBy = append(result.ConsumedBy, ref)
	}
	return result, nil
}

func salesOrderRefs(orders []models.SalesOrder) []SalesOrderRef {
	refs := make([]SalesOrderRef, 0, len(orders))
	seen := map[uuid.UUID]bool{}
	for _, order := range orders {
		if seen[order.ID] {
			continue
		}
		seen[order.ID] = true
		ref := SalesOrderRef{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Status:      string(order.Status),
		}
		if order.Partner != nil {
			ref.PartnerName = order.Partner.Name
		}
		refs = append(refs, ref)
	}
	return refs
}
