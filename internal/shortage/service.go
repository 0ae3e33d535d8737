package shortage

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

// Service computes the multi-level material shortage report.
type Service interface {
	// Report seeds from alert-threshold breaches and open sales demand, then
	// explodes shortages through the BOM graph.
	Report(ctx context.Context, departmentID uuid.UUID) ([]Row, error)
}

// Row is one item's line in the shortage report.
type Row struct {
	ItemID     uuid.UUID       `json:"item_id"`
	ItemCode   string          `json:"item_code"`
	ItemName   string          `json:"item_name"`
	Required   decimal.Decimal `json:"required"`
	Stock      decimal.Decimal `json:"stock"`
	AlertQty   decimal.Decimal `json:"alert_qty"`
	BelowAlert bool            `json:"below_alert"`
	Level      int             `json:"level"`
	Parent     string          `json:"parent,omitempty"`
}

type service struct {
	repo   Repository
	ledger ledger.Service
	clock  clock.Clock
	logg   *logger.Logger
}

// NewService wires the shortage calculator.
func NewService(repo Repository, ledgerSvc ledger.Service, clk clock.Clock, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("shortage repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if clk == nil {
		clk = clock.System
	}
	return &service{repo: repo, ledger: ledgerSvc, clock: clk, logg: logg}, nil
}

type accumulator struct {
	rows  map[uuid.UUID]*Row
	order []uuid.UUID
}

func (a *accumulator) add(item *models.Item, required, stock decimal.Decimal, level int, parent string) *Row {
	row, ok := a.rows[item.ID]
	if !ok {
		row = &Row{
			ItemID:     item.ID,
			ItemCode:   item.Code,
			ItemName:   item.Name,
			Stock:      stock,
			AlertQty:   item.InventoryAlertQty,
			BelowAlert: stock.LessThan(item.InventoryAlertQty),
			Level:      level,
			Parent:     parent,
		}
		a.rows[item.ID] = row
		a.order = append(a.order, item.ID)
	}
	// Demand reaching the same item through several paths accumulates; the
	// shallowest path names the row's level and parent.
	row.Required = row.Required.Add(required)
	if level < row.Level {
		row.Level = level
		row.Parent = parent
	}
	return row
}

func (s *service) Report(ctx context.Context, departmentID uuid.UUID) ([]Row, error) {
	if departmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "department id is required")
	}

	now := s.clock.Now()
	acc := &accumulator{rows: map[uuid.UUID]*Row{}}

	items, err := s.repo.ItemsForDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	stockByItem := map[uuid.UUID]decimal.Decimal{}
	stockOf := func(id uuid.UUID) (decimal.Decimal, error) {
		if cached, ok := stockByItem[id]; ok {
			return cached, nil
		}
		balance, err := s.ledger.ItemBalance(ctx, id, now)
		if err != nil {
			return decimal.Zero, err
		}
		stockByItem[id] = balance
		return balance, nil
	}

	// Seed (a): alert-threshold breaches, pure stock watch with no demand.
	for i := range items {
		item := &items[i]
		if item.InventoryAlertQty.Sign() <= 0 {
			continue
		}
		stock, err := stockOf(item.ID)
		if err != nil {
			return nil, err
		}
		if stock.LessThan(item.InventoryAlertQty) {
			acc.add(item, decimal.Zero, stock, 0, "")
		}
	}

	// Seed (b): open sales-order demand grouped by item.
	orders, err := s.repo.OpenSalesOrders(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	demandByItem := map[uuid.UUID]decimal.Decimal{}
	for _, order := range orders {
		demandByItem[order.ItemID] = demandByItem[order.ItemID].Add(order.Quantity)
	}
	for itemID, demand := range demandByItem {
		item, err := s.repo.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		stock, err := stockOf(itemID)
		if err != nil {
			return nil, err
		}
		row := acc.add(item, demand, stock, 0, "")

		shortage := row.Required.Sub(stock)
		if shortage.Sign() > 0 {
			inStack := map[uuid.UUID]bool{itemID: true}
			if err := s.explode(ctx, acc, stockOf, item, shortage, 1, inStack); err != nil {
				return nil, err
			}
		}
	}

	result := make([]Row, 0, len(acc.order))
	for _, id := range acc.order {
		result = append(result, *acc.rows[id])
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Level != result[j].Level {
			return result[i].Level < result[j].Level
		}
		return result[i].ItemCode < result[j].ItemCode
	})
	return result, nil
}

// explode walks the BOM graph depth-first. inStack breaks cycles: a child
// already on the current path is skipped with a warning instead of recursing
// forever.
func (s *service) explode(ctx context.Context, acc *accumulator, stockOf func(uuid.UUID) (decimal.Decimal, error), parent *models.Item, shortage decimal.Decimal, level int, inStack map[uuid.UUID]bool) error {
	edges, err := s.repo.ComponentsOf(ctx, parent.ID)
	if err != nil {
		return err
	}
	for _, edge := range edges {
		if inStack[edge.ChildItemID] {
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{
					"parent_item_id": parent.ID.String(),
					"child_item_id":  edge.ChildItemID.String(),
				})
				s.logg.Warn(logCtx, "bom cycle detected, stopping explosion")
			}
			continue
		}

		child, err := s.repo.GetItem(ctx, edge.ChildItemID)
		if err != nil {
			if s.logg != nil {
				logCtx := s.logg.WithField(ctx, "child_item_id", edge.ChildItemID.String())
				s.logg.Warn(logCtx, "bom edge references missing item")
			}
			continue
		}
		stock, err := stockOf(child.ID)
		if err != nil {
			return err
		}

		required := shortage.Mul(edge.Quantity)
		acc.add(child, required, stock, level, parent.Name)

		childShortage := required.Sub(stock)
		if childShortage.Sign() > 0 {
			inStack[child.ID] = true
			if err := s.explode(ctx, acc, stockOf, child, childShortage, level+1, inStack); err != nil {
				return err
			}
			delete(inStack, child.ID)
		}
	}
	return nil
}
