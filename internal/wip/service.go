package wip

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	pkgerrors "github.com/mfgworks/traceline-backend/pkg/errors"
)

// Service computes temporal work-in-progress from the production history.
// All quantities are derived; no WIP is ever stored.
type Service interface {
	// AtDate returns the per-process WIP map for a lot as it stood at asOf.
	AtDate(ctx context.Context, lotID uuid.UUID, asOf time.Time) (map[string]decimal.Decimal, error)
	// LotSummary builds the department-wide stock/WIP report rows.
	LotSummary(ctx context.Context, departmentID uuid.UUID, asOf time.Time) ([]SummaryRow, error)
}

// SummaryRow is one lot's line in the stock/WIP report.
type SummaryRow struct {
	ItemID    uuid.UUID                  `json:"item_id"`
	ItemCode  string                     `json:"item_code"`
	ItemName  string                     `json:"item_name"`
	LotID     uuid.UUID                  `json:"lot_id"`
	LotNumber string                     `json:"lot_number"`
	Stock     decimal.Decimal            `json:"stock"`
	WIP       map[string]decimal.Decimal `json:"wip"`
	WIPTotal  decimal.Decimal            `json:"wip_total"`
}

type service struct {
	repo   Repository
	ledger ledger.Service
}

// NewService wires the WIP calculator.
func NewService(repo Repository, ledgerSvc ledger.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wip repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{repo: repo, ledger: ledgerSvc}, nil
}

func (s *service) AtDate(ctx context.Context, lotID uuid.UUID, asOf time.Time) (map[string]decimal.Decimal, error) {
	if lotID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lot id is required")
	}

	orders, err := s.repo.OrdersForLot(ctx, lotID, asOf)
	if err != nil {
		return nil, err
	}

	buckets := map[string]decimal.Decimal{}
	for _, order := range orders {
		processes, err := s.repo.ProcessesForItem(ctx, order.ItemID)
		if err != nil {
			return nil, err
		}
		if len(processes) == 0 {
			continue
		}

		records, err := s.repo.FinishedRecords(ctx, order.ID, asOf)
		if err != nil {
			return nil, err
		}

		process, remaining := orderContribution(order, processes, records)
		if process == nil {
			continue
		}
		buckets[process.Name] = buckets[process.Name].Add(remaining)
	}
	return buckets, nil
}

// orderContribution locates the order's current process and the quantity
// still travelling through it. Only completed-record history moves the
// bucket; in-progress work stays where it is.
func orderContribution(order models.ProductionOrder, processes []models.Process, records []models.ProductionRecord) (*models.Process, decimal.Decimal) {
	last := processes[len(processes)-1]

	finished := decimal.Zero
	defective := decimal.Zero
	highestIdx := -1
	for _, rec := range records {
		defective = defective.Add(rec.DefectiveQuantity)
		if rec.ProcessID == last.ID {
			finished = finished.Add(rec.GoodQuantity)
		}
		for i := range processes {
			if processes[i].ID == rec.ProcessID && i > highestIdx {
				highestIdx = i
			}
		}
	}

	remaining := order.TargetQuantity.Sub(finished).Sub(defective)
	if remaining.Sign() <= 0 {
		return nil, decimal.Zero
	}

	switch {
	case highestIdx < 0:
		return &processes[0], remaining
	case highestIdx+1 < len(processes):
		return &processes[highestIdx+1], remaining
	default:
		// Stuck at the last step without final good output.
		return &processes[highestIdx], remaining
	}
}

func (s *service) LotSummary(ctx context.Context, departmentID uuid.UUID, asOf time.Time) ([]SummaryRow, error) {
	if departmentID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "department id is required")
	}

	lots, err := s.repo.LotsForDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	rows := make([]SummaryRow, 0, len(lots))
	for _, lot := range lots {
		stock, err := s.ledger.LotBalance(ctx, lot.ID, asOf)
		if err != nil {
			return nil, err
		}
		buckets, err := s.AtDate(ctx, lot.ID, asOf)
		if err != nil {
			return nil, err
		}

		total := decimal.Zero
		for _, qty := range buckets {
			total = total.Add(qty)
		}

		row := SummaryRow{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			ItemID:    lot.ItemID,
			Stock:     stock,
			WIP:       buckets,
			WIPTotal:  total,
		}
		if lot.Item != nil {
			row.ItemCode = lot.Item.Code
			row.ItemName = lot.Item.Name
		}
		rows = append(rows, row)
	}
	return rows, nil
}
