package wip

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
)

type fixture struct {
	conn   *gorm.DB
	svc    Service
	ledger ledger.Service
	dept   uuid.UUID
	base   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:wip_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ledgerSvc, err := ledger.NewService(db.NewWithConn(conn), ledger.NewRepository(conn), clock.NewFake(base))
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	svc, err := NewService(NewRepository(conn), ledgerSvc)
	if err != nil {
		t.Fatalf("wip service: %v", err)
	}
	return &fixture{conn: conn, svc: svc, ledger: ledgerSvc, dept: uuid.New(), base: base}
}

func (f *fixture) day(n int) time.Time {
	return f.base.AddDate(0, 0, n)
}

func (f *fixture) seedItem(t *testing.T, processNames ...string) (models.Item, []models.Process) {
	t.Helper()
	item := models.Item{
		ID: uuid.New(), DepartmentID: f.dept,
		Code: "ITM-" + uuid.NewString()[:8], Name: "widget",
	}
	if err := f.conn.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	processes := make([]models.Process, 0, len(processNames))
	for i, name := range processNames {
		p := models.Process{ID: uuid.New(), ItemID: item.ID, Name: name, SortOrder: (i + 1) * 10}
		if err := f.conn.Create(&p).Error; err != nil {
			t.Fatalf("seed process: %v", err)
		}
		processes = append(processes, p)
	}
	return item, processes
}

func (f *fixture) seedLot(t *testing.T, item models.Item, number string) models.Lot {
	t.Helper()
	lot := models.Lot{ID: uuid.New(), DepartmentID: f.dept, ItemID: item.ID, LotNumber: number}
	if err := f.conn.Create(&lot).Error; err != nil {
		t.Fatalf("seed lot: %v", err)
	}
	return lot
}

func (f *fixture) seedOrder(t *testing.T, item models.Item, lot models.Lot, target int64, createdAt time.Time) models.ProductionOrder {
	t.Helper()
	order := models.ProductionOrder{
		ID: uuid.New(), DepartmentID: f.dept, ItemID: item.ID, LotID: &lot.ID,
		TargetQuantity: decimal.NewFromInt(target),
		Status:         enums.OrderStatusInProgress,
	}
	if err := f.conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	// autoCreateTime fills created_at; pin it explicitly for the as-of cutoff.
	if err := f.conn.Model(&order).Update("created_at", createdAt).Error; err != nil {
		t.Fatalf("pin created_at: %v", err)
	}
	return order
}

func (f *fixture) completeRecord(t *testing.T, order models.ProductionOrder, process models.Process, good, defective int64, finishedAt time.Time) {
	t.Helper()
	started := finishedAt.Add(-time.Hour)
	rec := models.ProductionRecord{
		ID: uuid.New(), ProductionOrderID: order.ID, ProcessID: process.ID,
		Status:            enums.RecordStatusCompleted,
		GoodQuantity:      decimal.NewFromInt(good),
		DefectiveQuantity: decimal.NewFromInt(defective),
		WorkStartedAt:     &started,
		WorkFinishedAt:    &finishedAt,
	}
	if err := f.conn.Create(&rec).Error; err != nil {
		t.Fatalf("seed record: %v", err)
	}
}

func TestWIPMovesThroughProcessChain(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	item, processes := f.seedItem(t, "P1", "P2")
	lot := f.seedLot(t, item, "LOT-W1")
	order := f.seedOrder(t, item, lot, 100, f.day(0))

	// Before any record completes everything sits at the first process.
	buckets, err := f.svc.AtDate(ctx, lot.ID, f.day(0))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if !buckets["P1"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("day 0 P1 = %s, want 100", buckets["P1"])
	}

	// P1 completes with good=100 on day 1; the bucket moves to P2.
	f.completeRecord(t, order, processes[0], 100, 0, f.day(1))
	buckets, err = f.svc.AtDate(ctx, lot.ID, f.day(2))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if len(buckets) != 1 || !buckets["P2"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("day 2 buckets = %v, want {P2: 100}", buckets)
	}

	// P2 (the last process) completes with good=100 on day 6; nothing remains.
	f.completeRecord(t, order, processes[1], 100, 0, f.day(6))
	buckets, err = f.svc.AtDate(ctx, lot.ID, f.day(7))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if len(buckets) != 0 {
		t.Fatalf("day 7 buckets = %v, want empty", buckets)
	}

	// The history is still reconstructable: day 2 keeps its old answer.
	buckets, err = f.svc.AtDate(ctx, lot.ID, f.day(2))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if !buckets["P2"].Equal(decimal.NewFromInt(100)) {
		t.Fatalf("historical day 2 P2 = %s, want 100", buckets["P2"])
	}
}

func TestWIPConservation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	item, processes := f.seedItem(t, "P1", "P2", "P3")
	lot := f.seedLot(t, item, "LOT-W2")
	order := f.seedOrder(t, item, lot, 50, f.day(0))

	f.completeRecord(t, order, processes[0], 50, 0, f.day(1))
	f.completeRecord(t, order, processes[1], 50, 0, f.day(3))
	f.completeRecord(t, order, processes[2], 50, 0, f.day(5))

	target := decimal.NewFromInt(50)
	for day := 0; day <= 6; day++ {
		buckets, err := f.svc.AtDate(ctx, lot.ID, f.day(day))
		if err != nil {
			t.Fatalf("at date day %d: %v", day, err)
		}
		total := decimal.Zero
		for _, qty := range buckets {
			total = total.Add(qty)
		}
		finished := decimal.Zero
		if day >= 5 {
			finished = target
		}
		if !total.Add(finished).Equal(target) {
			t.Fatalf("day %d: wip %s + finished %s != target %s", day, total, finished, target)
		}
	}
}

func TestDefectsReduceWIP(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	item, processes := f.seedItem(t, "P1", "P2")
	lot := f.seedLot(t, item, "LOT-W3")
	order := f.seedOrder(t, item, lot, 100, f.day(0))

	f.completeRecord(t, order, processes[0], 90, 10, f.day(1))

	buckets, err := f.svc.AtDate(ctx, lot.ID, f.day(2))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if !buckets["P2"].Equal(decimal.NewFromInt(90)) {
		t.Fatalf("P2 = %s, want 90 after 10 defects", buckets["P2"])
	}
}

func TestStuckAtLastStepWithoutGoodOutput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	item, processes := f.seedItem(t, "P1", "P2")
	lot := f.seedLot(t, item, "LOT-W4")
	order := f.seedOrder(t, item, lot, 100, f.day(0))

	f.completeRecord(t, order, processes[0], 100, 0, f.day(1))
	// The last process finished a record but produced nothing good.
	f.completeRecord(t, order, processes[1], 0, 20, f.day(2))

	buckets, err := f.svc.AtDate(ctx, lot.ID, f.day(3))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if len(buckets) != 1 || !buckets["P2"].Equal(decimal.NewFromInt(80)) {
		t.Fatalf("buckets = %v, want {P2: 80} (remain at last completed step)", buckets)
	}
}

func TestCancelledOrdersAreIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	item, _ := f.seedItem(t, "P1")
	lot := f.seedLot(t, item, "LOT-W5")
	order := f.seedOrder(t, item, lot, 100, f.day(0))

	if err := f.conn.Model(&order).Update("status", enums.OrderStatusCancelled).Error; err != nil {
		t.Fatalf("cancel order: %v", err)
	}

	buckets, err := f.svc.AtDate(ctx, lot.ID, f.day(1))
	if err != nil {
		t.Fatalf("at date: %v", err)
	}
	if len(buckets) != 0 {
		t.Fatalf("cancelled order contributed WIP: %v", buckets)
	}
}

func TestLotSummaryCombinesStockAndWIP(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	item, _ := f.seedItem(t, "P1", "P2")
	lot := f.seedLot(t, item, "LOT-W6")
	f.seedOrder(t, item, lot, 40, f.day(0))

	if _, err := f.ledger.Post(ctx, ledger.PostInput{
		DepartmentID: f.dept, ItemID: item.ID, LotID: &lot.ID,
		Quantity: decimal.NewFromInt(15), Type: enums.MovementTypeIn, MovedAt: f.day(0),
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}

	rows, err := f.svc.LotSummary(ctx, f.dept, f.day(1))
	if err != nil {
		t.Fatalf("lot summary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	row := rows[0]
	if row.LotNumber != "LOT-W6" || row.ItemCode != item.Code {
		t.Fatalf("unexpected row identity: %+v", row)
	}
	if !row.Stock.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("stock = %s, want 15", row.Stock)
	}
	if !row.WIPTotal.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("wip total = %s, want 40", row.WIPTotal)
	}
}
