package shortage

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
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := "file:shortage_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	clk := clock.NewFake(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	ledgerSvc, err := ledger.NewService(db.NewWithConn(conn), ledger.NewRepository(conn), clk)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	svc, err := NewService(NewRepository(conn), ledgerSvc, clk, nil)
	if err != nil {
		t.Fatalf("shortage service: %v", err)
	}
	return &fixture{conn: conn, svc: svc, ledger: ledgerSvc, dept: uuid.New()}
}

func (f *fixture) seedItem(t *testing.T, code string, alertQty int64) models.Item {
	t.Helper()
	item := models.Item{
		ID: uuid.New(), DepartmentID: f.dept, Code: code, Name: code,
		InventoryAlertQty: decimal.NewFromInt(alertQty),
	}
	if err := f.conn.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item
}

func (f *fixture) seedStock(t *testing.T, item models.Item, qty int64) {
	t.Helper()
	if qty == 0 {
		return
	}
	if _, err := f.ledger.Post(context.Background(), ledger.PostInput{
		DepartmentID: f.dept, ItemID: item.ID,
		Quantity: decimal.NewFromInt(qty), Type: enums.MovementTypeIn,
	}); err != nil {
		t.Fatalf("seed stock: %v", err)
	}
}

func (f *fixture) seedEdge(t *testing.T, parent, child models.Item, perUnit int64) {
	t.Helper()
	edge := models.BOMEdge{
		ID: uuid.New(), ParentItemID: parent.ID, ChildItemID: child.ID,
		Quantity: decimal.NewFromInt(perUnit),
	}
	if err := f.conn.Create(&edge).Error; err != nil {
		t.Fatalf("seed edge: %v", err)
	}
}

func (f *fixture) seedDemand(t *testing.T, item models.Item, qty int64) {
	t.Helper()
	order := models.SalesOrder{
		ID: uuid.New(), DepartmentID: f.dept, ItemID: item.ID,
		OrderNumber: "SO-" + uuid.NewString()[:8],
		OrderDate:   time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
		Quantity:    decimal.NewFromInt(qty),
		Status:      enums.SalesOrderStatusPending,
	}
	if err := f.conn.Create(&order).Error; err != nil {
		t.Fatalf("seed sales order: %v", err)
	}
}

func rowFor(rows []Row, itemID uuid.UUID) *Row {
	for i := range rows {
		if rows[i].ItemID == itemID {
			return &rows[i]
		}
	}
	return nil
}

func TestAlertThresholdBreachWithoutDemand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.seedItem(t, "ALERT-1", 50)
	f.seedStock(t, item, 30)

	rows, err := f.svc.Report(context.Background(), f.dept)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	row := rowFor(rows, item.ID)
	if row == nil {
		t.Fatalf("below-threshold item missing from report")
	}
	if !row.Required.IsZero() || !row.Stock.Equal(decimal.NewFromInt(30)) ||
		!row.AlertQty.Equal(decimal.NewFromInt(50)) || !row.BelowAlert || row.Level != 0 {
		t.Fatalf("unexpected row: %+v", row)
	}
}

func TestHealthyStockProducesNoRow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.seedItem(t, "OK-1", 50)
	f.seedStock(t, item, 80)

	rows, err := f.svc.Report(context.Background(), f.dept)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty report, got %+v", rows)
	}
}

func TestDemandExplodesThroughBOM(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	assembly := f.seedItem(t, "ASM-1", 0)
	part := f.seedItem(t, "PART-1", 0)
	raw := f.seedItem(t, "RAW-1", 0)
	f.seedEdge(t, assembly, part, 2)
	f.seedEdge(t, part, raw, 3)

	f.seedStock(t, assembly, 10)
	f.seedStock(t, part, 5)
	// raw has no stock at all.
	f.seedDemand(t, assembly, 30)

	rows, err := f.svc.Report(context.Background(), f.dept)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	top := rowFor(rows, assembly.ID)
	if top == nil || top.Level != 0 || !top.Required.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected top row: %+v", top)
	}

	// Shortage 20 at the assembly -> 40 parts needed.
	partRow := rowFor(rows, part.ID)
	if partRow == nil {
		t.Fatalf("part row missing")
	}
	if partRow.Level != 1 || partRow.Parent != "ASM-1" || !partRow.Required.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected part row: %+v", partRow)
	}

	// Part shortage 35 -> 105 raw needed.
	rawRow := rowFor(rows, raw.ID)
	if rawRow == nil {
		t.Fatalf("raw row missing")
	}
	if rawRow.Level != 2 || rawRow.Parent != "PART-1" || !rawRow.Required.Equal(decimal.NewFromInt(105)) {
		t.Fatalf("unexpected raw row: %+v", rawRow)
	}
}

func TestSharedComponentAccumulatesAcrossPaths(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	prodA := f.seedItem(t, "PROD-A", 0)
	prodB := f.seedItem(t, "PROD-B", 0)
	shared := f.seedItem(t, "SHARED", 0)
	f.seedEdge(t, prodA, shared, 1)
	f.seedEdge(t, prodB, shared, 2)

	f.seedDemand(t, prodA, 10)
	f.seedDemand(t, prodB, 10)

	rows, err := f.svc.Report(context.Background(), f.dept)
	if err != nil {
		t.Fatalf("report: %v", err)
	}

	row := rowFor(rows, shared.ID)
	if row == nil {
		t.Fatalf("shared component missing")
	}
	// 10*1 from PROD-A plus 10*2 from PROD-B.
	if !row.Required.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("shared required = %s, want 30", row.Required)
	}
}

func TestCyclicBOMTerminates(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	a := f.seedItem(t, "CYC-A", 0)
	b := f.seedItem(t, "CYC-B", 0)
	// Deliberately corrupt graph: a -> b -> a.
	f.seedEdge(t, a, b, 1)
	f.seedEdge(t, b, a, 1)

	f.seedDemand(t, a, 10)

	done := make(chan struct{})
	var rows []Row
	var err error
	go func() {
		rows, err = f.svc.Report(context.Background(), f.dept)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("report did not terminate on cyclic bom")
	}
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rowFor(rows, a.ID) == nil || rowFor(rows, b.ID) == nil {
		t.Fatalf("expected bounded rows for both cycle members, got %+v", rows)
	}
}

func TestShippedAndCancelledOrdersCarryNoDemand(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	item := f.seedItem(t, "DONE-1", 0)

	for _, status := range []enums.SalesOrderStatus{
		enums.SalesOrderStatusShipped, enums.SalesOrderStatusCancelled,
	} {
		order := models.SalesOrder{
			ID: uuid.New(), DepartmentID: f.dept, ItemID: item.ID,
			OrderNumber: "SO-" + uuid.NewString()[:8],
			OrderDate:   time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC),
			Quantity:    decimal.NewFromInt(100),
			Status:      status,
		}
		if err := f.conn.Create(&order).Error; err != nil {
			t.Fatalf("seed order: %v", err)
		}
	}

	rows, err := f.svc.Report(context.Background(), f.dept)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("closed orders must not seed demand, got %+v", rows)
	}
}
