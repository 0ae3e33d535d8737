package routes

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/internal/bom"
	"github.com/mfgworks/traceline-backend/internal/ledger"
	"github.com/mfgworks/traceline-backend/internal/procurement"
	"github.com/mfgworks/traceline-backend/internal/production"
	"github.com/mfgworks/traceline-backend/internal/shipping"
	"github.com/mfgworks/traceline-backend/internal/shortage"
	"github.com/mfgworks/traceline-backend/internal/trace"
	"github.com/mfgworks/traceline-backend/internal/wip"
	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/config"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
)

func newTestRouter(t *testing.T) (http.Handler, *gorm.DB) {
	t.Helper()

	dsn := "file:routes_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	client := db.NewWithConn(conn)
	clk := clock.NewFake(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))

	ledgerSvc, err := ledger.NewService(client, ledger.NewRepository(conn), clk)
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}
	bomSvc, err := bom.NewService(client, bom.NewRepository(conn))
	if err != nil {
		t.Fatalf("bom service: %v", err)
	}
	productionSvc, err := production.NewService(client, production.NewRepository(conn), ledgerSvc, clk, nil)
	if err != nil {
		t.Fatalf("production service: %v", err)
	}
	wipSvc, err := wip.NewService(wip.NewRepository(conn), ledgerSvc)
	if err != nil {
		t.Fatalf("wip service: %v", err)
	}
	shortageSvc, err := shortage.NewService(shortage.NewRepository(conn), ledgerSvc, clk, nil)
	if err != nil {
		t.Fatalf("shortage service: %v", err)
	}
	traceSvc, err := trace.NewService(trace.NewRepository(conn))
	if err != nil {
		t.Fatalf("trace service: %v", err)
	}
	shippingSvc, err := shipping.NewService(client, shipping.NewRepository(conn), ledgerSvc, clk)
	if err != nil {
		t.Fatalf("shipping service: %v", err)
	}
	procurementSvc, err := procurement.NewService(client, procurement.NewRepository(conn), ledgerSvc, enums.AutoOrderPolicyNever, clk, nil)
	if err != nil {
		t.Fatalf("procurement service: %v", err)
	}

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.API.SyncAPIKey = "router-test-key"

	handler := NewRouter(cfg, nil, nil, nil, Services{
		Ledger:      ledgerSvc,
		BOM:         bomSvc,
		Production:  productionSvc,
		WIP:         wipSvc,
		Shortage:    shortageSvc,
		Trace:       traceSvc,
		Shipping:    shippingSvc,
		Procurement: procurementSvc,
	})
	return handler, conn
}

func TestHealthLive(t *testing.T) {
	t.Parallel()

	handler, _ := newTestRouter(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if env := rec.Header().Get("X-Traceline-Env"); env != "test" {
		t.Fatalf("env header = %q, want test", env)
	}
}

func TestProcurementSyncRequiresAPIKey(t *testing.T) {
	t.Parallel()

	handler, conn := newTestRouter(t)
	item := models.Item{ID: uuid.New(), DepartmentID: uuid.New(), Code: "RT-1", Name: "router item"}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	body := `{"sku":"RT-1","lot_no":"RT-LOT-1","qty":"5"}`

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/procurement/stock-in", strings.NewReader(body)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status without key = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/procurement/stock-in", strings.NewReader(body))
	req.Header.Set("X-API-KEY", "router-test-key")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with key = %d, body %s", rec.Code, rec.Body.String())
	}

	var movementCount int64
	if err := conn.Model(&models.StockMovement{}).Count(&movementCount).Error; err != nil {
		t.Fatalf("count movements: %v", err)
	}
	if movementCount != 1 {
		t.Fatalf("movements = %d, want 1", movementCount)
	}
}

func TestItemBalanceEndpoint(t *testing.T) {
	t.Parallel()

	handler, conn := newTestRouter(t)
	item := models.Item{ID: uuid.New(), DepartmentID: uuid.New(), Code: "RT-2", Name: "router item"}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/items/"+item.ID.String()+"/balance", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var envelope struct {
		Data struct {
			Balance string `json:"balance"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if envelope.Data.Balance != "0" {
		t.Fatalf("balance = %q, want 0", envelope.Data.Balance)
	}
}

func TestUnknownMovementTypeRejected(t *testing.T) {
	t.Parallel()

	handler, conn := newTestRouter(t)
	item := models.Item{ID: uuid.New(), DepartmentID: uuid.New(), Code: "RT-3", Name: "router item"}
	if err := conn.Create(&item).Error; err != nil {
		t.Fatalf("seed item: %v", err)
	}

	body := `{"item_id":"` + item.ID.String() + `","quantity":"5","type":"teleport"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/departments/"+item.DepartmentID.String()+"/movements/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400, body %s", rec.Code, rec.Body.String())
	}
}
