package procurement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/config"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
)

func seedOutbox(t *testing.T, conn *gorm.DB, sku string, movementType enums.MovementType) models.SyncOutbox {
	t.Helper()
	lot := "EXT-LOT-9"
	entry := models.SyncOutbox{
		ID: uuid.New(), MovementID: uuid.New(),
		SKU: sku, LotNumber: &lot,
		Quantity: decimal.NewFromInt(7), Type: movementType, Reason: "test",
	}
	if err := conn.Create(&entry).Error; err != nil {
		t.Fatalf("seed outbox: %v", err)
	}
	return entry
}

func newDispatcher(t *testing.T, conn *gorm.DB, baseURL string, clk clock.Clock) *Dispatcher {
	t.Helper()
	d, err := NewDispatcher(
		NewRepository(conn),
		nil,
		nil,
		config.ProcurementConfig{Enabled: true, BaseURL: baseURL, APIKey: "secret"},
		config.DispatcherConfig{PollInterval: 10 * time.Millisecond, BatchSize: 10, MaxAttempts: 3},
		clk,
		nil,
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestDispatcherPublishesPendingEntries(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	inEntry := seedOutbox(t, conn, "DSP-1", enums.MovementTypeIn)
	outEntry := seedOutbox(t, conn, "DSP-2", enums.MovementTypeOut)

	var paths []string
	var keys []string
	var payloads []syncPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		keys = append(keys, r.Header.Get("X-API-KEY"))
		var p syncPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		payloads = append(payloads, p)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := newDispatcher(t, conn, server.URL, clock.NewFake(time.Now()))
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	if len(paths) != 2 {
		t.Fatalf("requests = %d, want 2", len(paths))
	}
	wantPaths := map[string]bool{"/api/procurement/stock-in": true, "/api/procurement/stock-out": true}
	for _, p := range paths {
		if !wantPaths[p] {
			t.Fatalf("unexpected path %s", p)
		}
	}
	for _, k := range keys {
		if k != "secret" {
			t.Fatalf("api key header = %q, want secret", k)
		}
	}
	for _, p := range payloads {
		if p.Qty != "7" || p.LotNo == nil || *p.LotNo != "EXT-LOT-9" {
			t.Fatalf("unexpected payload: %+v", p)
		}
	}

	for _, id := range []uuid.UUID{inEntry.ID, outEntry.ID} {
		var entry models.SyncOutbox
		if err := conn.First(&entry, "id = ?", id).Error; err != nil {
			t.Fatalf("reload entry: %v", err)
		}
		if entry.PublishedAt == nil {
			t.Fatalf("entry %s not marked published", id)
		}
	}
}

func TestDispatcherBacksOffOnFailure(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	entry := seedOutbox(t, conn, "DSP-3", enums.MovementTypeIn)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	d := newDispatcher(t, conn, server.URL, clk)
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}

	var reloaded models.SyncOutbox
	if err := conn.First(&reloaded, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PublishedAt != nil {
		t.Fatalf("failed entry must stay unpublished")
	}
	if reloaded.AttemptCount != 1 || reloaded.NextAttemptAt == nil || reloaded.LastError == nil {
		t.Fatalf("failure bookkeeping missing: %+v", reloaded)
	}
	if !reloaded.NextAttemptAt.After(clk.Now()) {
		t.Fatalf("next attempt %s not in the future", reloaded.NextAttemptAt)
	}

	// A second cycle before the backoff elapses must skip the entry.
	var calls atomic.Int32
	skipServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer skipServer.Close()
	d2 := newDispatcher(t, conn, skipServer.URL, clk)
	if err := d2.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("entry delivered before its backoff elapsed")
	}

	// Once the clock passes next_attempt_at the entry is retried.
	clk.Advance(time.Hour)
	if err := d2.RunOnce(context.Background()); err != nil {
		t.Fatalf("third run: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("entry not retried after backoff, calls = %d", calls.Load())
	}
}

func TestDispatcherStopsAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	entry := seedOutbox(t, conn, "DSP-4", enums.MovementTypeIn)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	d := newDispatcher(t, conn, server.URL, clk)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if err := d.RunOnce(ctx); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		clk.Advance(24 * time.Hour)
	}

	// MaxAttempts is 3: the fourth and fifth cycles must not deliver.
	if calls.Load() != 3 {
		t.Fatalf("delivery attempts = %d, want 3", calls.Load())
	}
	var reloaded models.SyncOutbox
	if err := conn.First(&reloaded, "id = ?", entry.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.PublishedAt != nil || reloaded.AttemptCount != 3 {
		t.Fatalf("terminal entry state unexpected: %+v", reloaded)
	}
}

type fakeStore struct {
	values map[string]string
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if f.values == nil {
		f.values = map[string]string{}
	}
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	return true, nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func TestDispatcherSkipsWhenLockHeld(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	seedOutbox(t, conn, "DSP-5", enums.MovementTypeIn)

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	store := &fakeStore{}
	holder, err := NewRedisLock(store, "test-lock", time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	if ok, err := holder.Acquire(context.Background()); err != nil || !ok {
		t.Fatalf("pre-acquire lock: ok=%v err=%v", ok, err)
	}

	contender, err := NewRedisLock(store, "test-lock", time.Minute)
	if err != nil {
		t.Fatalf("new contender lock: %v", err)
	}
	d := newDispatcher(t, conn, server.URL, clock.NewFake(time.Now()))
	d.lock = contender

	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("dispatcher ran while the lock was held elsewhere")
	}

	// After the holder releases, the next cycle drains the entry.
	if err := holder.Release(context.Background()); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("entry not delivered after lock release, calls = %d", calls.Load())
	}
}
