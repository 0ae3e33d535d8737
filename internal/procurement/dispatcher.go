package procurement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mfgworks/traceline-backend/pkg/clock"
	"github.com/mfgworks/traceline-backend/pkg/config"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/enums"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

const (
	headerAPIKey    = "X-API-KEY"
	baseBackoff     = 30 * time.Second
	maxBackoff      = 30 * time.Minute
	stockInPath     = "/api/procurement/stock-in"
	stockOutPath    = "/api/procurement/stock-out"
	dispatchTimeout = 30 * time.Second
)

// httpDoer is the slice of http.Client the dispatcher uses.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Dispatcher drains the sync outbox to the external procurement system with
// at-least-once delivery. Failed rows retry with exponential backoff until
// the attempt ceiling; the local ledger entry is never touched.
type Dispatcher struct {
	repo    Repository
	httpCli httpDoer
	lock    Lock
	clock   clock.Clock
	logg    *logger.Logger

	baseURL      string
	apiKey       string
	pollInterval time.Duration
	batchSize    int
	maxAttempts  int
}

// NewDispatcher wires the outbox dispatcher.
func NewDispatcher(repo Repository, httpCli httpDoer, lock Lock, cfg config.ProcurementConfig, dispatchCfg config.DispatcherConfig, clk clock.Clock, logg *logger.Logger) (*Dispatcher, error) {
	if repo == nil {
		return nil, fmt.Errorf("procurement repository required")
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("procurement base url required")
	}
	if httpCli == nil {
		httpCli = &http.Client{Timeout: dispatchTimeout}
	}
	if clk == nil {
		clk = clock.System
	}
	return &Dispatcher{
		repo:         repo,
		httpCli:      httpCli,
		lock:         lock,
		clock:        clk,
		logg:         logg,
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		pollInterval: dispatchCfg.PollInterval,
		batchSize:    dispatchCfg.BatchSize,
		maxAttempts:  dispatchCfg.MaxAttempts,
	}, nil
}

// Run polls until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.RunOnce(ctx); err != nil && d.logg != nil {
				d.logg.Error(ctx, "outbox dispatch cycle failed", err)
			}
		}
	}
}

// RunOnce drains one batch under the distributed lock.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	if d.lock != nil {
		acquired, err := d.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire dispatch lock: %w", err)
		}
		if !acquired {
			return nil
		}
		defer func() {
			if err := d.lock.Release(ctx); err != nil && d.logg != nil {
				d.logg.Warn(ctx, "releasing dispatch lock failed")
			}
		}()
	}

	now := d.clock.Now()
	entries, err := d.repo.ClaimBatch(ctx, now, d.maxAttempts, d.batchSize)
	if err != nil {
		return fmt.Errorf("claim outbox batch: %w", err)
	}

	for _, entry := range entries {
		if err := d.deliver(ctx, entry); err != nil {
			attempts := entry.AttemptCount + 1
			next := d.clock.Now().Add(backoffFor(attempts))
			if markErr := d.repo.MarkFailed(ctx, entry.ID, attempts, next, err.Error()); markErr != nil {
				return markErr
			}
			if d.logg != nil {
				logCtx := d.logg.WithFields(ctx, map[string]any{
					"outbox_id": entry.ID.String(),
					"attempt":   attempts,
				})
				if attempts >= d.maxAttempts {
					d.logg.Error(logCtx, "outbox entry exhausted its attempts", err)
				} else {
					d.logg.Warn(logCtx, "outbox delivery failed, will retry")
				}
			}
			continue
		}
		if err := d.repo.MarkPublished(ctx, entry.ID, d.clock.Now()); err != nil {
			return err
		}
	}
	return nil
}

type syncPayload struct {
	SKU    string  `json:"sku"`
	LotNo  *string `json:"lot_no,omitempty"`
	Qty    string  `json:"qty"`
	Reason string  `json:"reason,omitempty"`
}

func (d *Dispatcher) deliver(ctx context.Context, entry models.SyncOutbox) error {
	path := stockInPath
	if entry.Type == enums.MovementTypeOut {
		path = stockOutPath
	}

	body, err := json.Marshal(syncPayload{
		SKU:    entry.SKU,
		LotNo:  entry.LotNumber,
		Qty:    entry.Quantity.String(),
		Reason: entry.Reason,
	})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set(headerAPIKey, d.apiKey)
	}

	resp, err := d.httpCli.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

func backoffFor(attempt int) time.Duration {
	backoff := baseBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff >= maxBackoff {
			return maxBackoff
		}
	}
	return backoff
}
