package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/mfgworks/traceline-backend/api/routes"
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
	"github.com/mfgworks/traceline-backend/pkg/logger"
	"github.com/mfgworks/traceline-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	// Redis only backs the sync worker's lock and the readiness probe, so the
	// API stays up without it.
	var redisClient *redis.Client
	var redisPinger redis.Pinger
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		redisPinger = redisClient
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	} else {
		logg.Warn(context.Background(), "redis not configured, readiness probe skips it")
	}

	conn := dbClient.DB()
	clk := clock.System

	ledgerSvc, err := ledger.NewService(dbClient, ledger.NewRepository(conn), clk)
	requireService(logg, "ledger", err)
	bomSvc, err := bom.NewService(dbClient, bom.NewRepository(conn))
	requireService(logg, "bom", err)
	productionSvc, err := production.NewService(dbClient, production.NewRepository(conn), ledgerSvc, clk, logg)
	requireService(logg, "production", err)
	wipSvc, err := wip.NewService(wip.NewRepository(conn), ledgerSvc)
	requireService(logg, "wip", err)
	shortageSvc, err := shortage.NewService(shortage.NewRepository(conn), ledgerSvc, clk, logg)
	requireService(logg, "shortage", err)
	traceSvc, err := trace.NewService(trace.NewRepository(conn))
	requireService(logg, "trace", err)
	shippingSvc, err := shipping.NewService(dbClient, shipping.NewRepository(conn), ledgerSvc, clk)
	requireService(logg, "shipping", err)
	procurementSvc, err := procurement.NewService(dbClient, procurement.NewRepository(conn), ledgerSvc, cfg.Procurement.Policy(), clk, logg)
	requireService(logg, "procurement", err)

	handler := routes.NewRouter(cfg, logg, dbClient, redisPinger, routes.Services{
		Ledger:      ledgerSvc,
		BOM:         bomSvc,
		Production:  productionSvc,
		WIP:         wipSvc,
		Shortage:    shortageSvc,
		Trace:       traceSvc,
		Shipping:    shippingSvc,
		Procurement: procurementSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{Addr: addr, Handler: handler}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "api server shutdown failed", err)
			os.Exit(1)
		}
		logg.Info(ctx, "api server shut down gracefully")
	}
}

func requireService(logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+name+" service", err)
	os.Exit(1)
}
