package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"

	"github.com/mfgworks/traceline-backend/pkg/config"
	"github.com/mfgworks/traceline-backend/pkg/db"
	"github.com/mfgworks/traceline-backend/pkg/db/models"
	"github.com/mfgworks/traceline-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := dbClient.DB().AutoMigrate(models.All()...); err != nil {
		logg.Error(ctx, "schema migration failed", err)
		os.Exit(1)
	}

	logg.Info(ctx, "schema migration complete")
}
