package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/mfgworks/traceline-backend/pkg/enums"
)

const (
	EnvPrefix  = "traceline"
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App         AppConfig
	DB          DBConfig
	Redis       RedisConfig
	API         APIConfig
	Procurement ProcurementConfig
	Dispatcher  DispatcherConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Procurement.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"TRACELINE_APP_ENV" default:"dev"`
	Port         string `envconfig:"TRACELINE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TRACELINE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"TRACELINE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN             string        `envconfig:"TRACELINE_DB_DSN" required:"true"`
	MaxOpenConns    int           `envconfig:"TRACELINE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TRACELINE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TRACELINE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TRACELINE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TRACELINE_REDIS_URL"`
	Address      string        `envconfig:"TRACELINE_REDIS_ADDR"`
	Password     string        `envconfig:"TRACELINE_REDIS_PASSWORD"`
	DB           int           `envconfig:"TRACELINE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TRACELINE_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"TRACELINE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TRACELINE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TRACELINE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// APIConfig guards the machine-to-machine inventory sync endpoint.
type APIConfig struct {
	SyncAPIKey string `envconfig:"TRACELINE_SYNC_API_KEY"`
}

// ProcurementConfig points at the external procurement system that mirrors
// local stock movements.
type ProcurementConfig struct {
	Enabled bool   `envconfig:"TRACELINE_PROCUREMENT_ENABLED" default:"false"`
	BaseURL string `envconfig:"TRACELINE_PROCUREMENT_URL"`
	APIKey  string `envconfig:"TRACELINE_PROCUREMENT_API_KEY"`
	// AutoOrderPolicy decides when an inbound sync creates a pending
	// production order: always, new_lot, or never.
	AutoOrderPolicy string        `envconfig:"TRACELINE_PROCUREMENT_AUTO_ORDER_POLICY" default:"new_lot"`
	Timeout         time.Duration `envconfig:"TRACELINE_PROCUREMENT_TIMEOUT" default:"15s"`
}

func (p ProcurementConfig) validate() error {
	if _, err := enums.ParseAutoOrderPolicy(p.AutoOrderPolicy); err != nil {
		return fmt.Errorf("procurement config: %w", err)
	}
	if p.Enabled && p.BaseURL == "" {
		return fmt.Errorf("procurement config: base url required when sync is enabled")
	}
	return nil
}

// Policy returns the parsed auto-order policy; Load has already validated it.
func (p ProcurementConfig) Policy() enums.AutoOrderPolicy {
	policy, err := enums.ParseAutoOrderPolicy(p.AutoOrderPolicy)
	if err != nil {
		return enums.AutoOrderPolicyNever
	}
	return policy
}

type DispatcherConfig struct {
	PollInterval time.Duration `envconfig:"TRACELINE_DISPATCHER_POLL_INTERVAL" default:"500ms"`
	BatchSize    int           `envconfig:"TRACELINE_DISPATCHER_BATCH_SIZE" default:"50"`
	MaxAttempts  int           `envconfig:"TRACELINE_DISPATCHER_MAX_ATTEMPTS" default:"10"`
	LockKey      string        `envconfig:"TRACELINE_DISPATCHER_LOCK_KEY" default:"traceline:sync-worker:lock"`
	LockTTL      time.Duration `envconfig:"TRACELINE_DISPATCHER_LOCK_TTL" default:"1m"`
}
