package ratelimit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AikidoSec/ratelimit-go/internal/alerts"
	"github.com/AikidoSec/ratelimit-go/internal/config"
	"github.com/AikidoSec/ratelimit-go/internal/log"
	"github.com/AikidoSec/ratelimit-go/internal/patterns"
	"github.com/AikidoSec/ratelimit-go/internal/store"
	"github.com/AikidoSec/ratelimit-go/internal/store/redisstore"
	"github.com/AikidoSec/ratelimit-go/internal/store/sqlstore"
	"github.com/AikidoSec/ratelimit-go/internal/violations"
)

type Config = config.Config

const connectTimeout = 5 * time.Second

// LoadConfig reads a YAML file, applies RATELIMIT_* environment overrides and
// defaults, and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &config.Config{}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewFromConfig connects the configured store, builds the alert sinks and
// registers the configured rules. SQL drivers must be registered by the
// caller (blank import). metrics may be nil. Close releases the connections.
func NewFromConfig(ctx context.Context, cfg *Config, metrics *Metrics) (*Engine, error) {
	if err := log.SetLogLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	st, rdb, closers, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	sinks := alerts.Multi{alerts.LogSink{}}
	if cfg.Alerts.WebhookURL != "" {
		var opts []alerts.WebhookOption
		if cfg.Alerts.WebhookToken != "" {
			opts = append(opts, alerts.WithToken(cfg.Alerts.WebhookToken))
		}
		sinks = append(sinks, alerts.NewWebhookSink(cfg.Alerts.WebhookURL, opts...))
	}
	if rdb != nil {
		sinks = append(sinks, alerts.NewRedisSink(rdb, cfg.Alerts.RedisChannel))
	}

	engine, err := New(Options{
		Store:           st,
		Namespace:       cfg.Namespace,
		StoreTimeout:    cfg.Store.Timeout,
		FailOpenLimit:   cfg.Engine.FailOpenLimit,
		CleanupInterval: cfg.Engine.CleanupInterval,
		Access:          cfg.AccessLists(),
		Violations: violations.Options{
			MaxPerKey:      cfg.Violations.MaxPerKey,
			MaxKeys:        cfg.Violations.MaxKeys,
			AlertThreshold: cfg.Violations.AlertThreshold,
			AlertWindow:    cfg.Violations.AlertWindow,
		},
		Patterns: patterns.Options{
			AnalysisWindow:      cfg.Patterns.AnalysisWindow,
			MaxEntries:          cfg.Patterns.MaxEntries,
			SuspiciousThreshold: cfg.Patterns.SuspiciousThreshold,
		},
		AlertSink:     sinks,
		AlertsPerHour: cfg.Alerts.MaxPerHour,
		Metrics:       metrics,
	})
	if err != nil {
		closeAll()
		return nil, err
	}
	engine.closers = closers

	rules, err := cfg.BuildRules()
	if err != nil {
		closeAll()
		return nil, err
	}
	for _, rule := range rules {
		if err := engine.AddRule(rule); err != nil {
			closeAll()
			return nil, err
		}
	}

	log.Info("Rate limit engine configured",
		slog.String("store", cfg.Store.Backend),
		slog.String("namespace", engine.Namespace()),
		slog.Int("rules", len(rules)))
	return engine, nil
}

// openStore returns the store, the Redis client when the backend is redis, and
// the functions that release what was opened.
func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, redis.UniversalClient, []func() error, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st := redisstore.New(rdb)
		if err := st.Ping(ctx, connectTimeout); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return st, rdb, []func() error{st.Close}, nil

	case config.BackendSQL:
		dialect, err := sqlstore.DialectForDriver(cfg.SQL.Driver)
		if err != nil {
			return nil, nil, nil, err
		}
		db, err := sql.Open(cfg.SQL.Driver, cfg.SQL.DSN)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open %s database: %w", cfg.SQL.Driver, err)
		}

		var opts []sqlstore.Option
		if cfg.SQL.Table != "" {
			opts = append(opts, sqlstore.WithTable(cfg.SQL.Table))
		}
		initCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		st, err := sqlstore.New(initCtx, db, dialect, opts...)
		if err != nil {
			_ = db.Close()
			return nil, nil, nil, err
		}
		return st, nil, []func() error{db.Close}, nil

	default:
		return store.NewMemory(), nil, nil, nil
	}
}
