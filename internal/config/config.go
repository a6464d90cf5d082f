// Package config loads the engine configuration from YAML and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AikidoSec/ratelimit-go/internal/accesscontrol"
	"github.com/AikidoSec/ratelimit-go/internal/store/sqlstore"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

const (
	DefaultLogLevel        = "info"
	DefaultNamespace       = "ratelimit"
	DefaultStoreTimeout    = 50 * time.Millisecond
	DefaultFailOpenLimit   = 1000
	DefaultCleanupInterval = time.Minute
	DefaultRedisChannel    = "ratelimit:alerts"
	DefaultMetricsAddr     = ":9090"
)

type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Namespace  string           `yaml:"namespace"`
	Store      StoreConfig      `yaml:"store"`
	Engine     EngineConfig     `yaml:"engine"`
	Violations ViolationsConfig `yaml:"violations"`
	Patterns   PatternsConfig   `yaml:"patterns"`
	Access     AccessConfig     `yaml:"access"`
	Alerts     AlertsConfig     `yaml:"alerts"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Rules      []RuleConfig     `yaml:"rules"`
}

type StoreConfig struct {
	Backend string        `yaml:"backend"`
	Timeout time.Duration `yaml:"timeout"`
	Redis   RedisConfig   `yaml:"redis"`
	SQL     SQLConfig     `yaml:"sql"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
}

type EngineConfig struct {
	FailOpenLimit   int64         `yaml:"fail_open_limit"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type ViolationsConfig struct {
	MaxPerKey      int           `yaml:"max_per_key"`
	MaxKeys        int           `yaml:"max_keys"`
	AlertThreshold int           `yaml:"alert_threshold"`
	AlertWindow    time.Duration `yaml:"alert_window"`
}

type PatternsConfig struct {
	AnalysisWindow      time.Duration `yaml:"analysis_window"`
	MaxEntries          int           `yaml:"max_entries"`
	SuspiciousThreshold float64       `yaml:"suspicious_threshold"`
}

type AccessConfig struct {
	Whitelist WhitelistConfig `yaml:"whitelist"`
	Blacklist BlacklistConfig `yaml:"blacklist"`
}

type WhitelistConfig struct {
	IPs     []string `yaml:"ips"`
	UserIDs []string `yaml:"user_ids"`
	APIKeys []string `yaml:"api_keys"`
}

type BlacklistConfig struct {
	IPs      []string `yaml:"ips"`
	UserIDs  []string `yaml:"user_ids"`
	Patterns []string `yaml:"patterns"`
}

type AlertsConfig struct {
	WebhookURL   string `yaml:"webhook_url"`
	WebhookToken string `yaml:"webhook_token"`
	// RedisChannel publishes alerts on the store's Redis connection. Only used with the redis backend.
	RedisChannel string `yaml:"redis_channel"`
	MaxPerHour   int    `yaml:"max_per_hour"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load reads and decodes the YAML file at path. Defaults and environment
// overrides are not applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML. Unknown fields are rejected.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid yaml: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SetDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.Store.Backend == "" {
		c.Store.Backend = BackendMemory
	}
	if c.Store.Timeout <= 0 {
		c.Store.Timeout = DefaultStoreTimeout
	}
	if c.Engine.FailOpenLimit <= 0 {
		c.Engine.FailOpenLimit = DefaultFailOpenLimit
	}
	if c.Engine.CleanupInterval <= 0 {
		c.Engine.CleanupInterval = DefaultCleanupInterval
	}
	if c.Alerts.RedisChannel == "" {
		c.Alerts.RedisChannel = DefaultRedisChannel
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	// Violation, pattern and alert limits default in their own packages.
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required for the redis backend")
		}
	case BackendSQL:
		if c.Store.SQL.DSN == "" {
			return errors.New("store.sql.dsn is required for the sql backend")
		}
		if _, err := sqlstore.DialectForDriver(c.Store.SQL.Driver); err != nil {
			return fmt.Errorf("store.sql.driver: %w", err)
		}
	default:
		return fmt.Errorf("unknown store backend %q (supported: memory, redis, sql)", c.Store.Backend)
	}

	if c.Violations.AlertThreshold < 0 {
		return errors.New("violations.alert_threshold must not be negative")
	}
	if c.Patterns.SuspiciousThreshold < 0 || c.Patterns.SuspiciousThreshold > 100 {
		return errors.New("patterns.suspicious_threshold must be between 0 and 100")
	}

	if _, err := accesscontrol.New(c.AccessLists()); err != nil {
		return fmt.Errorf("access lists validation failed: %w", err)
	}
	if _, err := c.BuildRules(); err != nil {
		return fmt.Errorf("rules validation failed: %w", err)
	}
	return nil
}
