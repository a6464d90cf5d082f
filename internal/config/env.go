package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Environment variables read by ApplyEnv.
const (
	EnvLogLevel      = "RATELIMIT_LOG_LEVEL"
	EnvStore         = "RATELIMIT_STORE"
	EnvRedisAddr     = "RATELIMIT_REDIS_ADDR"
	EnvRedisPassword = "RATELIMIT_REDIS_PASSWORD"
	EnvRedisDB       = "RATELIMIT_REDIS_DB"
	EnvSQLDriver     = "RATELIMIT_SQL_DRIVER"
	EnvSQLDSN        = "RATELIMIT_SQL_DSN"
	EnvNamespace     = "RATELIMIT_NAMESPACE"
	EnvStoreTimeout  = "RATELIMIT_STORE_TIMEOUT"
	EnvAlertWebhook  = "RATELIMIT_ALERT_WEBHOOK"
	EnvMetricsAddr   = "RATELIMIT_METRICS_ADDR"
)

// ApplyEnv overrides fields with the RATELIMIT_* environment variables that are set.
// Setting RATELIMIT_METRICS_ADDR also enables metrics.
func (c *Config) ApplyEnv() error {
	setString(EnvLogLevel, &c.LogLevel)
	setString(EnvStore, &c.Store.Backend)
	setString(EnvRedisAddr, &c.Store.Redis.Addr)
	setString(EnvRedisPassword, &c.Store.Redis.Password)
	setString(EnvSQLDriver, &c.Store.SQL.Driver)
	setString(EnvSQLDSN, &c.Store.SQL.DSN)
	setString(EnvNamespace, &c.Namespace)
	setString(EnvAlertWebhook, &c.Alerts.WebhookURL)
	if setString(EnvMetricsAddr, &c.Metrics.Addr) {
		c.Metrics.Enabled = true
	}

	if v, ok := os.LookupEnv(EnvRedisDB); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvRedisDB, v, err)
		}
		c.Store.Redis.DB = db
	}

	if v, ok := os.LookupEnv(EnvStoreTimeout); ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvStoreTimeout, v, err)
		}
		c.Store.Timeout = d
	}
	return nil
}

func setString(name string, dst *string) bool {
	v, ok := os.LookupEnv(name)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}

// parseDuration accepts Go durations ("50ms") and bare integers as milliseconds.
func parseDuration(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	return time.ParseDuration(v)
}
