// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/qianshe/snowflake"
	"github.com/qianshe/snowflake/internal/logging"
)

// Unset marks a node ID that was not configured and must be derived
// (lease or hostname hash).
const Unset int64 = -1

// Environment keys.
const (
	EnvWorkerID         = "SNOWFLAKE_WORKER_ID"
	EnvDatacenterID     = "SNOWFLAKE_DATACENTER_ID"
	EnvHTTPAddr         = "SNOWFLAKE_HTTP_ADDR"
	EnvDBPath           = "SNOWFLAKE_DB_PATH"
	EnvRedisAddr        = "SNOWFLAKE_REDIS_ADDR"
	EnvRedisPassword    = "SNOWFLAKE_REDIS_PASSWORD"
	EnvRedisDB          = "SNOWFLAKE_REDIS_DB"
	EnvLeaseTTL         = "SNOWFLAKE_LEASE_TTL"
	EnvMaxClockBackward = "SNOWFLAKE_MAX_CLOCK_BACKWARD"
	EnvMaxSpinWait      = "SNOWFLAKE_MAX_SPIN_WAIT"
	EnvClockRollback    = "SNOWFLAKE_CLOCK_ROLLBACK"
	EnvLogLevel         = "SNOWFLAKE_LOG_LEVEL"
	EnvLogFormat        = "SNOWFLAKE_LOG_FORMAT"
)

// Config holds all configuration for the service.
type Config struct {
	// Node identity. Unset means derive it.
	WorkerID     int64
	DatacenterID int64

	HTTPAddr string
	DBPath   string

	// Redis slot leasing; disabled when RedisAddr is empty.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LeaseTTL      time.Duration

	// Generator tuning
	MaxClockBackward time.Duration
	MaxSpinWait      time.Duration
	ClockRollback    snowflake.RollbackPolicy

	LogLevel  string
	LogFormat string
}

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv loads configuration from the process environment.
func FromEnv() (*Config, error) {
	return Load(os.LookupEnv)
}

// Load reads every key through lookup, applying defaults for missing ones.
// Malformed values are errors rather than silently defaulted.
func Load(lookup LookupFunc) (*Config, error) {
	l := loader{lookup: lookup}

	cfg := &Config{
		WorkerID:     l.integer(EnvWorkerID, Unset),
		DatacenterID: l.integer(EnvDatacenterID, Unset),

		HTTPAddr: l.str(EnvHTTPAddr, ":8080"),
		DBPath:   l.str(EnvDBPath, "snowflake.db"),

		RedisAddr:     l.str(EnvRedisAddr, ""),
		RedisPassword: l.str(EnvRedisPassword, ""),
		RedisDB:       int(l.integer(EnvRedisDB, 0)),
		LeaseTTL:      l.duration(EnvLeaseTTL, 30*time.Second),

		MaxClockBackward: l.duration(EnvMaxClockBackward, snowflake.DefaultMaxClockBackward),
		MaxSpinWait:      l.duration(EnvMaxSpinWait, snowflake.DefaultMaxSpinWait),

		LogLevel:  l.str(EnvLogLevel, "info"),
		LogFormat: l.str(EnvLogFormat, "text"),
	}

	if raw, ok := lookup(EnvClockRollback); ok {
		policy, err := snowflake.ParseRollbackPolicy(raw)
		if err != nil && l.err == nil {
			l.err = fmt.Errorf("%s: %w", EnvClockRollback, err)
		}
		cfg.ClockRollback = policy
	}

	if l.err != nil {
		return nil, l.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and enumerations, naming the offending key.
func (c *Config) Validate() error {
	if c.WorkerID != Unset && (c.WorkerID < 0 || c.WorkerID > snowflake.MaxWorkerID) {
		return fmt.Errorf("%s=%d: must be between 0 and %d", EnvWorkerID, c.WorkerID, snowflake.MaxWorkerID)
	}
	if c.DatacenterID != Unset && (c.DatacenterID < 0 || c.DatacenterID > snowflake.MaxDatacenterID) {
		return fmt.Errorf("%s=%d: must be between 0 and %d", EnvDatacenterID, c.DatacenterID, snowflake.MaxDatacenterID)
	}
	if (c.WorkerID == Unset) != (c.DatacenterID == Unset) {
		return fmt.Errorf("%s and %s must be set together", EnvWorkerID, EnvDatacenterID)
	}
	if c.LeaseTTL < 3*time.Second {
		return fmt.Errorf("%s=%v: must be at least 3s", EnvLeaseTTL, c.LeaseTTL)
	}
	if c.MaxClockBackward < 0 {
		return fmt.Errorf("%s=%v: must be non-negative", EnvMaxClockBackward, c.MaxClockBackward)
	}
	if c.MaxSpinWait <= 0 {
		return fmt.Errorf("%s=%v: must be positive", EnvMaxSpinWait, c.MaxSpinWait)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", EnvLogLevel, err)
	}
	if _, err := logging.ParseFormat(c.LogFormat); err != nil {
		return fmt.Errorf("%s: %w", EnvLogFormat, err)
	}
	return nil
}

// HasNodeID reports whether both node IDs were configured explicitly.
func (c *Config) HasNodeID() bool {
	return c.WorkerID != Unset && c.DatacenterID != Unset
}

// GeneratorConfig maps the service settings onto a generator configuration
// for the given node.
func (c *Config) GeneratorConfig(workerID, datacenterID int64) snowflake.Config {
	cfg := snowflake.DefaultConfig(workerID, datacenterID)
	cfg.MaxSpinWait = c.MaxSpinWait
	cfg.MaxClockBackward = c.MaxClockBackward
	cfg.OnClockRollback = c.ClockRollback
	return cfg
}

// Logger builds the logger described by LogLevel and LogFormat. Both were
// checked by Validate.
func (c *Config) Logger(component string) *slog.Logger {
	level, _ := logging.ParseLevel(c.LogLevel)
	format, _ := logging.ParseFormat(c.LogFormat)
	return logging.New(logging.Options{Level: level, Format: format, Component: component})
}

// loader records the first parse error and keeps going with defaults.
type loader struct {
	lookup LookupFunc
	err    error
}

func (l *loader) str(key, def string) string {
	if v, ok := l.lookup(key); ok {
		return v
	}
	return def
}

func (l *loader) integer(key string, def int64) int64 {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return n
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v, ok := l.lookup(key)
	if !ok || v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l.fail(key, v, err)
		return def
	}
	return d
}

func (l *loader) fail(key, value string, err error) {
	if l.err == nil {
		l.err = fmt.Errorf("%s=%q: %w", key, value, err)
	}
}
