// Package config defines service configuration and its loading rules.
//
// Conventions:
// - New() builds a Config with defaults; Load layers file and env on top.
// - Engine settings (bonus, cap, current season) live in the database, not here.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBDriver selects the store backend: sqlite3 or postgres.
	DBDriver string `koanf:"db_driver"`

	// DBDSN is the driver specific data source name.
	DBDSN string `koanf:"db_dsn"`

	// DBMaxOpenConns bounds the connection pool.
	DBMaxOpenConns int `koanf:"db_max_open_conns"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// SubmitRatePerMinute and SubmitBurst throttle claim submissions per participant.
	SubmitRatePerMinute int `koanf:"submit_rate_per_minute"`
	SubmitBurst         int `koanf:"submit_burst"`

	// RetentionDays is the default age after which purge removes claims.
	RetentionDays int `koanf:"retention_days"`

	// BootstrapAdmin is created as an active administrator on startup when missing.
	BootstrapAdmin string `koanf:"bootstrap_admin"`

	// Timezone names the IANA zone used to decide "today".
	Timezone string `koanf:"timezone"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		DBDriver:            DriverSQLite,
		DBDSN:               "file:acolyte.db?_foreign_keys=on&_busy_timeout=5000",
		DBMaxOpenConns:      10,
		MaxLeaderboardLimit: 100,
		SubmitRatePerMinute: 30,
		SubmitBurst:         5,
		RetentionDays:       365,
		BootstrapAdmin:      "admin",
		Timezone:            "Local",
	}
}

// Location resolves Timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: timezone %q: %v", ErrInvalidConfig, c.Timezone, err)
	}
	return loc, nil
}

// Validate checks invariants Load cannot express through defaults.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
	default:
		return fmt.Errorf("%w: unsupported db_driver %q", ErrInvalidConfig, c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("%w: db_dsn must not be empty", ErrInvalidConfig)
	}
	if c.MaxLeaderboardLimit <= 0 {
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	if c.SubmitRatePerMinute < 0 || c.SubmitBurst < 0 {
		return fmt.Errorf("%w: submit rate and burst must not be negative", ErrInvalidConfig)
	}
	if c.RetentionDays <= 0 {
		return fmt.Errorf("%w: retention_days must be positive", ErrInvalidConfig)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
