// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

// Package config provides centralized configuration management.
//
// Configuration is loaded in three layers with Koanf v2, later layers
// overriding earlier ones:
//  1. Built-in defaults
//  2. Optional YAML config file (CONFIG_PATH or default search paths)
//  3. Environment variables
//
// Config is immutable after Load() and safe for concurrent reads.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Sync     SyncConfig     `koanf:"sync"`
	Vendor   VendorConfig   `koanf:"vendor"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    int           `koanf:"port"`
	Host    string        `koanf:"host"`
	Timeout time.Duration `koanf:"timeout"`

	// Environment is the deployment mode: "development" or "production".
	// Production tightens TLS and secret requirements.
	Environment string `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = use runtime.NumCPU()
}

// SyncConfig holds stream reconciliation settings.
type SyncConfig struct {
	// Interval is the reconciliation cadence. The WebSocket re-broadcast
	// runs on the same cadence.
	Interval time.Duration `koanf:"interval"`

	// MissThreshold is the number of consecutive ticks a stream may be
	// absent from the vendor response before it is marked inactive.
	MissThreshold int `koanf:"miss_threshold"`
}

// VendorConfig holds settings for outbound calls to the media servers.
type VendorConfig struct {
	// RequestTimeout bounds every vendor HTTP call.
	RequestTimeout time.Duration `koanf:"request_timeout"`

	// InsecureTLS accepts self-signed vendor certificates.
	// Rejected when Environment is "production".
	InsecureTLS bool `koanf:"insecure_tls"`

	// RequestsPerSecond limits the outbound request rate per vendor server.
	// 0 disables the limiter.
	RequestsPerSecond float64 `koanf:"requests_per_second"`
}

// SecurityConfig holds authentication and rate-limit settings.
type SecurityConfig struct {
	JWTSecret      string        `koanf:"jwt_secret"`
	SessionTimeout time.Duration `koanf:"session_timeout"`

	// AdminUsername/AdminPassword bootstrap the initial admin account
	// when the users table is empty.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings for zerolog.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Server.Environment, "production")
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateVendor(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	switch strings.ToLower(c.Server.Environment) {
	case "development", "production":
		return nil
	default:
		return fmt.Errorf("ENVIRONMENT must be development or production, got %q", c.Server.Environment)
	}
}

func (c *Config) validateSync() error {
	if c.Sync.Interval < time.Second {
		return fmt.Errorf("SYNC_INTERVAL must be at least 1s, got %s", c.Sync.Interval)
	}
	if c.Sync.MissThreshold < 1 {
		return fmt.Errorf("SYNC_MISS_THRESHOLD must be at least 1, got %d", c.Sync.MissThreshold)
	}
	return nil
}

func (c *Config) validateVendor() error {
	if c.Vendor.RequestTimeout <= 0 {
		return fmt.Errorf("VENDOR_REQUEST_TIMEOUT must be positive, got %s", c.Vendor.RequestTimeout)
	}
	if c.Vendor.InsecureTLS && c.IsProduction() {
		return fmt.Errorf("VENDOR_INSECURE_TLS is not permitted when ENVIRONMENT=production")
	}
	if c.Vendor.RequestsPerSecond < 0 {
		return fmt.Errorf("VENDOR_REQUESTS_PER_SECOND must not be negative, got %g", c.Vendor.RequestsPerSecond)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 characters")
	}
	if c.Security.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", c.Security.SessionTimeout)
	}
	if c.Security.AdminUsername != "" && len(c.Security.AdminPassword) < 8 {
		return fmt.Errorf("ADMIN_PASSWORD must be at least 8 characters when ADMIN_USERNAME is set")
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", c.Security.RateLimitWindow)
		}
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			continue
		}
		if _, err := url.Parse(origin); err != nil {
			return fmt.Errorf("CORS_ORIGINS contains invalid origin %q: %w", origin, err)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
