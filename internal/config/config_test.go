// Streamwarden - Multi-Tenant Streaming Media Server Dashboard
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/streamwarden

package config

import (
	"strings"
	"testing"
	"time"
)

// validConfig returns a config that passes Validate.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = strings.Repeat("s", 32)
	return cfg
}

func TestDefaultsAreValidWithSecret(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with secret should validate: %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "port out of range",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "HTTP_PORT",
		},
		{
			name:   "bad environment",
			mutate: func(c *Config) { c.Server.Environment = "staging" },
			want:   "ENVIRONMENT",
		},
		{
			name:   "sync interval too small",
			mutate: func(c *Config) { c.Sync.Interval = 100 * time.Millisecond },
			want:   "SYNC_INTERVAL",
		},
		{
			name:   "miss threshold zero",
			mutate: func(c *Config) { c.Sync.MissThreshold = 0 },
			want:   "SYNC_MISS_THRESHOLD",
		},
		{
			name: "insecure TLS in production",
			mutate: func(c *Config) {
				c.Server.Environment = "production"
				c.Vendor.InsecureTLS = true
			},
			want: "VENDOR_INSECURE_TLS",
		},
		{
			name:   "short JWT secret",
			mutate: func(c *Config) { c.Security.JWTSecret = "too-short" },
			want:   "JWT_SECRET",
		},
		{
			name: "admin user with weak password",
			mutate: func(c *Config) {
				c.Security.AdminUsername = "admin"
				c.Security.AdminPassword = "short"
			},
			want: "ADMIN_PASSWORD",
		},
		{
			name:   "bad log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
			want:   "LOG_LEVEL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestInsecureTLSAllowedInDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.Vendor.InsecureTLS = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("insecure TLS should be allowed in development: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"DUCKDB_PATH", "database.path"},
		{"SYNC_INTERVAL", "sync.interval"},
		{"SYNC_MISS_THRESHOLD", "sync.miss_threshold"},
		{"VENDOR_INSECURE_TLS", "vendor.insecure_tls"},
		{"JWT_SECRET", "security.jwt_secret"},
		{"CORS_ORIGINS", "security.cors_origins"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("SYNC_INTERVAL", "45s")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Sync.Interval != 45*time.Second {
		t.Errorf("Sync.Interval = %s, want 45s", cfg.Sync.Interval)
	}
	if len(cfg.Security.CORSOrigins) != 2 {
		t.Fatalf("CORSOrigins = %v, want 2 entries", cfg.Security.CORSOrigins)
	}
	if cfg.Security.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins[1] = %q", cfg.Security.CORSOrigins[1])
	}
}
