// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package config provides layered configuration loading via Koanf v2.
//
// Configuration sources, lowest to highest priority:
//  1. Built-in defaults (defaultConfig)
//  2. Config file (config.yaml, or CONFIG_PATH)
//  3. Environment variables (TABLESCOPE_* style mappings)
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the Tablescope server.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Dataset  DatasetConfig  `koanf:"dataset"`
	Cache    CacheConfig    `koanf:"cache"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`

	// ReadTimeout/WriteTimeout bound slow clients, not query execution.
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow, keyed by client IP.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory, which is
	// the normal mode for this demo service: the dataset is rebuilt at
	// startup and on upload.
	Path string `koanf:"path"`

	MaxMemory string `koanf:"max_memory"`

	// Threads for DuckDB execution. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`

	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// DatasetConfig controls the bundled demo dataset and upload limits.
type DatasetConfig struct {
	// GeneratedRows is the target row count for the synthetic dataset
	// generated at startup and via the generate endpoint.
	GeneratedRows int `koanf:"generated_rows"`

	// MaxUploadBytes bounds accepted upload size.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// CacheConfig controls the query result cache.
type CacheConfig struct {
	// Capacity is the maximum number of distinct cached queries (LRU bound).
	Capacity int `koanf:"capacity"`

	// TTL expires entries even when not evicted by capacity.
	TTL time.Duration `koanf:"ttl"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. These are
// applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8460,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
		},
		Database: DatabaseConfig{
			Path:         "", // in-memory
			MaxMemory:    "2GB",
			Threads:      0, // 0 = runtime.NumCPU()
			QueryTimeout: 30 * time.Second,
		},
		Dataset: DatasetConfig{
			GeneratedRows:  1_000_000,
			MaxUploadBytes: 256 << 20, // 256 MiB
		},
		Cache: CacheConfig{
			Capacity: 128,
			TTL:      5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in [1, 65535], got %d", c.Server.Port)
	}
	if c.Dataset.GeneratedRows < 1 {
		return fmt.Errorf("dataset.generated_rows must be positive, got %d", c.Dataset.GeneratedRows)
	}
	if c.Dataset.MaxUploadBytes < 1 {
		return fmt.Errorf("dataset.max_upload_bytes must be positive, got %d", c.Dataset.MaxUploadBytes)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("cache.capacity must be positive, got %d", c.Cache.Capacity)
	}
	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("database.query_timeout must be positive, got %s", c.Database.QueryTimeout)
	}
	return nil
}
