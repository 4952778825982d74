// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package database wraps the embedded DuckDB engine behind a small
// connection handle. All SQL execution in Tablescope flows through
// this package so that timeouts and metrics are applied uniformly.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/metrics"
)

// DB wraps the DuckDB connection pool.
//
// With an empty cfg.Path the database lives in memory; duckdb-go opens
// one database instance per sql.DB, so pooled connections all see the
// same in-memory catalog.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens a DuckDB database and configures the connection pool.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != "" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := fmt.Sprintf("%s?threads=%d&max_memory=%s", cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn, cfg: cfg}, nil
}

// ensureContext applies the configured query timeout when the caller's
// context carries no deadline of its own.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	timeout := db.cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// QueryScan executes a query that returns rows and hands them to scan
// while the query context is still alive. The rows handle is closed
// before QueryScan returns; rows.Err is checked after scan, so scan
// only needs to iterate.
func (db *DB) QueryScan(ctx context.Context, operation, query string, args []interface{}, scan func(*sql.Rows) error) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.RecordQuery(operation, time.Since(start), err)
		return err
	}
	defer func() { _ = rows.Close() }()

	err = scan(rows)
	if err == nil {
		err = rows.Err()
	}
	metrics.RecordQuery(operation, time.Since(start), err)
	return err
}

// QueryRowScan executes a query expected to return exactly one row and
// scans it into dest. The timeout context spans the scan; handing a
// *sql.Row past the cancel would let the pool's watchdog close the
// rows before the caller reads them.
func (db *DB) QueryRowScan(ctx context.Context, operation, query string, args []interface{}, dest ...interface{}) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	err := db.conn.QueryRowContext(ctx, query, args...).Scan(dest...)
	metrics.RecordQuery(operation, time.Since(start), err)
	return err
}

// ExecContext executes a statement that returns no rows.
func (db *DB) ExecContext(ctx context.Context, operation, query string, args ...interface{}) (sql.Result, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	res, err := db.conn.ExecContext(ctx, query, args...)
	metrics.RecordQuery(operation, time.Since(start), err)
	return res, err
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}
