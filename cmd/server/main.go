// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package main is the entry point for the Tablescope server.
//
// Tablescope is a self-hosted explorer for tabular datasets: it serves
// filtered, sorted, paginated views over an embedded DuckDB engine,
// with KPI aggregates, bounded chart slices, CSV export, and CSV or
// Parquet upload.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, optional config.yaml, environment (Koanf v2)
//  2. Database: embedded DuckDB, in-memory by default
//  3. Dataset store: synthetic demo dataset generated inside the engine
//  4. Result cache: LRU with TTL and single-flight query deduplication
//  5. HTTP server: chi router under /api/v1 plus /metrics
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM, waiting up
// to 10 seconds for in-flight requests before closing the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tablescope/tablescope/internal/api"
	"github.com/tablescope/tablescope/internal/cache"
	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/database"
	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/query"
	"github.com/tablescope/tablescope/internal/session"
)

func main() {
	// Load configuration first to get logging settings
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_path", cfg.Database.Path).
		Int("generated_rows", cfg.Dataset.GeneratedRows).
		Int("cache_capacity", cfg.Cache.Capacity).
		Msg("Configuration loaded")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized successfully")

	store := dataset.NewStore(db)
	exec := query.NewExecutor(db)
	results := cache.NewResultCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	sess := session.New(store, exec, results)

	// Seed the demo dataset so the dashboard is usable immediately.
	// Uploads replace it at runtime.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	if _, err := sess.RegenerateDataset(startupCtx, cfg.Dataset.GeneratedRows); err != nil {
		startupCancel()
		logging.Fatal().Err(err).Msg("Failed to generate startup dataset")
	}
	startupCancel()

	handler := api.NewHandler(sess, db, cfg)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, &cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("HTTP server shutdown error")
	}

	logging.Info().Msg("Application stopped gracefully")
}
