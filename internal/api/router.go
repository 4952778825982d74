// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/middleware"
)

// NewRouter assembles the HTTP surface.
//
// Global middleware handles correlation IDs, panic recovery, and CORS
// preflight. The API subtree adds per-IP rate limiting, prometheus
// instrumentation, and gzip.
func NewRouter(handler *Handler, cfg *config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(cfg))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rateLimiter(cfg))
		r.Use(middleware.PrometheusMetrics)
		r.Use(middleware.Compression)

		r.Get("/health", handler.Health)

		r.Route("/dataset", func(r chi.Router) {
			r.Get("/", handler.DatasetInfo)
			r.Post("/generate", handler.DatasetGenerate)
			r.Post("/upload", handler.DatasetUpload)
		})

		r.Route("/rows", func(r chi.Router) {
			r.Get("/", handler.Rows)
			r.Get("/export", handler.RowsExport)
		})

		r.Get("/stats", handler.Stats)
		r.Get("/chart", handler.Chart)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// corsHandler builds the CORS middleware. Origins default to empty,
// which denies cross-origin browser access until configured.
func corsHandler(cfg *config.ServerConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         86400,
	})
}

// rateLimiter builds the per-IP rate limiting middleware, or a no-op
// when disabled for local development.
func rateLimiter(cfg *config.ServerConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitDisabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
