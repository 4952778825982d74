// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package metrics provides Prometheus instrumentation for query
// execution, the result cache, dataset loads, and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query metrics
	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablescope_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "page", "count", "chart", "stats", "load"
	)

	QueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescope_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation"},
	)

	// Result cache metrics
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescope_result_cache_hits_total",
			Help: "Total number of result cache hits",
		},
	)

	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescope_result_cache_misses_total",
			Help: "Total number of result cache misses",
		},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablescope_result_cache_entries",
			Help: "Current number of cached query results",
		},
	)

	CacheInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescope_result_cache_invalidations_total",
			Help: "Total number of full cache invalidations",
		},
	)

	// Dataset metrics
	DatasetRows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablescope_dataset_rows",
			Help: "Row count of the active dataset",
		},
	)

	DatasetLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescope_dataset_loads_total",
			Help: "Total number of dataset loads by origin",
		},
		[]string{"origin", "outcome"}, // origin: generated|csv|parquet, outcome: ok|error
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescope_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablescope_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tablescope_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)
)

// RecordQuery records a query's duration and outcome under one operation label.
func RecordQuery(operation string, duration time.Duration, err error) {
	QueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		QueryErrors.WithLabelValues(operation).Inc()
	}
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
