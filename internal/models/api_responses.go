// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package models defines the wire types shared between the query layer
// and the HTTP API.
package models

import "time"

// APIResponse is the standardized envelope used by all HTTP endpoints.
//
// Status is "success" or "error". Data carries the payload on success;
// Error is populated only on failure. Metadata is always present and
// carries timing and cache information for observability.
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata contains response metadata for observability.
// QueryTimeMS is the query execution time; Cached indicates the page
// was served from the result cache (QueryTimeMS is 0 in that case).
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
	Cached      bool      `json:"cached,omitempty"`
}

// APIError carries a machine-readable code plus a human-readable message.
//
// Codes used by this service:
//   - VALIDATION_ERROR: malformed request parameters
//   - INVALID_FILTER: filter or sort references an unknown column
//   - INVALID_PAGE: non-positive page size
//   - UNSUPPORTED_FORMAT: upload format is neither csv nor parquet
//   - PARSE_ERROR: uploaded bytes do not parse under the declared format
//   - QUERY_ERROR: engine failure while executing a query
//   - SERVICE_ERROR: dependency unavailable
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
