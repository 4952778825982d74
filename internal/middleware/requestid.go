// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package middleware provides the HTTP middleware stack: request ID
// propagation, prometheus instrumentation, and response compression.
// CORS and rate limiting come from go-chi middleware and are wired in
// the api package.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tablescope/tablescope/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with an ID, honoring one supplied by an
// upstream proxy. The ID lands in the response header and in the
// request context for log correlation.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		w.Header().Set(requestIDHeader, requestID)
		ctx := logging.ContextWithRequestID(r.Context(), requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
