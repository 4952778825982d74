// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package api provides the HTTP surface: a chi router, handlers for the
// dataset/rows/stats/chart endpoints, and the standardized response
// envelope.
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/models"
	"github.com/tablescope/tablescope/internal/query"
	"github.com/tablescope/tablescope/internal/session"
)

// Error codes returned in the envelope.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeInvalidFilter     = "INVALID_FILTER"
	ErrCodeInvalidPage       = "INVALID_PAGE"
	ErrCodeUnsupportedFormat = "UNSUPPORTED_FORMAT"
	ErrCodeParse             = "PARSE_ERROR"
	ErrCodeQuery             = "QUERY_ERROR"
	ErrCodeService           = "SERVICE_ERROR"
)

// respondJSON writes the success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}, meta models.Metadata) {
	meta.Timestamp = time.Now()

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status:   "success",
		Data:     data,
		Metadata: meta,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// respondError writes the error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	resp := models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON error response")
	}
}

// respondMappedError translates domain sentinels into HTTP status and
// envelope codes. Unrecognized errors become QUERY_ERROR 500 without
// leaking engine internals.
func respondMappedError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, query.ErrInvalidFilter):
		respondError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error(), nil)
	case errors.Is(err, query.ErrInvalidPage):
		respondError(w, http.StatusBadRequest, ErrCodeInvalidPage, err.Error(), nil)
	case errors.Is(err, dataset.ErrUnsupportedFormat):
		respondError(w, http.StatusBadRequest, ErrCodeUnsupportedFormat, err.Error(), nil)
	case errors.Is(err, dataset.ErrParse):
		respondError(w, http.StatusUnprocessableEntity, ErrCodeParse, err.Error(), nil)
	case errors.Is(err, session.ErrNoDataset):
		respondError(w, http.StatusServiceUnavailable, ErrCodeService, "no dataset loaded", nil)
	default:
		logging.Ctx(r.Context()).Error().Err(err).
			Str("path", r.URL.Path).
			Msg("Request failed")
		respondError(w, http.StatusInternalServerError, ErrCodeQuery, "query execution failed", nil)
	}
}
