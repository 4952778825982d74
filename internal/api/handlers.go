// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package api

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/database"
	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/export"
	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/models"
	"github.com/tablescope/tablescope/internal/pagination"
	"github.com/tablescope/tablescope/internal/query"
	"github.com/tablescope/tablescope/internal/session"
	"github.com/tablescope/tablescope/internal/validation"
)

// Handler holds the dependencies of the HTTP endpoints.
type Handler struct {
	sess *session.Session
	db   *database.DB
	cfg  *config.Config
}

// NewHandler creates a Handler.
func NewHandler(sess *session.Session, db *database.DB, cfg *config.Config) *Handler {
	return &Handler{sess: sess, db: db, cfg: cfg}
}

// Health reports liveness: engine reachable and a dataset loaded.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
	}

	if err := h.db.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeService, "database unreachable", nil)
		return
	}

	if ds, err := h.sess.Dataset(); err == nil {
		status["dataset_loaded"] = true
		status["dataset_rows"] = ds.RowCount
	} else {
		status["dataset_loaded"] = false
	}

	respondJSON(w, http.StatusOK, status, models.Metadata{})
}

// DatasetInfo returns the active dataset's schema, origin, and size.
func (h *Handler) DatasetInfo(w http.ResponseWriter, r *http.Request) {
	ds, err := h.sess.Dataset()
	if err != nil {
		respondMappedError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ds.Info(), models.Metadata{})
}

type generateRequest struct {
	Rows int `json:"rows" validate:"omitempty,gte=1,lte=100000000"`
}

// DatasetGenerate rebuilds the synthetic demo dataset.
func (h *Handler) DatasetGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeValidation, "malformed JSON body", nil)
			return
		}
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, verr.Error(), verr.Details())
		return
	}

	rows := req.Rows
	if rows == 0 {
		rows = h.cfg.Dataset.GeneratedRows
	}

	start := time.Now()
	ds, err := h.sess.RegenerateDataset(r.Context(), rows)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ds.Info(), models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}

// DatasetUpload replaces the dataset from a multipart file upload.
// Expects a "file" part and a "format" field of csv or parquet.
func (h *Handler) DatasetUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := h.cfg.Dataset.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		respondError(w, http.StatusRequestEntityTooLarge, ErrCodeValidation,
			fmt.Sprintf("upload exceeds %d bytes or is not valid multipart", maxBytes), nil)
		return
	}

	format, err := dataset.ParseFormat(r.FormValue("format"))
	if err != nil {
		respondMappedError(w, r, err)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "missing file part", nil)
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "failed to read upload", nil)
		return
	}

	logging.Ctx(r.Context()).Info().
		Str("filename", header.Filename).
		Str("format", string(format)).
		Int("bytes", len(data)).
		Msg("Dataset upload received")

	start := time.Now()
	ds, err := h.sess.UploadDataset(r.Context(), data, format)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, ds.Info(), models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}

type rowsParams struct {
	Page     int `validate:"gte=0"`
	PageSize int `validate:"gte=1,lte=1000"`
}

// Rows serves one filtered, sorted page of the dataset.
func (h *Handler) Rows(w http.ResponseWriter, r *http.Request) {
	result, cached, elapsed, ok := h.fetchPage(w, r)
	if !ok {
		return
	}

	meta := models.Metadata{Cached: cached}
	if !cached {
		meta.QueryTimeMS = elapsed.Milliseconds()
	}
	respondJSON(w, http.StatusOK, result, meta)
}

// RowsExport streams the visible page as CSV.
func (h *Handler) RowsExport(w http.ResponseWriter, r *http.Request) {
	result, _, _, ok := h.fetchPage(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="tablescope-page-%d.csv"`, result.Page))

	if err := export.WriteCSV(w, result); err != nil {
		// Headers are gone; log rather than emit a broken envelope.
		logging.Ctx(r.Context()).Error().Err(err).Msg("CSV export failed mid-stream")
	}
}

// fetchPage parses the shared rows/export parameters and runs the query
// through the session. On failure it writes the error response and
// reports ok=false.
func (h *Handler) fetchPage(w http.ResponseWriter, r *http.Request) (*models.PageResult, bool, time.Duration, bool) {
	values := r.URL.Query()

	page, err := intParam(values, "page", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return nil, false, 0, false
	}
	pageSize, err := intParam(values, "page_size", pagination.DefaultPageSize)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return nil, false, 0, false
	}
	if verr := validation.ValidateStruct(&rowsParams{Page: page, PageSize: pageSize}); verr != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, verr.Error(), verr.Details())
		return nil, false, 0, false
	}

	filters, err := parseFilters(values)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error(), nil)
		return nil, false, 0, false
	}
	sortSpec, err := parseSort(values)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return nil, false, 0, false
	}

	start := time.Now()
	result, cached, err := h.sess.ApplyQuery(r.Context(), filters, sortSpec,
		query.PageRequest{Page: page, PageSize: pageSize})
	if err != nil {
		respondMappedError(w, r, err)
		return nil, false, 0, false
	}
	return result, cached, time.Since(start), true
}

// Stats serves KPI aggregates over the filtered set. Aggregate columns
// come from comma-separated distinct/median/sum parameters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	filters, err := parseFilters(values)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error(), nil)
		return
	}

	req := query.StatsRequest{
		Distinct: listParam(values, "distinct"),
		Median:   listParam(values, "median"),
		Sum:      listParam(values, "sum"),
	}

	start := time.Now()
	result, err := h.sess.Stats(r.Context(), filters, req)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result, models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}

type chartParams struct {
	MaxPoints int `validate:"gte=0,lte=100000"`
}

// Chart serves a bounded column-oriented slice for plotting. Required
// x and y parameters name the axes; color and size are optional extra
// dimensions.
func (h *Handler) Chart(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	columns := make([]string, 0, 4)
	for _, name := range []string{"x", "y", "color", "size"} {
		if col := values.Get(name); col != "" {
			columns = append(columns, col)
		}
	}
	if len(columns) < 2 || values.Get("x") == "" || values.Get("y") == "" {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, "x and y parameters are required", nil)
		return
	}

	maxPoints, err := intParam(values, "max_points", 0)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, err.Error(), nil)
		return
	}
	if verr := validation.ValidateStruct(&chartParams{MaxPoints: maxPoints}); verr != nil {
		respondError(w, http.StatusBadRequest, ErrCodeValidation, verr.Error(), verr.Details())
		return
	}

	filters, err := parseFilters(values)
	if err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidFilter, err.Error(), nil)
		return
	}

	start := time.Now()
	data, err := h.sess.Chart(r.Context(), filters, columns, maxPoints)
	if err != nil {
		respondMappedError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, data, models.Metadata{
		QueryTimeMS: time.Since(start).Milliseconds(),
	})
}
