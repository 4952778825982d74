// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package models

// ColumnSchema describes one column of a dataset: its name and the
// semantic type derived from the engine's column type.
type ColumnSchema struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Semantic column types. DuckDB's concrete types (VARCHAR, BIGINT,
// DOUBLE, ...) are collapsed into these buckets for the frontend.
const (
	ColumnTypeText      = "text"
	ColumnTypeInteger   = "integer"
	ColumnTypeDouble    = "double"
	ColumnTypeBoolean   = "boolean"
	ColumnTypeTimestamp = "timestamp"
)

// PageResult is one page of rows plus the total count of rows matching
// the active filters (independent of pagination). It is immutable once
// produced; cached instances are shared between readers.
type PageResult struct {
	Columns   []ColumnSchema           `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	TotalRows int64                    `json:"total_rows"`
	Page      int                      `json:"page"`
	PageSize  int                      `json:"page_size"`
	LastPage  int                      `json:"last_page"`
}

// DataSourceInfo describes the active dataset for the API surface.
type DataSourceInfo struct {
	ID       string         `json:"id"`
	Origin   string         `json:"origin"`
	Columns  []ColumnSchema `json:"columns"`
	RowCount int64          `json:"row_count"`
	LoadedAt string         `json:"loaded_at"`
}

// ChartData is the full-filtered-set slice handed to the chart renderer.
// Points are column-oriented to keep the payload compact.
type ChartData struct {
	Columns   []string                 `json:"columns"`
	Points    map[string][]interface{} `json:"points"`
	TotalRows int64                    `json:"total_rows"`
	Sampled   bool                     `json:"sampled"`
}

// StatsResult carries KPI aggregates over the filtered dataset.
type StatsResult struct {
	TotalRows int64              `json:"total_rows"`
	Distinct  map[string]int64   `json:"distinct,omitempty"`
	Median    map[string]float64 `json:"median,omitempty"`
	Sum       map[string]float64 `json:"sum,omitempty"`
}
