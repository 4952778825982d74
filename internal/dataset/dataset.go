// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package dataset implements the data source adapter: it loads either
// the bundled synthetic dataset or an uploaded CSV/Parquet file into a
// DuckDB table and exposes an immutable handle with a schema snapshot.
//
// The Store holds the single active DataSource. Loads build the new
// table completely before swapping the handle, so a failed upload
// leaves the prior dataset untouched and queryable.
package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tablescope/tablescope/internal/database"
	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/metrics"
	"github.com/tablescope/tablescope/internal/models"
)

// Origin identifies where a dataset came from.
type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginCSV       Origin = "csv"
	OriginParquet   Origin = "parquet"
)

// Format is a declared upload format.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat maps a declared format string to a Format.
// "columnar-binary" is accepted as an alias for parquet.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "parquet", "columnar-binary":
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// DataSource is an immutable handle to a loaded table. It is replaced
// wholesale on new upload or regeneration; the ID changes on every
// load, which is what invalidates cached query results.
type DataSource struct {
	ID       uuid.UUID
	Origin   Origin
	Table    string
	Schema   []models.ColumnSchema
	RowCount int64
	LoadedAt time.Time
}

// Column returns the schema entry for name, or false if absent.
func (ds *DataSource) Column(name string) (models.ColumnSchema, bool) {
	for _, col := range ds.Schema {
		if col.Name == name {
			return col, true
		}
	}
	return models.ColumnSchema{}, false
}

// Info converts the handle to its API representation.
func (ds *DataSource) Info() models.DataSourceInfo {
	return models.DataSourceInfo{
		ID:       ds.ID.String(),
		Origin:   string(ds.Origin),
		Columns:  ds.Schema,
		RowCount: ds.RowCount,
		LoadedAt: ds.LoadedAt.UTC().Format(time.RFC3339),
	}
}

// Store owns the single active DataSource. It is single-writer: loads
// are serialized by the mutex, reads take a snapshot of the handle.
type Store struct {
	db *database.DB

	mu      sync.RWMutex
	current *DataSource

	seq atomic.Uint64
}

// NewStore creates a Store bound to the given database.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Current returns the active DataSource, or nil before the first load.
func (s *Store) Current() *DataSource {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// nextTable reserves a fresh table name. A monotonic suffix keeps old
// tables distinct until they are dropped after the swap.
func (s *Store) nextTable() string {
	return fmt.Sprintf("ts_dataset_%06d", s.seq.Add(1))
}

// swap installs the new DataSource and drops the superseded table.
func (s *Store) swap(ctx context.Context, ds *DataSource) {
	s.mu.Lock()
	old := s.current
	s.current = ds
	s.mu.Unlock()

	metrics.DatasetRows.Set(float64(ds.RowCount))

	if old != nil {
		if _, err := s.db.ExecContext(ctx, "load", "DROP TABLE IF EXISTS "+quoteIdent(old.Table)); err != nil {
			logging.Warn().Err(err).Str("table", old.Table).Msg("Failed to drop superseded dataset table")
		}
	}
}

// snapshot reads the schema and row count of a freshly created table.
func (s *Store) snapshot(ctx context.Context, table string, origin Origin) (*DataSource, error) {
	var schema []models.ColumnSchema
	err := s.db.QueryScan(ctx, "load",
		`SELECT column_name, data_type
		 FROM information_schema.columns
		 WHERE table_name = ?
		 ORDER BY ordinal_position`,
		[]interface{}{table},
		func(rows *sql.Rows) error {
			for rows.Next() {
				var name, dataType string
				if err := rows.Scan(&name, &dataType); err != nil {
					return err
				}
				schema = append(schema, models.ColumnSchema{Name: name, Type: semanticType(dataType)})
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to read schema for %s: %w", table, err)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("table %s has no columns", table)
	}

	var rowCount int64
	if err := s.db.QueryRowScan(ctx, "count",
		"SELECT COUNT(*) FROM "+quoteIdent(table), nil, &rowCount); err != nil {
		return nil, fmt.Errorf("failed to count rows in %s: %w", table, err)
	}

	return &DataSource{
		ID:       uuid.New(),
		Origin:   origin,
		Table:    table,
		Schema:   schema,
		RowCount: rowCount,
		LoadedAt: time.Now(),
	}, nil
}

// semanticType collapses a DuckDB column type into the semantic kinds
// the frontend understands.
func semanticType(duckType string) string {
	t := strings.ToUpper(duckType)
	switch {
	case strings.Contains(t, "INT") || strings.Contains(t, "HUGEINT"):
		return models.ColumnTypeInteger
	case strings.Contains(t, "DOUBLE") || strings.Contains(t, "FLOAT") ||
		strings.Contains(t, "REAL") || strings.Contains(t, "DECIMAL"):
		return models.ColumnTypeDouble
	case strings.Contains(t, "BOOL"):
		return models.ColumnTypeBoolean
	case strings.Contains(t, "TIMESTAMP") || strings.Contains(t, "DATE") || strings.Contains(t, "TIME"):
		return models.ColumnTypeTimestamp
	default:
		return models.ColumnTypeText
	}
}

// quoteIdent quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
