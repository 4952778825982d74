// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package dataset

import (
	"context"
	"fmt"
	"os"

	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/metrics"
)

// LoadUpload ingests uploaded file bytes under the declared format and
// makes the result the active DataSource.
//
// The bytes are staged to a temporary file so DuckDB's own readers do
// the parsing; any reader failure is reported as ErrParse and the
// prior DataSource stays active. The swap happens only after the new
// table is fully built and its schema snapshot taken.
func (s *Store) LoadUpload(ctx context.Context, data []byte, format Format) (*DataSource, error) {
	var origin Origin
	var readerFn string
	switch format {
	case FormatCSV:
		origin, readerFn = OriginCSV, "read_csv_auto"
	case FormatParquet:
		origin, readerFn = OriginParquet, "read_parquet"
	default:
		metrics.DatasetLoads.WithLabelValues(string(format), "error").Inc()
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	ds, err := s.loadStaged(ctx, data, origin, readerFn)
	if err != nil {
		metrics.DatasetLoads.WithLabelValues(string(origin), "error").Inc()
		return nil, err
	}
	metrics.DatasetLoads.WithLabelValues(string(origin), "ok").Inc()

	logging.Info().
		Str("origin", string(origin)).
		Str("table", ds.Table).
		Int64("rows", ds.RowCount).
		Int("columns", len(ds.Schema)).
		Msg("Dataset uploaded")

	return ds, nil
}

func (s *Store) loadStaged(ctx context.Context, data []byte, origin Origin, readerFn string) (*DataSource, error) {
	tmp, err := os.CreateTemp("", "tablescope-upload-*."+string(origin))
	if err != nil {
		return nil, fmt.Errorf("failed to stage upload: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err := os.Remove(tmpPath); err != nil {
			logging.Warn().Err(err).Str("path", tmpPath).Msg("Failed to remove staged upload")
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("failed to write staged upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("failed to close staged upload: %w", err)
	}

	table := s.nextTable()
	ingest := fmt.Sprintf("CREATE TABLE %s AS SELECT * FROM %s(?)", quoteIdent(table), readerFn)
	if _, err := s.db.ExecContext(ctx, "load", ingest, tmpPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	ds, err := s.snapshot(ctx, table, origin)
	if err != nil {
		if _, dropErr := s.db.ExecContext(ctx, "load", "DROP TABLE IF EXISTS "+quoteIdent(table)); dropErr != nil {
			logging.Warn().Err(dropErr).Str("table", table).Msg("Failed to drop partially loaded table")
		}
		return nil, err
	}

	s.swap(ctx, ds)
	return ds, nil
}
