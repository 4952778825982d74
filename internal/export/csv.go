// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package export renders the visible page for download.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/tablescope/tablescope/internal/models"
)

// WriteCSV writes the page as RFC 4180 CSV: one header row in schema
// column order, then the visible rows only.
func WriteCSV(w io.Writer, page *models.PageResult) error {
	cw := csv.NewWriter(w)

	header := make([]string, len(page.Columns))
	for i, col := range page.Columns {
		header[i] = col.Name
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(page.Columns))
	for _, row := range page.Rows {
		for i, col := range page.Columns {
			record[i] = formatField(row[col.Name])
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV: %w", err)
	}
	return nil
}

// formatField renders a single cell. NULL becomes the empty string.
func formatField(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}
