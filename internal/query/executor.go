// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tablescope/tablescope/internal/database"
	"github.com/tablescope/tablescope/internal/models"
	"github.com/tablescope/tablescope/internal/pagination"
)

// Executor runs built queries against the engine and materializes
// pages. It holds no state beyond the connection handle.
type Executor struct {
	db *database.DB
}

// NewExecutor creates an Executor bound to the given database.
func NewExecutor(db *database.DB) *Executor {
	return &Executor{db: db}
}

// Execute runs the count and page statements of q and assembles a
// PageResult. The count runs first so LastPage reflects the same
// filtered set as the page rows.
func (e *Executor) Execute(ctx context.Context, q *Query) (*models.PageResult, error) {
	total, err := e.executeCount(ctx, q)
	if err != nil {
		return nil, err
	}

	rows, err := e.executePage(ctx, q)
	if err != nil {
		return nil, err
	}

	return &models.PageResult{
		Columns:   q.Columns,
		Rows:      rows,
		TotalRows: total,
		Page:      q.Page,
		PageSize:  q.PageSize,
		LastPage:  pagination.LastPageFor(total, q.PageSize),
	}, nil
}

// Count runs only the count statement, for callers that need the
// filtered total without materializing a page.
func (e *Executor) Count(ctx context.Context, q *Query) (int64, error) {
	return e.executeCount(ctx, q)
}

func (e *Executor) executeCount(ctx context.Context, q *Query) (int64, error) {
	var total int64
	if err := e.db.QueryRowScan(ctx, "page_count", q.CountSQL, q.CountArgs, &total); err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrExecution, err)
	}
	return total, nil
}

func (e *Executor) executePage(ctx context.Context, q *Query) ([]map[string]interface{}, error) {
	out := make([]map[string]interface{}, 0, q.PageSize)

	err := e.db.QueryScan(ctx, "page_fetch", q.PageSQL, q.PageArgs, func(rows *sql.Rows) error {
		columns, err := rows.Columns()
		if err != nil {
			return fmt.Errorf("columns: %w", err)
		}

		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		for rows.Next() {
			if err := rows.Scan(pointers...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			record := make(map[string]interface{}, len(columns))
			for i, name := range columns {
				record[name] = normalizeValue(values[i])
			}
			out = append(out, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	return out, nil
}

// normalizeValue converts driver-specific values into JSON-friendly
// forms. Byte slices become strings; timestamps become RFC 3339.
func normalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	default:
		return v
	}
}
