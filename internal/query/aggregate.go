// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/models"
)

// DefaultChartPoints caps the chart payload when the caller does not
// ask for a specific bound.
const DefaultChartPoints = 5000

// StatsRequest names the columns to aggregate. Median and Sum columns
// must be numeric.
type StatsRequest struct {
	Distinct []string
	Median   []string
	Sum      []string
}

// StatsQuery is one aggregate statement covering all requested KPIs in
// a single scan. Scan order is: total, distinct..., median..., sum...
type StatsQuery struct {
	SQL  string
	Args []interface{}

	Distinct []string
	Median   []string
	Sum      []string
}

// BuildStats validates the requested aggregate columns against the
// schema and renders one combined statement.
func BuildStats(ds *dataset.DataSource, filters FilterSpec, req StatsRequest) (*StatsQuery, error) {
	whereClause, args, err := buildWhere(ds, filters)
	if err != nil {
		return nil, err
	}

	selects := []string{"COUNT(*)"}

	for _, col := range req.Distinct {
		if _, ok := ds.Column(col); !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidFilter, col)
		}
		selects = append(selects, fmt.Sprintf("COUNT(DISTINCT %s)", quoteIdent(col)))
	}
	for _, col := range req.Median {
		if err := requireNumeric(ds, col); err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("MEDIAN(%s)", quoteIdent(col)))
	}
	for _, col := range req.Sum {
		if err := requireNumeric(ds, col); err != nil {
			return nil, err
		}
		selects = append(selects, fmt.Sprintf("SUM(%s)", quoteIdent(col)))
	}

	return &StatsQuery{
		SQL: fmt.Sprintf("SELECT %s FROM %s WHERE %s",
			strings.Join(selects, ", "), quoteIdent(ds.Table), whereClause),
		Args:     args,
		Distinct: req.Distinct,
		Median:   req.Median,
		Sum:      req.Sum,
	}, nil
}

func requireNumeric(ds *dataset.DataSource, col string) error {
	schema, ok := ds.Column(col)
	if !ok {
		return fmt.Errorf("%w: unknown column %q", ErrInvalidFilter, col)
	}
	if schema.Type != models.ColumnTypeInteger && schema.Type != models.ColumnTypeDouble {
		return fmt.Errorf("%w: column %q is not numeric", ErrInvalidFilter, col)
	}
	return nil
}

// ExecuteStats runs the aggregate statement and unpacks the KPIs.
// NULL aggregates (empty filtered set) are omitted from the result maps.
func (e *Executor) ExecuteStats(ctx context.Context, q *StatsQuery) (*models.StatsResult, error) {
	var total int64
	distinct := make([]sql.NullInt64, len(q.Distinct))
	median := make([]sql.NullFloat64, len(q.Median))
	sum := make([]sql.NullFloat64, len(q.Sum))

	dest := make([]interface{}, 0, 1+len(distinct)+len(median)+len(sum))
	dest = append(dest, &total)
	for i := range distinct {
		dest = append(dest, &distinct[i])
	}
	for i := range median {
		dest = append(dest, &median[i])
	}
	for i := range sum {
		dest = append(dest, &sum[i])
	}

	if err := e.db.QueryRowScan(ctx, "stats", q.SQL, q.Args, dest...); err != nil {
		return nil, fmt.Errorf("%w: stats: %v", ErrExecution, err)
	}

	result := &models.StatsResult{TotalRows: total}
	if len(q.Distinct) > 0 {
		result.Distinct = make(map[string]int64, len(q.Distinct))
		for i, col := range q.Distinct {
			if distinct[i].Valid {
				result.Distinct[col] = distinct[i].Int64
			}
		}
	}
	if len(q.Median) > 0 {
		result.Median = make(map[string]float64, len(q.Median))
		for i, col := range q.Median {
			if median[i].Valid {
				result.Median[col] = median[i].Float64
			}
		}
	}
	if len(q.Sum) > 0 {
		result.Sum = make(map[string]float64, len(q.Sum))
		for i, col := range q.Sum {
			if sum[i].Valid {
				result.Sum[col] = sum[i].Float64
			}
		}
	}
	return result, nil
}

// ChartQuery selects a bounded slice of the filtered set for plotting.
type ChartQuery struct {
	SQL  string
	Args []interface{}

	CountSQL  string
	CountArgs []interface{}

	Columns   []string
	MaxPoints int
}

// BuildChart renders a reservoir-sampled projection of the requested
// columns over the filtered set. Sampling happens after filtering, so
// the cap bounds the payload, not the scan.
func BuildChart(ds *dataset.DataSource, filters FilterSpec, columns []string, maxPoints int) (*ChartQuery, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: chart requires at least one column", ErrInvalidFilter)
	}
	if maxPoints <= 0 {
		maxPoints = DefaultChartPoints
	}

	// Duplicate columns (x and color naming the same field, say) would
	// double up in the projection while points is keyed by name.
	columns = dedupeColumns(columns)

	idents := make([]string, len(columns))
	for i, col := range columns {
		if _, ok := ds.Column(col); !ok {
			return nil, fmt.Errorf("%w: unknown column %q", ErrInvalidFilter, col)
		}
		idents[i] = quoteIdent(col)
	}

	whereClause, args, err := buildWhere(ds, filters)
	if err != nil {
		return nil, err
	}

	projection := strings.Join(idents, ", ")
	table := quoteIdent(ds.Table)

	// The sample size cannot be bound as a parameter; it is a validated
	// integer, never user text.
	chartSQL := fmt.Sprintf(
		"SELECT %s FROM (SELECT %s FROM %s WHERE %s) USING SAMPLE %d ROWS (reservoir)",
		projection, projection, table, whereClause, maxPoints)

	return &ChartQuery{
		SQL:       chartSQL,
		Args:      args,
		CountSQL:  fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, whereClause),
		CountArgs: args,
		Columns:   columns,
		MaxPoints: maxPoints,
	}, nil
}

// dedupeColumns drops repeated column names, keeping first positions.
func dedupeColumns(columns []string) []string {
	seen := make(map[string]struct{}, len(columns))
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		out = append(out, col)
	}
	return out
}

// ExecuteChart runs the chart statement and assembles a column-oriented
// payload. Sampled reports whether the filtered set exceeded the cap.
func (e *Executor) ExecuteChart(ctx context.Context, q *ChartQuery) (*models.ChartData, error) {
	var total int64
	if err := e.db.QueryRowScan(ctx, "chart_count", q.CountSQL, q.CountArgs, &total); err != nil {
		return nil, fmt.Errorf("%w: chart count: %v", ErrExecution, err)
	}

	points := make(map[string][]interface{}, len(q.Columns))
	for _, col := range q.Columns {
		points[col] = []interface{}{}
	}

	err := e.db.QueryScan(ctx, "chart_fetch", q.SQL, q.Args, func(rows *sql.Rows) error {
		values := make([]interface{}, len(q.Columns))
		pointers := make([]interface{}, len(q.Columns))
		for i := range values {
			pointers[i] = &values[i]
		}

		for rows.Next() {
			if err := rows.Scan(pointers...); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			for i, col := range q.Columns {
				points[col] = append(points[col], normalizeValue(values[i]))
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExecution, err)
	}

	return &models.ChartData{
		Columns:   q.Columns,
		Points:    points,
		TotalRows: total,
		Sampled:   total > int64(q.MaxPoints),
	}, nil
}
