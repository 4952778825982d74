// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/models"
)

// Query is the bounded, parameterized form of one page request: the
// page statement plus the pagination-independent count statement.
// Build is a pure translation; nothing is executed here.
type Query struct {
	PageSQL  string
	PageArgs []interface{}

	CountSQL  string
	CountArgs []interface{}

	Page     int
	PageSize int
	Columns  []models.ColumnSchema
}

// Build validates filters and sort against the dataset schema and
// constructs the page and count statements.
//
// The page statement requests exactly pageSize rows at offset
// page*pageSize. When no sort is given, rows are ordered by the
// table's physical rowid so identical requests return identical pages.
func Build(ds *dataset.DataSource, filters FilterSpec, sortSpec SortSpec, page PageRequest) (*Query, error) {
	page, err := page.Normalize()
	if err != nil {
		return nil, err
	}

	whereClause, args, err := buildWhere(ds, filters)
	if err != nil {
		return nil, err
	}

	orderClause, err := buildOrder(ds, sortSpec)
	if err != nil {
		return nil, err
	}

	table := quoteIdent(ds.Table)

	pageSQL := fmt.Sprintf("SELECT * FROM %s WHERE %s ORDER BY %s LIMIT ? OFFSET ?",
		table, whereClause, orderClause)
	pageArgs := append(append([]interface{}{}, args...),
		page.PageSize, int64(page.Page)*int64(page.PageSize))

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", table, whereClause)

	return &Query{
		PageSQL:   pageSQL,
		PageArgs:  pageArgs,
		CountSQL:  countSQL,
		CountArgs: args,
		Page:      page.Page,
		PageSize:  page.PageSize,
		Columns:   ds.Schema,
	}, nil
}

// buildWhere renders the filter spec as a WHERE clause with bound
// arguments. Columns are processed in sorted order so equal specs
// produce identical SQL regardless of map iteration order.
func buildWhere(ds *dataset.DataSource, filters FilterSpec) (string, []interface{}, error) {
	if len(filters) == 0 {
		return "1=1", nil, nil
	}

	columns := make([]string, 0, len(filters))
	for col := range filters {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	clauses := []string{}
	args := []interface{}{}

	for _, col := range columns {
		if _, ok := ds.Column(col); !ok {
			return "", nil, fmt.Errorf("%w: unknown column %q", ErrInvalidFilter, col)
		}

		pred := filters[col]
		if pred.IsZero() {
			return "", nil, fmt.Errorf("%w: empty predicate for column %q", ErrInvalidFilter, col)
		}

		ident := quoteIdent(col)

		if len(pred.In) > 0 {
			placeholders := make([]string, len(pred.In))
			for i, v := range pred.In {
				placeholders[i] = "?"
				args = append(args, v)
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", ident, strings.Join(placeholders, ", ")))
		}

		if pred.Min != nil {
			clauses = append(clauses, fmt.Sprintf("%s >= ?", ident))
			args = append(args, *pred.Min)
		}
		if pred.Max != nil {
			clauses = append(clauses, fmt.Sprintf("%s <= ?", ident))
			args = append(args, *pred.Max)
		}

		if pred.Contains != "" {
			clauses = append(clauses, fmt.Sprintf("CAST(%s AS VARCHAR) ILIKE ? ESCAPE '\\'", ident))
			args = append(args, "%"+escapeLike(pred.Contains)+"%")
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

// buildOrder renders the sort spec, falling back to rowid for a stable
// page order when no sort is requested.
func buildOrder(ds *dataset.DataSource, sortSpec SortSpec) (string, error) {
	if len(sortSpec) == 0 {
		return "rowid", nil
	}

	terms := make([]string, len(sortSpec))
	for i, field := range sortSpec {
		if _, ok := ds.Column(field.Column); !ok {
			return "", fmt.Errorf("%w: unknown sort column %q", ErrInvalidFilter, field.Column)
		}
		direction := "ASC"
		if field.Desc {
			direction = "DESC"
		}
		terms[i] = fmt.Sprintf("%s %s", quoteIdent(field.Column), direction)
	}

	// rowid tiebreak keeps pagination deterministic under duplicate keys.
	return strings.Join(terms, ", ") + ", rowid", nil
}

// escapeLike escapes LIKE wildcards so Contains matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// quoteIdent quotes a SQL identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
