// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package query translates user-selected filters, sort order, and a
// page request into bounded, parameterized SQL against the active
// dataset, and executes the result into a PageResult.
package query

import "fmt"

// Predicate is one filter condition on a column. Exactly which fields
// are set determines the condition kind:
//
//   - In: value is one of the listed strings (SQL IN)
//   - Min/Max: numeric range, either bound optional
//   - Contains: case-insensitive substring match
//
// Setting multiple kinds on one predicate combines them with AND.
// A predicate with no fields set is malformed.
type Predicate struct {
	In       []string `json:"in,omitempty"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Contains string   `json:"contains,omitempty"`
}

// IsZero reports whether no condition is set.
func (p Predicate) IsZero() bool {
	return len(p.In) == 0 && p.Min == nil && p.Max == nil && p.Contains == ""
}

// FilterSpec maps column names to predicates. Conditions across
// columns combine with AND. An empty spec means no filtering.
type FilterSpec map[string]Predicate

// SortField is one ORDER BY term.
type SortField struct {
	Column string `json:"column"`
	Desc   bool   `json:"desc,omitempty"`
}

// SortSpec is an ordered sequence of sort fields; empty means the
// builder falls back to a stable physical row order.
type SortSpec []SortField

// PageRequest selects one page of the filtered result.
type PageRequest struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// Normalize clamps a negative page index to 0 and rejects non-positive
// page sizes.
func (p PageRequest) Normalize() (PageRequest, error) {
	if p.PageSize <= 0 {
		return p, fmt.Errorf("%w: page size %d", ErrInvalidPage, p.PageSize)
	}
	if p.Page < 0 {
		p.Page = 0
	}
	return p, nil
}
