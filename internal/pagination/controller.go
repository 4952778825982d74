// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package pagination implements the page navigation state machine.
//
// Controller has value semantics: every transition returns a new
// Controller, which keeps transitions pure and trivially testable.
package pagination

import "math"

// DefaultPageSize is used when a session starts without an explicit size.
const DefaultPageSize = 50

// Controller tracks the current page against the total filtered row
// count. All transitions clamp the page index to [0, LastPage].
type Controller struct {
	Page      int
	PageSize  int
	TotalRows int64
}

// New creates a Controller at page 0. Non-positive page sizes fall back
// to DefaultPageSize; page size validity is enforced upstream by the
// query builder.
func New(pageSize int) Controller {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return Controller{Page: 0, PageSize: pageSize}
}

// LastPageFor computes the index of the last page for a row count and
// page size. Zero rows still yield a single (empty) page 0.
func LastPageFor(totalRows int64, pageSize int) int {
	if pageSize <= 0 || totalRows <= 0 {
		return 0
	}
	last := int(math.Ceil(float64(totalRows)/float64(pageSize))) - 1
	if last < 0 {
		return 0
	}
	return last
}

// LastPage returns the index of the last page under the current totals.
func (c Controller) LastPage() int {
	return LastPageFor(c.TotalRows, c.PageSize)
}

// Next advances one page; no-op when already at the last page.
func (c Controller) Next() Controller {
	if c.Page < c.LastPage() {
		c.Page++
	}
	return c
}

// Prev goes back one page; no-op at page 0.
func (c Controller) Prev() Controller {
	if c.Page > 0 {
		c.Page--
	}
	return c
}

// Jump moves to page n, clamped to [0, LastPage].
func (c Controller) Jump(n int) Controller {
	if n < 0 {
		n = 0
	}
	if last := c.LastPage(); n > last {
		n = last
	}
	c.Page = n
	return c
}

// WithTotalRows refreshes the total row count and re-clamps the page,
// for when a filter change shrinks the filtered set.
func (c Controller) WithTotalRows(total int64) Controller {
	if total < 0 {
		total = 0
	}
	c.TotalRows = total
	return c.Jump(c.Page)
}

// WithPageSize changes the page size and resets to page 0.
func (c Controller) WithPageSize(size int) Controller {
	if size <= 0 {
		size = DefaultPageSize
	}
	c.PageSize = size
	c.Page = 0
	return c
}

// Offset returns the row offset of the current page.
func (c Controller) Offset() int64 {
	return int64(c.Page) * int64(c.PageSize)
}
