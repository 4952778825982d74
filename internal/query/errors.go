// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package query

import "errors"

var (
	// ErrInvalidFilter indicates a filter or sort referencing an unknown
	// column, or a malformed predicate. The query is never executed.
	ErrInvalidFilter = errors.New("invalid filter")

	// ErrInvalidPage indicates a non-positive page size.
	ErrInvalidPage = errors.New("invalid page request")

	// ErrExecution wraps engine failures during query execution. The
	// result cache is never populated from a failed execution.
	ErrExecution = errors.New("query execution failed")
)
