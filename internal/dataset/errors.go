// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package dataset

import "errors"

var (
	// ErrUnsupportedFormat indicates a declared upload format that is
	// neither CSV nor Parquet.
	ErrUnsupportedFormat = errors.New("unsupported dataset format")

	// ErrParse indicates the uploaded bytes do not parse under the
	// declared format. The prior dataset remains active.
	ErrParse = errors.New("failed to parse uploaded dataset")
)
