// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// keyPayload is the canonical form hashed into a cache key. Filters are
// flattened into a column-sorted slice so two equal FilterSpecs always
// serialize identically.
type keyPayload struct {
	Dataset  string         `json:"dataset"`
	Filters  []columnFilter `json:"filters"`
	Sort     SortSpec       `json:"sort"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type columnFilter struct {
	Column    string    `json:"column"`
	Predicate Predicate `json:"predicate"`
}

// Key derives the deterministic cache key for one page request against
// one dataset generation. Equal inputs yield equal keys; the dataset ID
// changes on every load, so stale entries can never collide with a
// fresh dataset.
func Key(datasetID uuid.UUID, filters FilterSpec, sortSpec SortSpec, page PageRequest) string {
	flat := make([]columnFilter, 0, len(filters))
	for col, pred := range filters {
		flat = append(flat, columnFilter{Column: col, Predicate: pred})
	}
	sort.Slice(flat, func(i, j int) bool { return flat[i].Column < flat[j].Column })

	if sortSpec == nil {
		sortSpec = SortSpec{}
	}

	payload, err := json.Marshal(keyPayload{
		Dataset:  datasetID.String(),
		Filters:  flat,
		Sort:     sortSpec,
		Page:     page.Page,
		PageSize: page.PageSize,
	})
	if err != nil {
		// Marshal of plain structs cannot fail; fall back to a fmt
		// rendering of the same inputs rather than panic in a request
		// path, so keys still differ per query.
		payload = []byte(fmt.Sprintf("%s|%v|%v|%d|%d",
			datasetID, flat, sortSpec, page.Page, page.PageSize))
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
