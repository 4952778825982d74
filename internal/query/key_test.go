// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package query

import (
	"testing"

	"github.com/google/uuid"
)

func TestKey_DeterministicAcrossMapOrder(t *testing.T) {
	id := uuid.New()
	filters := FilterSpec{
		"continent": {In: []string{"Asia", "Europe"}},
		"year":      {Min: floatPtr(1960), Max: floatPtr(2000)},
		"country":   {Contains: "stan"},
	}
	page := PageRequest{Page: 2, PageSize: 25}

	first := Key(id, filters, nil, page)
	if len(first) != 64 {
		t.Fatalf("expected 64-char hex key, got %d chars", len(first))
	}
	for i := 0; i < 50; i++ {
		if got := Key(id, filters, nil, page); got != first {
			t.Fatalf("key not deterministic: %s vs %s", first, got)
		}
	}
}

func TestKey_DiffersByComponent(t *testing.T) {
	id := uuid.New()
	base := func() string {
		return Key(id, FilterSpec{"year": {Min: floatPtr(1960)}},
			SortSpec{{Column: "year"}}, PageRequest{Page: 0, PageSize: 50})
	}

	tests := []struct {
		name string
		key  string
	}{
		{"different dataset", Key(uuid.New(), FilterSpec{"year": {Min: floatPtr(1960)}},
			SortSpec{{Column: "year"}}, PageRequest{Page: 0, PageSize: 50})},
		{"different filter", Key(id, FilterSpec{"year": {Min: floatPtr(1970)}},
			SortSpec{{Column: "year"}}, PageRequest{Page: 0, PageSize: 50})},
		{"different sort direction", Key(id, FilterSpec{"year": {Min: floatPtr(1960)}},
			SortSpec{{Column: "year", Desc: true}}, PageRequest{Page: 0, PageSize: 50})},
		{"different page", Key(id, FilterSpec{"year": {Min: floatPtr(1960)}},
			SortSpec{{Column: "year"}}, PageRequest{Page: 1, PageSize: 50})},
		{"different page size", Key(id, FilterSpec{"year": {Min: floatPtr(1960)}},
			SortSpec{{Column: "year"}}, PageRequest{Page: 0, PageSize: 25})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.key == base() {
				t.Error("expected distinct key")
			}
		})
	}
}

func TestKey_NilAndEmptyFiltersEquivalent(t *testing.T) {
	id := uuid.New()
	page := PageRequest{Page: 0, PageSize: 50}

	if Key(id, nil, nil, page) != Key(id, FilterSpec{}, SortSpec{}, page) {
		t.Error("nil and empty specs should produce the same key")
	}
}
