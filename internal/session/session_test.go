// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tablescope/tablescope/internal/cache"
	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/database"
	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/query"
)

func setupSession(t *testing.T, rows int) *Session {
	t.Helper()

	db, err := database.New(&config.DatabaseConfig{
		MaxMemory:    "512MB",
		Threads:      2,
		QueryTimeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := dataset.NewStore(db)
	sess := New(store, query.NewExecutor(db), cache.NewResultCache(32, time.Minute))

	if rows > 0 {
		if _, err := sess.RegenerateDataset(context.Background(), rows); err != nil {
			t.Fatalf("failed to load dataset: %v", err)
		}
	}
	return sess
}

func TestApplyQuery_NoDataset(t *testing.T) {
	sess := setupSession(t, 0)

	_, _, err := sess.ApplyQuery(context.Background(), nil, nil, query.PageRequest{PageSize: 10})
	if !errors.Is(err, ErrNoDataset) {
		t.Errorf("expected ErrNoDataset, got %v", err)
	}
}

func TestApplyQuery_FetchAndCache(t *testing.T) {
	sess := setupSession(t, 200)
	ctx := context.Background()

	result, cached, err := sess.ApplyQuery(ctx, nil, nil, query.PageRequest{Page: 0, PageSize: 50})
	if err != nil {
		t.Fatalf("ApplyQuery failed: %v", err)
	}
	if cached {
		t.Error("first fetch should not be cached")
	}
	if result.TotalRows != 200 || len(result.Rows) != 50 {
		t.Errorf("unexpected result: total=%d rows=%d", result.TotalRows, len(result.Rows))
	}

	_, cached, err = sess.ApplyQuery(ctx, nil, nil, query.PageRequest{Page: 0, PageSize: 50})
	if err != nil {
		t.Fatalf("repeat ApplyQuery failed: %v", err)
	}
	if !cached {
		t.Error("identical repeat query should be served from cache")
	}
}

func TestApplyQuery_JumpBeyondLastPageClamps(t *testing.T) {
	sess := setupSession(t, 100)

	result, _, err := sess.ApplyQuery(context.Background(), nil, nil,
		query.PageRequest{Page: 500, PageSize: 10})
	if err != nil {
		t.Fatalf("ApplyQuery failed: %v", err)
	}
	if result.Page != 9 {
		t.Errorf("expected clamp to last page 9, got %d", result.Page)
	}
	if len(result.Rows) != 10 {
		t.Errorf("expected a full last page, got %d rows", len(result.Rows))
	}
}

func TestApplyQuery_FilterChangeReclampsPage(t *testing.T) {
	sess := setupSession(t, 480)
	ctx := context.Background()

	// Park deep into the unfiltered set.
	result, _, err := sess.ApplyQuery(ctx, nil, nil, query.PageRequest{Page: 40, PageSize: 10})
	if err != nil {
		t.Fatalf("ApplyQuery failed: %v", err)
	}
	if result.Page != 40 {
		t.Fatalf("expected page 40, got %d", result.Page)
	}

	// Shrink the set; the stale page 40 must clamp to the new range.
	filters := query.FilterSpec{"continent": {In: []string{"Oceania"}}}
	result, _, err = sess.ApplyQuery(ctx, filters, nil, query.PageRequest{Page: 40, PageSize: 10})
	if err != nil {
		t.Fatalf("filtered ApplyQuery failed: %v", err)
	}
	if result.TotalRows >= 480 || result.TotalRows == 0 {
		t.Fatalf("expected a proper subset, got %d rows", result.TotalRows)
	}
	wantLast := result.LastPage
	if result.Page != wantLast {
		t.Errorf("expected clamp to last page %d, got %d", wantLast, result.Page)
	}
}

func TestApplyQuery_InvalidFilterRejectedBeforeExecution(t *testing.T) {
	sess := setupSession(t, 100)

	_, _, err := sess.ApplyQuery(context.Background(),
		query.FilterSpec{"nope": {Contains: "x"}}, nil, query.PageRequest{PageSize: 10})
	if !errors.Is(err, query.ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
}

func TestNavigate_NextPrev(t *testing.T) {
	sess := setupSession(t, 100)
	ctx := context.Background()

	if _, _, err := sess.ApplyQuery(ctx, nil, nil, query.PageRequest{Page: 0, PageSize: 10}); err != nil {
		t.Fatalf("ApplyQuery failed: %v", err)
	}

	result, _, err := sess.Navigate(ctx, NextPage{})
	if err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if result.Page != 1 {
		t.Errorf("expected page 1 after next, got %d", result.Page)
	}

	result, _, err = sess.Navigate(ctx, PrevPage{})
	if err != nil {
		t.Fatalf("Navigate failed: %v", err)
	}
	if result.Page != 0 {
		t.Errorf("expected page 0 after prev, got %d", result.Page)
	}
}

func TestRegenerateDataset_ResetsSessionAndCache(t *testing.T) {
	sess := setupSession(t, 100)
	ctx := context.Background()

	filters := query.FilterSpec{"continent": {In: []string{"Asia"}}}
	if _, _, err := sess.ApplyQuery(ctx, filters, nil, query.PageRequest{Page: 1, PageSize: 10}); err != nil {
		t.Fatalf("ApplyQuery failed: %v", err)
	}

	if _, err := sess.RegenerateDataset(ctx, 60); err != nil {
		t.Fatalf("RegenerateDataset failed: %v", err)
	}

	st := sess.State()
	if len(st.Filters) != 0 || st.Pager.Page != 0 {
		t.Errorf("expected reset state, got filters=%v page=%d", st.Filters, st.Pager.Page)
	}

	result, cached, err := sess.ApplyQuery(ctx, nil, nil, query.PageRequest{Page: 0, PageSize: 10})
	if err != nil {
		t.Fatalf("post-replace ApplyQuery failed: %v", err)
	}
	if cached {
		t.Error("post-replace fetch must not hit stale cache")
	}
	if result.TotalRows != 60 {
		t.Errorf("expected 60 rows in regenerated dataset, got %d", result.TotalRows)
	}
}

func TestUploadDataset_FailureRetainsPrior(t *testing.T) {
	sess := setupSession(t, 100)
	ctx := context.Background()

	if _, err := sess.UploadDataset(ctx, []byte("a,b\n\"unclosed,1\nx"), dataset.FormatCSV); !errors.Is(err, dataset.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}

	result, _, err := sess.ApplyQuery(ctx, nil, nil, query.PageRequest{Page: 0, PageSize: 10})
	if err != nil {
		t.Fatalf("prior dataset no longer queryable: %v", err)
	}
	if result.TotalRows != 100 {
		t.Errorf("expected prior dataset intact with 100 rows, got %d", result.TotalRows)
	}
}

func TestUploadDataset_CSV(t *testing.T) {
	sess := setupSession(t, 50)
	ctx := context.Background()

	csvData := []byte("city,population\nOslo,700000\nBergen,290000\nTromso,77000\n")
	ds, err := sess.UploadDataset(ctx, csvData, dataset.FormatCSV)
	if err != nil {
		t.Fatalf("UploadDataset failed: %v", err)
	}
	if ds.RowCount != 3 {
		t.Errorf("expected 3 rows, got %d", ds.RowCount)
	}

	result, _, err := sess.ApplyQuery(ctx, query.FilterSpec{"city": {Contains: "oslo"}}, nil,
		query.PageRequest{Page: 0, PageSize: 10})
	if err != nil {
		t.Fatalf("ApplyQuery failed: %v", err)
	}
	if result.TotalRows != 1 {
		t.Errorf("case-insensitive contains should match 1 row, got %d", result.TotalRows)
	}
}

func TestStatsAndChart(t *testing.T) {
	sess := setupSession(t, 240)
	ctx := context.Background()

	stats, err := sess.Stats(ctx, nil, query.StatsRequest{
		Distinct: []string{"country"},
		Median:   []string{"life_exp"},
		Sum:      []string{"pop"},
	})
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.TotalRows != 240 {
		t.Errorf("expected 240 rows, got %d", stats.TotalRows)
	}

	chart, err := sess.Chart(ctx, nil, []string{"gdp_per_cap", "life_exp"}, 100)
	if err != nil {
		t.Fatalf("Chart failed: %v", err)
	}
	if !chart.Sampled {
		t.Error("240 points over a 100 cap should be sampled")
	}
	if len(chart.Points["life_exp"]) != 100 {
		t.Errorf("expected 100 points, got %d", len(chart.Points["life_exp"]))
	}
}
