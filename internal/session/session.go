// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/tablescope/tablescope/internal/cache"
	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/models"
	"github.com/tablescope/tablescope/internal/query"
)

// ErrNoDataset indicates no dataset has been loaded yet.
var ErrNoDataset = errors.New("no dataset loaded")

// Session owns the explorer state and the path from a query description
// to a cached page. Handling passes are serialized by the mutex, so
// state transitions, count refreshes, and page fetches never interleave.
type Session struct {
	mu sync.Mutex

	store *dataset.Store
	exec  *query.Executor
	cache *cache.ResultCache

	state      State
	totalKnown bool
}

// New creates a Session over the given store, executor, and cache.
func New(store *dataset.Store, exec *query.Executor, resultCache *cache.ResultCache) *Session {
	return &Session{
		store: store,
		exec:  exec,
		cache: resultCache,
		state: NewState(),
	}
}

// State returns a copy of the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Dataset returns the active DataSource, or ErrNoDataset.
func (s *Session) Dataset() (*dataset.DataSource, error) {
	ds := s.store.Current()
	if ds == nil {
		return nil, ErrNoDataset
	}
	return ds, nil
}

// ApplyQuery reduces the session state to match an explicit query
// description and fetches the resulting page through the cache.
//
// A filter or sort change triggers a fresh count so the requested page
// index clamps against the new filtered total before the fetch. The
// returned page reflects the clamped cursor, which may differ from the
// requested index.
func (s *Session) ApplyQuery(ctx context.Context, filters query.FilterSpec, sortSpec query.SortSpec, page query.PageRequest) (*models.PageResult, bool, error) {
	page, err := page.Normalize()
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.store.Current()
	if ds == nil {
		return nil, false, ErrNoDataset
	}

	st := s.state
	filtersChanged := !filtersEqual(st.Filters, filters)

	if page.PageSize != st.Pager.PageSize {
		st = Reduce(st, SetPageSize{Size: page.PageSize})
	}
	if filtersChanged {
		st = Reduce(st, SetFilters{Filters: filters})
	}
	if !sortEqual(st.Sort, sortSpec) {
		st = Reduce(st, SetSort{Sort: sortSpec})
	}

	if filtersChanged || !s.totalKnown {
		total, err := s.countFiltered(ctx, ds, st.Filters)
		if err != nil {
			return nil, false, err
		}
		st.Pager = st.Pager.WithTotalRows(total)
	}

	st = Reduce(st, JumpPage{Page: page.Page})

	result, cached, err := s.fetchPage(ctx, ds, st)
	if err != nil {
		return nil, false, err
	}

	st.Pager = st.Pager.WithTotalRows(result.TotalRows)
	s.state = st
	s.totalKnown = true
	return result, cached, nil
}

// Navigate applies a navigation event against the current filters and
// fetches the page at the new cursor.
func (s *Session) Navigate(ctx context.Context, ev Event) (*models.PageResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.store.Current()
	if ds == nil {
		return nil, false, ErrNoDataset
	}

	st := Reduce(s.state, ev)

	result, cached, err := s.fetchPage(ctx, ds, st)
	if err != nil {
		return nil, false, err
	}

	st.Pager = st.Pager.WithTotalRows(result.TotalRows)
	s.state = st
	s.totalKnown = true
	return result, cached, nil
}

// CurrentPage fetches the page at the current cursor without changing
// any state.
func (s *Session) CurrentPage(ctx context.Context) (*models.PageResult, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds := s.store.Current()
	if ds == nil {
		return nil, false, ErrNoDataset
	}
	return s.fetchPage(ctx, ds, s.state)
}

// fetchPage runs the current query through the result cache. Building
// happens before the cache so invalid filters fail without occupying a
// flight. Callers hold s.mu.
func (s *Session) fetchPage(ctx context.Context, ds *dataset.DataSource, st State) (*models.PageResult, bool, error) {
	page := query.PageRequest{Page: st.Pager.Page, PageSize: st.Pager.PageSize}

	q, err := query.Build(ds, st.Filters, st.Sort, page)
	if err != nil {
		return nil, false, err
	}

	key := query.Key(ds.ID, st.Filters, st.Sort, page)
	start := time.Now()
	result, cached, err := s.cache.GetOrCompute(ctx, key, func(ctx context.Context) (*models.PageResult, error) {
		return s.exec.Execute(ctx, q)
	})
	if err != nil {
		return nil, false, err
	}

	logging.Ctx(ctx).Debug().
		Str("key", key).
		Bool("cached", cached).
		Int("page", result.Page).
		Int64("total_rows", result.TotalRows).
		Dur("elapsed", time.Since(start)).
		Msg("Page fetch")

	return result, cached, nil
}

// countFiltered runs the count statement for a filter spec.
func (s *Session) countFiltered(ctx context.Context, ds *dataset.DataSource, filters query.FilterSpec) (int64, error) {
	q, err := query.Build(ds, filters, nil, query.PageRequest{Page: 0, PageSize: 1})
	if err != nil {
		return 0, err
	}
	return s.exec.Count(ctx, q)
}

// RegenerateDataset rebuilds the synthetic dataset and resets the
// session: cache invalidated, filters cleared, cursor back to page 0.
func (s *Session) RegenerateDataset(ctx context.Context, rows int) (*dataset.DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.store.LoadGenerated(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dataset: %w", err)
	}

	s.resetForDataset()
	return ds, nil
}

// UploadDataset replaces the dataset from uploaded bytes. On failure
// the prior dataset and session state remain untouched.
func (s *Session) UploadDataset(ctx context.Context, data []byte, format dataset.Format) (*dataset.DataSource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ds, err := s.store.LoadUpload(ctx, data, format)
	if err != nil {
		return nil, err
	}

	s.resetForDataset()
	return ds, nil
}

// Stats computes KPI aggregates under the given filters.
func (s *Session) Stats(ctx context.Context, filters query.FilterSpec, req query.StatsRequest) (*models.StatsResult, error) {
	ds := s.store.Current()
	if ds == nil {
		return nil, ErrNoDataset
	}

	q, err := query.BuildStats(ds, filters, req)
	if err != nil {
		return nil, err
	}
	return s.exec.ExecuteStats(ctx, q)
}

// Chart returns a bounded column-oriented slice of the filtered set.
func (s *Session) Chart(ctx context.Context, filters query.FilterSpec, columns []string, maxPoints int) (*models.ChartData, error) {
	ds := s.store.Current()
	if ds == nil {
		return nil, ErrNoDataset
	}

	q, err := query.BuildChart(ds, filters, columns, maxPoints)
	if err != nil {
		return nil, err
	}
	return s.exec.ExecuteChart(ctx, q)
}

// resetForDataset clears query state after a dataset replace. Callers
// hold s.mu.
func (s *Session) resetForDataset() {
	s.cache.InvalidateAll()
	s.state = NewState()
	s.totalKnown = false
}

func filtersEqual(a, b query.FilterSpec) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func sortEqual(a, b query.SortSpec) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}
