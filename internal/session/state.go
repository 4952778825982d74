// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

// Package session reifies one explorer session: the active filters,
// sort order, and pagination cursor, plus the wiring that turns them
// into cached page fetches. State transitions are a pure reducer over
// explicit events, so navigation semantics are testable without any
// HTTP or database involvement.
package session

import (
	"github.com/tablescope/tablescope/internal/pagination"
	"github.com/tablescope/tablescope/internal/query"
)

// State is the explorer-visible session state. It has value semantics;
// Reduce returns a new State and never mutates its input.
type State struct {
	Filters query.FilterSpec
	Sort    query.SortSpec
	Pager   pagination.Controller
}

// NewState returns the initial state: no filters, engine sort order,
// default page size.
func NewState() State {
	return State{Pager: pagination.New(pagination.DefaultPageSize)}
}

// Event is a session state transition request.
type Event interface {
	isEvent()
}

// SetFilters replaces the filter spec and returns to the first page.
type SetFilters struct {
	Filters query.FilterSpec
}

// SetSort replaces the sort order and returns to the first page.
type SetSort struct {
	Sort query.SortSpec
}

// SetPageSize changes the page size and returns to the first page.
type SetPageSize struct {
	Size int
}

// NextPage advances one page; no-op on the last page.
type NextPage struct{}

// PrevPage goes back one page; no-op on the first page.
type PrevPage struct{}

// JumpPage moves to an absolute page index, clamped to the valid range.
type JumpPage struct {
	Page int
}

func (SetFilters) isEvent()  {}
func (SetSort) isEvent()     {}
func (SetPageSize) isEvent() {}
func (NextPage) isEvent()    {}
func (PrevPage) isEvent()    {}
func (JumpPage) isEvent()    {}

// Reduce applies one event to a state. Filter and sort changes reset
// the cursor to page 0; the pager's total row count is carried over and
// re-clamped by the caller once a fresh count is known.
func Reduce(s State, e Event) State {
	switch ev := e.(type) {
	case SetFilters:
		s.Filters = ev.Filters
		s.Pager = s.Pager.Jump(0)
	case SetSort:
		s.Sort = ev.Sort
		s.Pager = s.Pager.Jump(0)
	case SetPageSize:
		s.Pager = s.Pager.WithPageSize(ev.Size)
	case NextPage:
		s.Pager = s.Pager.Next()
	case PrevPage:
		s.Pager = s.Pager.Prev()
	case JumpPage:
		s.Pager = s.Pager.Jump(ev.Page)
	}
	return s
}
