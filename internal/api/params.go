// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package api

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tablescope/tablescope/internal/query"
)

// parseFilters decodes repeatable filter params:
//
//	filter=col:in:v1,v2          value is one of the listed strings
//	filter=col:range:min:max     numeric range, either bound may be empty
//	filter=col:contains:substr   case-insensitive substring
//
// Column existence is checked later by the query builder; this layer
// only rejects syntactically malformed expressions.
func parseFilters(values url.Values) (query.FilterSpec, error) {
	raw := values["filter"]
	if len(raw) == 0 {
		return nil, nil
	}

	filters := make(query.FilterSpec, len(raw))
	for _, expr := range raw {
		col, pred, err := parseFilterExpr(expr)
		if err != nil {
			return nil, err
		}
		// Repeated params for one column merge into a single predicate.
		merged := filters[col]
		if len(pred.In) > 0 {
			merged.In = pred.In
		}
		if pred.Min != nil {
			merged.Min = pred.Min
		}
		if pred.Max != nil {
			merged.Max = pred.Max
		}
		if pred.Contains != "" {
			merged.Contains = pred.Contains
		}
		filters[col] = merged
	}
	return filters, nil
}

func parseFilterExpr(expr string) (string, query.Predicate, error) {
	parts := strings.SplitN(expr, ":", 3)
	if len(parts) < 3 || parts[0] == "" {
		return "", query.Predicate{}, fmt.Errorf("malformed filter %q", expr)
	}
	col, kind, rest := parts[0], parts[1], parts[2]

	switch kind {
	case "in":
		values := strings.Split(rest, ",")
		if len(values) == 1 && values[0] == "" {
			return "", query.Predicate{}, fmt.Errorf("filter %q has no values", expr)
		}
		return col, query.Predicate{In: values}, nil

	case "range":
		bounds := strings.SplitN(rest, ":", 2)
		if len(bounds) != 2 {
			return "", query.Predicate{}, fmt.Errorf("filter %q needs min:max bounds", expr)
		}
		pred := query.Predicate{}
		if bounds[0] != "" {
			min, err := strconv.ParseFloat(bounds[0], 64)
			if err != nil {
				return "", query.Predicate{}, fmt.Errorf("filter %q has non-numeric min", expr)
			}
			pred.Min = &min
		}
		if bounds[1] != "" {
			max, err := strconv.ParseFloat(bounds[1], 64)
			if err != nil {
				return "", query.Predicate{}, fmt.Errorf("filter %q has non-numeric max", expr)
			}
			pred.Max = &max
		}
		if pred.Min == nil && pred.Max == nil {
			return "", query.Predicate{}, fmt.Errorf("filter %q has no bounds", expr)
		}
		return col, pred, nil

	case "contains":
		if rest == "" {
			return "", query.Predicate{}, fmt.Errorf("filter %q has no substring", expr)
		}
		return col, query.Predicate{Contains: rest}, nil

	default:
		return "", query.Predicate{}, fmt.Errorf("unknown filter kind %q in %q", kind, expr)
	}
}

// parseSort decodes sort=col1,-col2 where a leading dash means
// descending.
func parseSort(values url.Values) (query.SortSpec, error) {
	raw := values.Get("sort")
	if raw == "" {
		return nil, nil
	}

	fields := strings.Split(raw, ",")
	spec := make(query.SortSpec, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" || field == "-" {
			return nil, fmt.Errorf("malformed sort %q", raw)
		}
		desc := strings.HasPrefix(field, "-")
		spec = append(spec, query.SortField{
			Column: strings.TrimPrefix(field, "-"),
			Desc:   desc,
		})
	}
	return spec, nil
}

// intParam parses an optional integer query parameter.
func intParam(values url.Values, name string, fallback int) (int, error) {
	raw := values.Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parameter %s must be an integer", name)
	}
	return n, nil
}

// listParam splits an optional comma-separated query parameter.
func listParam(values url.Values, name string) []string {
	raw := values.Get(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
