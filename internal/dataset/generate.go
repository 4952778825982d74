// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package dataset

import (
	"context"
	"fmt"
	"strings"

	"github.com/tablescope/tablescope/internal/logging"
	"github.com/tablescope/tablescope/internal/metrics"
)

// demoCountry is one seed row for the synthetic demographics dataset.
// Baselines roughly track 1952 values; the generator grows them over
// the year axis with per-row jitter.
type demoCountry struct {
	name        string
	continent   string
	baseLifeExp float64
	baseGDP     float64
	basePop     int64
}

var demoCountries = []demoCountry{
	{"Argentina", "Americas", 62.5, 5911, 17876956},
	{"Australia", "Oceania", 69.1, 10040, 8691212},
	{"Brazil", "Americas", 50.9, 2109, 56602560},
	{"Canada", "Americas", 68.8, 11367, 14785584},
	{"China", "Asia", 44.0, 400, 556263527},
	{"Egypt", "Africa", 41.9, 1419, 22223309},
	{"Ethiopia", "Africa", 34.1, 362, 20171424},
	{"France", "Europe", 67.4, 7030, 42459667},
	{"Germany", "Europe", 67.5, 7144, 69145952},
	{"India", "Asia", 37.4, 547, 372000000},
	{"Indonesia", "Asia", 37.5, 750, 82052000},
	{"Italy", "Europe", 65.9, 4931, 47666000},
	{"Japan", "Asia", 63.0, 3217, 86459025},
	{"Kenya", "Africa", 42.3, 854, 6464046},
	{"Mexico", "Americas", 50.8, 3478, 30144317},
	{"New Zealand", "Oceania", 69.4, 10557, 1994794},
	{"Nigeria", "Africa", 36.3, 1077, 33119096},
	{"Poland", "Europe", 61.3, 4029, 25730551},
	{"South Africa", "Africa", 45.0, 4725, 14264935},
	{"Spain", "Europe", 64.9, 3834, 28549870},
	{"Thailand", "Asia", 50.8, 757, 21289402},
	{"Turkey", "Europe", 43.6, 1969, 22235677},
	{"United Kingdom", "Europe", 69.2, 9980, 50430000},
	{"United States", "Americas", 68.4, 13990, 157553000},
}

// Generated dataset year axis: 1952-2007 in 5-year steps, matching the
// classic Gapminder panel.
const (
	demoBaseYear  = 1952
	demoYearStep  = 5
	demoYearCount = 12
)

// LoadGenerated synthesizes the demo demographics dataset with
// approximately rowTarget rows and makes it the active DataSource.
//
// Generation happens entirely inside DuckDB (range() plus random()),
// so a million-row demo table never materializes in Go. Rows cycle
// through (country, year) combinations; metrics grow along the year
// axis with multiplicative jitter so filters and charts have realistic
// spread.
func (s *Store) LoadGenerated(ctx context.Context, rowTarget int) (*DataSource, error) {
	if rowTarget < 1 {
		return nil, fmt.Errorf("row target must be positive, got %d", rowTarget)
	}

	table := s.nextTable()
	gen := fmt.Sprintf(`
		CREATE TABLE %s AS
		WITH countries AS (
			SELECT * FROM (VALUES
				%s
			) AS c(idx, country, continent, base_life_exp, base_gdp, base_pop)
		),
		axis AS (
			SELECT
				t.i AS i,
				t.i %% %d AS country_idx,
				CAST((t.i // %d) %% %d AS INTEGER) AS year_idx
			FROM range(?) AS t(i)
		)
		SELECT
			c.country,
			c.continent,
			CAST(%d + %d * a.year_idx AS INTEGER) AS year,
			ROUND(c.base_life_exp + 1.1 * a.year_idx + 6.0 * (random() - 0.5), 1) AS life_exp,
			CAST(c.base_pop * POWER(1.09, a.year_idx) * (0.9 + 0.2 * random()) AS BIGINT) AS pop,
			ROUND(c.base_gdp * POWER(1.12, a.year_idx) * (0.7 + 0.6 * random()), 2) AS gdp_per_cap
		FROM axis a
		JOIN countries c ON c.idx = a.country_idx`,
		quoteIdent(table), demoCountryValues(), len(demoCountries), len(demoCountries),
		demoYearCount, demoBaseYear, demoYearStep)

	if _, err := s.db.ExecContext(ctx, "load", gen, rowTarget); err != nil {
		metrics.DatasetLoads.WithLabelValues(string(OriginGenerated), "error").Inc()
		return nil, fmt.Errorf("failed to generate dataset: %w", err)
	}

	ds, err := s.snapshot(ctx, table, OriginGenerated)
	if err != nil {
		if _, dropErr := s.db.ExecContext(ctx, "load", "DROP TABLE IF EXISTS "+quoteIdent(table)); dropErr != nil {
			logging.Warn().Err(dropErr).Str("table", table).Msg("Failed to drop partially generated table")
		}
		metrics.DatasetLoads.WithLabelValues(string(OriginGenerated), "error").Inc()
		return nil, err
	}

	s.swap(ctx, ds)
	metrics.DatasetLoads.WithLabelValues(string(OriginGenerated), "ok").Inc()

	logging.Info().
		Str("table", ds.Table).
		Int64("rows", ds.RowCount).
		Msg("Generated demo dataset")

	return ds, nil
}

// demoCountryValues renders the seed rows as SQL VALUES tuples.
// Country names contain no quotes, so plain literal embedding is safe.
func demoCountryValues() string {
	tuples := make([]string, len(demoCountries))
	for i, c := range demoCountries {
		tuples[i] = fmt.Sprintf("(%d, '%s', '%s', %g, %g, %d)",
			i, c.name, c.continent, c.baseLifeExp, c.baseGDP, c.basePop)
	}
	return strings.Join(tuples, ",\n\t\t\t\t")
}
