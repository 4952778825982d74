// Tablescope - Interactive Tabular Dataset Explorer
// Copyright 2026 Tablescope Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tablescope/tablescope

package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tablescope/tablescope/internal/cache"
	"github.com/tablescope/tablescope/internal/config"
	"github.com/tablescope/tablescope/internal/database"
	"github.com/tablescope/tablescope/internal/dataset"
	"github.com/tablescope/tablescope/internal/models"
	"github.com/tablescope/tablescope/internal/query"
	"github.com/tablescope/tablescope/internal/session"
)

// envelope mirrors models.APIResponse with raw data for per-test decoding.
type envelope struct {
	Status   string           `json:"status"`
	Data     json.RawMessage  `json:"data"`
	Metadata models.Metadata  `json:"metadata"`
	Error    *models.APIError `json:"error"`
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:              "127.0.0.1",
			Port:              8460,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      60 * time.Second,
			RateLimitDisabled: true,
		},
		Database: config.DatabaseConfig{
			MaxMemory:    "512MB",
			QueryTimeout: 30 * time.Second,
		},
		Dataset: config.DatasetConfig{
			GeneratedRows:  200,
			MaxUploadBytes: 1 << 20,
		},
		Cache: config.CacheConfig{
			Capacity: 32,
			TTL:      time.Minute,
		},
	}
}

// setupServer builds the full stack against an in-memory engine. When
// rows > 0 a synthetic dataset is loaded before the server starts.
func setupServer(t *testing.T, rows int) *httptest.Server {
	t.Helper()

	cfg := testConfig()

	db, err := database.New(&cfg.Database)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := dataset.NewStore(db)
	exec := query.NewExecutor(db)
	results := cache.NewResultCache(cfg.Cache.Capacity, cfg.Cache.TTL)
	sess := session.New(store, exec, results)

	if rows > 0 {
		if _, err := sess.RegenerateDataset(context.Background(), rows); err != nil {
			t.Fatalf("failed to load dataset: %v", err)
		}
	}

	srv := httptest.NewServer(NewRouter(NewHandler(sess, db, cfg), &cfg.Server))
	t.Cleanup(srv.Close)
	return srv
}

func getEnvelope(t *testing.T, srv *httptest.Server, path string) (int, envelope) {
	t.Helper()

	resp, err := srv.Client().Get(srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope from %s: %v", path, err)
	}
	return resp.StatusCode, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("failed to decode data payload: %v", err)
	}
}

func TestHealth(t *testing.T) {
	srv := setupServer(t, 100)

	status, env := getEnvelope(t, srv, "/api/v1/health")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if env.Status != "success" {
		t.Errorf("envelope status = %q", env.Status)
	}

	var health map[string]interface{}
	decodeData(t, env, &health)
	if health["dataset_loaded"] != true {
		t.Errorf("dataset_loaded = %v, want true", health["dataset_loaded"])
	}
}

func TestDatasetInfo(t *testing.T) {
	srv := setupServer(t, 100)

	status, env := getEnvelope(t, srv, "/api/v1/dataset/")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var info models.DataSourceInfo
	decodeData(t, env, &info)
	if info.Origin != "generated" {
		t.Errorf("origin = %q, want generated", info.Origin)
	}
	if info.RowCount != 100 {
		t.Errorf("row count = %d, want 100", info.RowCount)
	}
	if len(info.Columns) != 6 {
		t.Errorf("column count = %d, want 6", len(info.Columns))
	}
}

func TestDatasetInfo_NoDataset(t *testing.T) {
	srv := setupServer(t, 0)

	status, env := getEnvelope(t, srv, "/api/v1/dataset/")
	if status != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", status)
	}
	if env.Error == nil || env.Error.Code != ErrCodeService {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeService)
	}
}

func TestDatasetGenerate(t *testing.T) {
	srv := setupServer(t, 0)

	resp, err := srv.Client().Post(srv.URL+"/api/v1/dataset/generate",
		"application/json", strings.NewReader(`{"rows": 150}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	var info models.DataSourceInfo
	decodeData(t, env, &info)
	if info.RowCount != 150 {
		t.Errorf("row count = %d, want 150", info.RowCount)
	}
}

func TestDatasetGenerate_RejectsInvalidRows(t *testing.T) {
	srv := setupServer(t, 0)

	resp, err := srv.Client().Post(srv.URL+"/api/v1/dataset/generate",
		"application/json", strings.NewReader(`{"rows": -5}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestDatasetUpload_CSV(t *testing.T) {
	srv := setupServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("format", "csv"); err != nil {
		t.Fatalf("failed to write field: %v", err)
	}
	part, err := mw.CreateFormFile("file", "cities.csv")
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := io.WriteString(part, "city,pop\nOslo,700000\nLima,9700000\n"); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	resp, err := srv.Client().Post(srv.URL+"/api/v1/dataset/upload",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want 200 (body: %s)", resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	var info models.DataSourceInfo
	decodeData(t, env, &info)
	if info.Origin != "csv" {
		t.Errorf("origin = %q, want csv", info.Origin)
	}
	if info.RowCount != 2 {
		t.Errorf("row count = %d, want 2", info.RowCount)
	}
}

func TestDatasetUpload_UnsupportedFormat(t *testing.T) {
	srv := setupServer(t, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("format", "xlsx")
	part, _ := mw.CreateFormFile("file", "data.xlsx")
	_, _ = io.WriteString(part, "not a spreadsheet")
	_ = mw.Close()

	resp, err := srv.Client().Post(srv.URL+"/api/v1/dataset/upload",
		mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if env.Error == nil || env.Error.Code != ErrCodeUnsupportedFormat {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeUnsupportedFormat)
	}
}

func TestRows_DefaultPage(t *testing.T) {
	srv := setupServer(t, 120)

	status, env := getEnvelope(t, srv, "/api/v1/rows/")
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var page models.PageResult
	decodeData(t, env, &page)
	if page.TotalRows != 120 {
		t.Errorf("total rows = %d, want 120", page.TotalRows)
	}
	if len(page.Rows) != 50 {
		t.Errorf("row count = %d, want default page size 50", len(page.Rows))
	}
	if page.LastPage != 2 {
		t.Errorf("last page = %d, want 2", page.LastPage)
	}
}

func TestRows_CachedOnRepeat(t *testing.T) {
	srv := setupServer(t, 100)

	_, first := getEnvelope(t, srv, "/api/v1/rows/?page=0&page_size=25")
	if first.Metadata.Cached {
		t.Error("first request should not be served from cache")
	}

	_, second := getEnvelope(t, srv, "/api/v1/rows/?page=0&page_size=25")
	if !second.Metadata.Cached {
		t.Error("repeat request should be served from cache")
	}
}

func TestRows_FilterAndSort(t *testing.T) {
	srv := setupServer(t, 240)

	path := "/api/v1/rows/?" + url.Values{
		"filter":    []string{"continent:in:Asia"},
		"sort":      []string{"-year"},
		"page_size": []string{"10"},
	}.Encode()

	status, env := getEnvelope(t, srv, path)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var page models.PageResult
	decodeData(t, env, &page)
	if page.TotalRows == 0 || page.TotalRows >= 240 {
		t.Errorf("filtered total = %d, want a strict subset", page.TotalRows)
	}
	for i, row := range page.Rows {
		if row["continent"] != "Asia" {
			t.Fatalf("row %d continent = %v, want Asia", i, row["continent"])
		}
	}
	var prev float64 = 1 << 30
	for i, row := range page.Rows {
		year, ok := row["year"].(float64)
		if !ok {
			t.Fatalf("row %d year has type %T", i, row["year"])
		}
		if year > prev {
			t.Fatalf("rows not descending by year at index %d", i)
		}
		prev = year
	}
}

func TestRows_ErrorCodes(t *testing.T) {
	srv := setupServer(t, 50)

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantCode   string
	}{
		{"malformed filter", "/api/v1/rows/?filter=bogus", http.StatusBadRequest, ErrCodeInvalidFilter},
		{"unknown filter column", "/api/v1/rows/?filter=nope:in:x", http.StatusBadRequest, ErrCodeInvalidFilter},
		{"unknown sort column", "/api/v1/rows/?sort=nope", http.StatusBadRequest, ErrCodeInvalidFilter},
		{"page size too large", "/api/v1/rows/?page_size=5000", http.StatusBadRequest, ErrCodeValidation},
		{"non-integer page", "/api/v1/rows/?page=abc", http.StatusBadRequest, ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := getEnvelope(t, srv, tt.path)
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
			if env.Status != "error" {
				t.Errorf("envelope status = %q, want error", env.Status)
			}
			if env.Error == nil || env.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", env.Error, tt.wantCode)
			}
		})
	}
}

func TestRowsExport_CSV(t *testing.T) {
	srv := setupServer(t, 60)

	resp, err := srv.Client().Get(srv.URL + "/api/v1/rows/export?page_size=20")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Errorf("content type = %q, want text/csv", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "tablescope-page-0.csv") {
		t.Errorf("content disposition = %q", cd)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse CSV body: %v", err)
	}
	if len(records) != 21 {
		t.Fatalf("record count = %d, want header plus 20 rows", len(records))
	}
	if records[0][0] != "country" {
		t.Errorf("first header field = %q, want country", records[0][0])
	}
}

func TestStats(t *testing.T) {
	srv := setupServer(t, 200)

	path := "/api/v1/stats?" + url.Values{
		"distinct": []string{"country"},
		"median":   []string{"life_exp"},
		"sum":      []string{"pop"},
	}.Encode()

	status, env := getEnvelope(t, srv, path)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var stats models.StatsResult
	decodeData(t, env, &stats)
	if stats.TotalRows != 200 {
		t.Errorf("total rows = %d, want 200", stats.TotalRows)
	}
	if stats.Distinct["country"] < 1 {
		t.Errorf("distinct countries = %d, want at least 1", stats.Distinct["country"])
	}
	if stats.Sum["pop"] <= 0 {
		t.Errorf("population sum = %f, want positive", stats.Sum["pop"])
	}
}

func TestStats_NonNumericAggregate(t *testing.T) {
	srv := setupServer(t, 50)

	status, env := getEnvelope(t, srv, "/api/v1/stats?median=country")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Error == nil || env.Error.Code != ErrCodeInvalidFilter {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeInvalidFilter)
	}
}

func TestChart(t *testing.T) {
	srv := setupServer(t, 300)

	path := "/api/v1/chart?" + url.Values{
		"x":          []string{"gdp_per_cap"},
		"y":          []string{"life_exp"},
		"color":      []string{"continent"},
		"max_points": []string{"100"},
	}.Encode()

	status, env := getEnvelope(t, srv, path)
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}

	var data models.ChartData
	decodeData(t, env, &data)
	if !data.Sampled {
		t.Error("300 rows over a 100 point cap should report sampled")
	}
	if got := len(data.Points["gdp_per_cap"]); got != 100 {
		t.Errorf("sampled points = %d, want 100", got)
	}
	if len(data.Points["continent"]) != len(data.Points["life_exp"]) {
		t.Error("point columns must be the same length")
	}
}

func TestChart_MissingAxes(t *testing.T) {
	srv := setupServer(t, 50)

	status, env := getEnvelope(t, srv, "/api/v1/chart?x=year")
	if status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", status)
	}
	if env.Error == nil || env.Error.Code != ErrCodeValidation {
		t.Errorf("error = %+v, want code %s", env.Error, ErrCodeValidation)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	srv := setupServer(t, 50)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/health", nil)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("X-Request-ID", "test-req-42")

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("X-Request-ID"); got != "test-req-42" {
		t.Errorf("X-Request-ID = %q, want test-req-42", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := setupServer(t, 50)

	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !bytes.Contains(body, []byte("tablescope_")) {
		t.Error("metrics output missing tablescope_ series")
	}
}
