package fred

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/pkg/models"
)

// newMockFRED serves the three FRED endpoints the provider uses.
func newMockFRED(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		q := r.URL.Query()
		if q.Get("api_key") != "test_key" || q.Get("file_type") != "json" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error_code": 400, "error_message": "Bad Request.  The value for variable api_key is not registered."})
			return
		}
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/fred/series/observations":
			switch q.Get("series_id") {
			case "GDPC1":
				if q.Get("observation_start") != "1976-01-01" {
					t.Errorf("observation_start = %q", q.Get("observation_start"))
				}
				json.NewEncoder(w).Encode(map[string]any{
					"observations": []map[string]string{
						{"date": "2024-01-01", "value": "22.5"},
						{"date": "2024-04-01", "value": "."},
						{"date": "2024-07-01", "value": "23.1"},
					},
				})
			case "BROKEN":
				json.NewEncoder(w).Encode(map[string]any{
					"observations": []map[string]string{{"date": "2024-13-01", "value": "1"}},
				})
			default:
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(map[string]any{"error_code": 400, "error_message": "Bad Request.  The series does not exist."})
			}
		case "/fred/series":
			json.NewEncoder(w).Encode(map[string]any{
				"seriess": []map[string]any{{
					"id":                  q.Get("series_id"),
					"title":               "Real Gross Domestic Product",
					"frequency":           "Quarterly",
					"units":               "Billions of Chained 2017 Dollars",
					"seasonal_adjustment": "Seasonally Adjusted Annual Rate",
					"observation_start":   "1947-01-01",
					"observation_end":     "2024-07-01",
					"last_updated":        "2024-10-30 07:56:03-05",
					"popularity":          93,
				}},
			})
		case "/fred/series/search":
			if q.Get("search_text") != "credit card delinquency" || q.Get("limit") != "25" {
				t.Errorf("unexpected search query %v", q)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"seriess": []map[string]any{
					{"id": "DRCCLACBS", "title": "Delinquency Rate on Credit Card Loans", "frequency": "Quarterly", "popularity": 60},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestProvider(t *testing.T, srv *httptest.Server) *Provider {
	t.Helper()
	p := New(Options{BaseURL: srv.URL + "/fred", Timeout: 5 * time.Second, RateLimit: 600, CacheTTL: time.Minute})
	if err := p.Init(map[string]string{"api_key": "test_key"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return p
}

func TestProviderInfo(t *testing.T) {
	p := New(DefaultOptions())
	info := p.Info()
	if info.Name != "fred" {
		t.Errorf("expected name fred, got %s", info.Name)
	}
	if len(info.Credentials) != 1 || info.Credentials[0].Name != "api_key" || !info.Credentials[0].Required {
		t.Errorf("unexpected credentials: %+v", info.Credentials)
	}
	if len(p.SupportedModels()) != 3 {
		t.Errorf("expected 3 models, got %v", p.SupportedModels())
	}
	if p.api.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %s", p.api.baseURL)
	}
}

func TestProviderInit(t *testing.T) {
	p := New(DefaultOptions())
	if err := p.Init(map[string]string{}); err == nil {
		t.Error("expected error for missing api_key")
	}
	if err := p.Init(map[string]string{"api_key": "test_key_123"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.APIKey() != "test_key_123" {
		t.Errorf("expected api key test_key_123, got %s", p.APIKey())
	}
}

func TestFetcherWrappedWithAPIKey(t *testing.T) {
	p := New(DefaultOptions())
	_ = p.Init(map[string]string{"api_key": "my_fred_key"})

	f := p.Fetcher(provider.ModelSeriesObservations)
	wrapper, ok := f.(*apiKeyInjector)
	if !ok {
		t.Fatalf("expected apiKeyInjector, got %T", f)
	}
	if *wrapper.apiKey != "my_fred_key" {
		t.Errorf("expected api key my_fred_key, got %s", *wrapper.apiKey)
	}
	if p.Fetcher(provider.ModelType("Nonexistent")) != nil {
		t.Error("expected nil fetcher for unsupported model")
	}
}

func TestFetcherRequiredParams(t *testing.T) {
	p := New(DefaultOptions())
	tests := []struct {
		model    provider.ModelType
		required string
	}{
		{provider.ModelSeriesObservations, provider.ParamSymbol},
		{provider.ModelSeriesInfo, provider.ParamSymbol},
		{provider.ModelSeriesSearch, provider.ParamQuery},
	}
	for _, tt := range tests {
		req := p.Fetcher(tt.model).RequiredParams()
		if len(req) != 1 || req[0] != tt.required {
			t.Errorf("%s: required = %v, want [%s]", tt.model, req, tt.required)
		}
	}
}

func TestObservations(t *testing.T) {
	var hits int32
	srv := newMockFRED(t, &hits)
	defer srv.Close()
	p := newTestProvider(t, srv)

	params := provider.QueryParams{
		provider.ParamSymbol:    "GDPC1",
		provider.ParamName:      "gdp",
		provider.ParamStartDate: "1976-01-01",
	}
	res, err := p.Fetcher(provider.ModelSeriesObservations).Fetch(context.Background(), params)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	s, ok := res.Data.(series.Series)
	if !ok {
		t.Fatalf("expected series.Series, got %T", res.Data)
	}
	if s.Name != "gdp" || s.Len() != 3 || s.Valid() != 2 {
		t.Errorf("unexpected series %s len=%d valid=%d", s.Name, s.Len(), s.Valid())
	}
	if v := s.Points[1].Value; v.Valid {
		t.Error("'.' should decode to null")
	}
	if p := s.Points[2]; p.Date != series.NewDate(2024, time.July, 1) || !p.Value.Valid || p.Value.Float != 23.1 {
		t.Errorf("third observation = %v", p)
	}

	res, err = p.Fetcher(provider.ModelSeriesObservations).Fetch(context.Background(), params)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if !res.Cached {
		t.Error("second fetch should be served from cache")
	}
	if atomic.LoadInt32(&hits) != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}
}

func TestObservationsNameDefaultsToSeriesID(t *testing.T) {
	srv := newMockFRED(t, nil)
	defer srv.Close()
	p := newTestProvider(t, srv)

	res, err := p.Fetcher(provider.ModelSeriesObservations).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSymbol:    "GDPC1",
		provider.ParamStartDate: "1976-01-01",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if name := res.Data.(series.Series).Name; name != "GDPC1" {
		t.Errorf("name = %s", name)
	}
}

func TestObservationsErrors(t *testing.T) {
	srv := newMockFRED(t, nil)
	defer srv.Close()
	p := newTestProvider(t, srv)
	f := p.Fetcher(provider.ModelSeriesObservations)

	_, err := f.Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "NOPE"})
	if !errors.Is(err, provider.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = f.Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "BROKEN"})
	if !errors.Is(err, series.ErrMalformedDate) {
		t.Errorf("expected ErrMalformedDate, got %v", err)
	}

	bad := New(Options{BaseURL: srv.URL + "/fred"})
	_ = bad.Init(map[string]string{"api_key": "wrong_key"})
	_, err = bad.Fetcher(provider.ModelSeriesObservations).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "GDPC1"})
	if err == nil {
		t.Fatal("expected error for bad key")
	}
	if strings.Contains(err.Error(), "wrong_key") {
		t.Errorf("error leaks api key: %v", err)
	}
	if errors.Is(err, provider.ErrNotFound) {
		t.Error("bad key should not be reported as not found")
	}
	var creds *provider.ErrInvalidCredentials
	if !errors.As(err, &creds) {
		t.Errorf("expected *ErrInvalidCredentials, got %T", err)
	}
}

func TestSeriesInfo(t *testing.T) {
	srv := newMockFRED(t, nil)
	defer srv.Close()
	p := newTestProvider(t, srv)

	res, err := p.Fetcher(provider.ModelSeriesInfo).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "GDPC1"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	info, ok := res.Data.(models.SeriesInfo)
	if !ok {
		t.Fatalf("expected models.SeriesInfo, got %T", res.Data)
	}
	if info.ID != "GDPC1" || info.Frequency != "Quarterly" || info.Popularity != 93 {
		t.Errorf("unexpected info: %+v", info)
	}
	if info.ObservationStart.Year() != 1947 || info.LastUpdated.IsZero() {
		t.Errorf("dates not parsed: %+v", info)
	}
}

func TestSearch(t *testing.T) {
	srv := newMockFRED(t, nil)
	defer srv.Close()
	p := newTestProvider(t, srv)
	f := p.Fetcher(provider.ModelSeriesSearch)

	res, err := f.Fetch(context.Background(), provider.QueryParams{provider.ParamQuery: "credit card delinquency"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	results := res.Data.([]models.SearchResult)
	if len(results) != 1 || results[0].SeriesID != "DRCCLACBS" {
		t.Errorf("unexpected results: %+v", results)
	}

	_, err = f.Fetch(context.Background(), provider.QueryParams{provider.ParamQuery: "x", provider.ParamLimit: "zero"})
	if err == nil {
		t.Error("expected error for invalid limit")
	}
}

func TestPing(t *testing.T) {
	srv := newMockFRED(t, nil)
	defer srv.Close()
	if err := newTestProvider(t, srv).Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestFetchCancelledContext(t *testing.T) {
	srv := newMockFRED(t, nil)
	defer srv.Close()
	p := newTestProvider(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Fetcher(provider.ModelSeriesObservations).Fetch(ctx, provider.QueryParams{provider.ParamSymbol: "GDPC1"})
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}

func TestParseFredDate(t *testing.T) {
	tests := []struct {
		input string
		year  int
		month int
		day   int
	}{
		{"2024-01-15", 2024, 1, 15},
		{"2023-12-31", 2023, 12, 31},
		{"2024-10-30 07:56:03-05", 2024, 10, 30},
	}
	for _, tt := range tests {
		got := parseFredDate(tt.input)
		if got.Year() != tt.year || int(got.Month()) != tt.month || got.Day() != tt.day {
			t.Errorf("parseFredDate(%q) = %v, want %d-%02d-%02d", tt.input, got, tt.year, tt.month, tt.day)
		}
	}
	if !parseFredDate("soon").IsZero() {
		t.Error("expected zero time for garbage")
	}
}
