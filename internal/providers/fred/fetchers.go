package fred

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/seenimoa/fredcycle/internal/infra"
	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/pkg/models"
)

// ---- SeriesObservations fetcher ----

type observationsFetcher struct {
	provider.BaseFetcher
	api *client
}

func newObservationsFetcher(api *client, ttl time.Duration, limiter *infra.RateLimiter) *observationsFetcher {
	return &observationsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelSeriesObservations,
			"Get FRED time series observations by series ID",
			[]string{provider.ParamSymbol}, // series_id passed as symbol
			[]string{provider.ParamStartDate, provider.ParamEndDate, provider.ParamName},
			ttl, limiter,
		),
		api: api,
	}
}

// Fetch returns the observations as a series.Series named after ParamName
// (or the series id). "." values are nulls; a malformed date fails the fetch.
func (f *observationsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	seriesID := params[provider.ParamSymbol]
	name := params[provider.ParamName]
	if name == "" {
		name = seriesID
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	var resp fredObservationsResponse
	err := f.api.get(ctx, "series/observations", params[paramAPIKey], map[string]string{
		"series_id":         seriesID,
		"observation_start": params[provider.ParamStartDate],
		"observation_end":   params[provider.ParamEndDate],
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fred series %s: %w", seriesID, err)
	}

	rows := make([]series.Observation, 0, len(resp.Observations))
	for _, o := range resp.Observations {
		rows = append(rows, series.Observation{Date: o.Date, Value: o.Value})
	}
	s, err := series.Parse(name, rows)
	if err != nil {
		return nil, fmt.Errorf("fred series %s: %w", seriesID, err)
	}

	f.CacheSet(cacheKey, s)
	return provider.NewResult(s), nil
}

// ---- SeriesInfo fetcher ----

type seriesInfoFetcher struct {
	provider.BaseFetcher
	api *client
}

func newSeriesInfoFetcher(api *client, ttl time.Duration, limiter *infra.RateLimiter) *seriesInfoFetcher {
	return &seriesInfoFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelSeriesInfo,
			"Get FRED series metadata by series ID",
			[]string{provider.ParamSymbol},
			nil,
			ttl, limiter,
		),
		api: api,
	}
}

func (f *seriesInfoFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	seriesID := params[provider.ParamSymbol]

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	var resp fredSeriesResponse
	err := f.api.get(ctx, "series", params[paramAPIKey], map[string]string{"series_id": seriesID}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fred series info %s: %w", seriesID, err)
	}
	if len(resp.Seriess) == 0 {
		return nil, fmt.Errorf("fred series info %s: %w", seriesID, provider.ErrNotFound)
	}

	s := resp.Seriess[0]
	info := models.SeriesInfo{
		ID:                 s.ID,
		Title:              s.Title,
		Frequency:          s.Frequency,
		Units:              s.Units,
		SeasonalAdjustment: s.SeasonalAdjustment,
		ObservationStart:   parseFredDate(s.ObservationStart),
		ObservationEnd:     parseFredDate(s.ObservationEnd),
		LastUpdated:        parseFredDate(s.LastUpdated),
		Popularity:         s.Popularity,
		Notes:              s.Notes,
	}

	f.CacheSet(cacheKey, info)
	return provider.NewResult(info), nil
}

// ---- SeriesSearch fetcher ----

const defaultSearchLimit = 25

type searchFetcher struct {
	provider.BaseFetcher
	api *client
}

func newSearchFetcher(api *client, ttl time.Duration, limiter *infra.RateLimiter) *searchFetcher {
	return &searchFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelSeriesSearch,
			"Search FRED for economic data series",
			[]string{provider.ParamQuery},
			[]string{provider.ParamLimit},
			ttl, limiter,
		),
		api: api,
	}
}

func (f *searchFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	query := params[provider.ParamQuery]

	limit := defaultSearchLimit
	if lim := params[provider.ParamLimit]; lim != "" {
		n, err := strconv.Atoi(lim)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("fred search: invalid limit %q", lim)
		}
		limit = n
	}

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	var resp fredSeriesResponse
	err := f.api.get(ctx, "series/search", params[paramAPIKey], map[string]string{
		"search_text": query,
		"limit":       strconv.Itoa(limit),
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("fred search: %w", err)
	}

	results := make([]models.SearchResult, 0, len(resp.Seriess))
	for _, s := range resp.Seriess {
		results = append(results, models.SearchResult{
			SeriesID:           s.ID,
			Title:              s.Title,
			Frequency:          s.Frequency,
			Units:              s.Units,
			SeasonalAdjustment: s.SeasonalAdjustment,
			ObservationStart:   parseFredDate(s.ObservationStart),
			ObservationEnd:     parseFredDate(s.ObservationEnd),
			Popularity:         s.Popularity,
		})
	}

	f.CacheSet(cacheKey, results)
	return provider.NewResult(results), nil
}
