// Package loader fetches every catalog indicator and returns the raw series
// the feature pipeline joins.
package loader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/fredcycle/internal/catalog"
	"github.com/seenimoa/fredcycle/internal/infra"
	"github.com/seenimoa/fredcycle/internal/metrics"
	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/providers/offline"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/store"
	"github.com/seenimoa/fredcycle/pkg/models"
)

// Options controls how series are loaded.
type Options struct {
	// ObservationStart is passed to FRED as observation_start (YYYY-MM-DD).
	ObservationStart string
	// MaxAge is how long a stored series is served without refetching.
	// Zero always asks the providers first.
	MaxAge time.Duration
	// Concurrency bounds in-flight fetches; values below 1 mean 1.
	Concurrency int
	// Offline reads the store only.
	Offline bool
}

// Loader loads indicator series through the provider registry, keeping the
// observation store current with every successful FRED fetch.
type Loader struct {
	reg     *provider.Registry
	st      store.Store
	cat     *catalog.Catalog
	opts    Options
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates a loader. A nil store disables persistence; nil metrics record nothing.
func New(reg *provider.Registry, st store.Store, cat *catalog.Catalog, opts Options, m *metrics.Metrics) *Loader {
	if st == nil {
		st = &store.NopStore{}
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Loader{reg: reg, st: st, cat: cat, opts: opts, metrics: m, now: time.Now}
}

// Result holds the loaded series keyed by indicator name, plus one summary
// per indicator in catalog order.
type Result struct {
	Series    map[string]series.Series
	Summaries []models.SeriesSummary
}

// Load fetches every catalog indicator concurrently. The first failure
// cancels the remaining fetches and is returned.
func (l *Loader) Load(ctx context.Context) (*Result, error) {
	indicators := l.cat.Indicators()
	loaded := make([]series.Series, len(indicators))
	summaries := make([]models.SeriesSummary, len(indicators))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.opts.Concurrency)
	for i, ind := range indicators {
		i, ind := i, ind
		g.Go(func() error {
			s, sum, err := l.LoadOne(gctx, ind)
			if err != nil {
				return err
			}
			loaded[i] = s
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	res := &Result{Series: make(map[string]series.Series, len(loaded)), Summaries: summaries}
	for _, s := range loaded {
		res.Series[s.Name] = s
	}
	return res, nil
}

// LoadOne loads a single indicator, named after the indicator.
func (l *Loader) LoadOne(ctx context.Context, ind catalog.Indicator) (series.Series, models.SeriesSummary, error) {
	log := infra.Logger(ctx).With().Str("series", ind.ID).Str("name", ind.Name).Logger()
	start := time.Now()

	if s, fetchedAt, ok := l.fresh(ctx, ind); ok {
		l.metrics.ObserveFetch(offline.Name, time.Since(start), nil)
		log.Debug().Int("rows", s.Len()).Time("fetched_at", fetchedAt).Msg("series served from store")
		return s, summarize(ind, s, offline.Name, fetchedAt), nil
	}

	params := provider.QueryParams{
		provider.ParamSymbol: ind.ID,
		provider.ParamName:   ind.Name,
	}
	if l.opts.ObservationStart != "" {
		params[provider.ParamStartDate] = l.opts.ObservationStart
	}
	fetch := l.reg.FetchWithFallback
	if l.opts.Offline {
		params[provider.ParamProvider] = offline.Name
		fetch = l.reg.Fetch
	}

	res, err := fetch(ctx, provider.ModelSeriesObservations, params)
	if err != nil {
		l.metrics.ObserveFetch("none", time.Since(start), err)
		return series.Series{}, models.SeriesSummary{}, fmt.Errorf("load %s (%s): %w", ind.Name, ind.ID, err)
	}
	l.metrics.ObserveFetch(res.Provider, time.Since(start), nil)

	s, ok := res.Data.(series.Series)
	if !ok {
		return series.Series{}, models.SeriesSummary{}, fmt.Errorf("load %s: provider %s returned %T", ind.Name, res.Provider, res.Data)
	}
	s = s.Rename(ind.Name)

	if res.Provider != offline.Name && !res.Cached {
		if err := l.st.SaveSeries(ctx, ind.ID, s, res.FetchedAt); err != nil {
			log.Warn().Err(err).Msg("saving series to store failed")
		}
	}
	if res.Provider == offline.Name && !l.opts.Offline {
		log.Warn().Time("fetched_at", res.FetchedAt).Msg("serving stale stored series")
	}

	log.Info().Str("source", res.Provider).Int("rows", s.Len()).Int("valid", s.Valid()).Msg("series loaded")
	return s, summarize(ind, s, res.Provider, res.FetchedAt), nil
}

// fresh returns the stored copy of ind when it is younger than MaxAge.
func (l *Loader) fresh(ctx context.Context, ind catalog.Indicator) (series.Series, time.Time, bool) {
	if l.opts.Offline || l.opts.MaxAge <= 0 {
		return series.Series{}, time.Time{}, false
	}
	s, fetchedAt, err := l.st.LoadSeries(ctx, ind.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			infra.Logger(ctx).Warn().Err(err).Str("series", ind.ID).Msg("reading store failed")
		}
		return series.Series{}, time.Time{}, false
	}
	if l.now().Sub(fetchedAt) >= l.opts.MaxAge {
		return series.Series{}, time.Time{}, false
	}
	if l.opts.ObservationStart != "" {
		if d, err := series.ParseDate(l.opts.ObservationStart); err == nil {
			s = s.Since(d)
		}
	}
	return s.Rename(ind.Name), fetchedAt, true
}

func summarize(ind catalog.Indicator, s series.Series, source string, fetchedAt time.Time) models.SeriesSummary {
	sum := models.SeriesSummary{
		Name:         ind.Name,
		SeriesID:     ind.ID,
		Source:       source,
		Observations: s.Len(),
		Valid:        s.Valid(),
		FetchedAt:    fetchedAt,
	}
	if first, last, ok := s.Span(); ok {
		sum.First = first.String()
		sum.Last = last.String()
	}
	return sum
}
