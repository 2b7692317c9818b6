// Package offline serves series observations from the local observation
// store. It is registered after the FRED provider so the registry falls back
// to stored data when FRED is unreachable, and it can be selected directly
// to run without network access.
package offline

import (
	"context"
	"errors"
	"fmt"

	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/store"
)

// Name is the registry name of the provider.
const Name = "store"

// Provider implements provider.Provider over a store.Store.
type Provider struct {
	provider.BaseProvider
	st store.Store
}

// New creates the provider. It needs no credentials.
func New(st store.Store) *Provider {
	if st == nil {
		st = &store.NopStore{}
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			Name,
			"Locally stored FRED observations",
			"",
			nil,
		),
		st: st,
	}
	p.RegisterFetcher(&observationsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelSeriesObservations,
			"Read stored observations by series ID",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamStartDate, provider.ParamEndDate, provider.ParamName},
			0, nil,
		),
		st: st,
	})
	return p
}

// Ping checks that the store can be read.
func (p *Provider) Ping(ctx context.Context) error {
	_, err := p.st.ListSeries(ctx)
	return err
}

type observationsFetcher struct {
	provider.BaseFetcher
	st store.Store
}

// Fetch returns the stored series. FetchedAt is the time the series was
// originally fetched from FRED, so callers can judge staleness.
func (f *observationsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	seriesID := params[provider.ParamSymbol]

	s, fetchedAt, err := f.st.LoadSeries(ctx, seriesID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("stored series %s: %w: %w", seriesID, provider.ErrNotFound, err)
	}
	if err != nil {
		return nil, fmt.Errorf("stored series %s: %w", seriesID, err)
	}

	if v := params[provider.ParamStartDate]; v != "" {
		start, err := series.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("stored series %s: start: %w", seriesID, err)
		}
		s = s.Since(start)
	}
	if v := params[provider.ParamEndDate]; v != "" {
		end, err := series.ParseDate(v)
		if err != nil {
			return nil, fmt.Errorf("stored series %s: end: %w", seriesID, err)
		}
		s = s.Until(end)
	}
	if name := params[provider.ParamName]; name != "" {
		s = s.Rename(name)
	}

	return &provider.FetchResult{Data: s, FetchedAt: fetchedAt, Cached: true}, nil
}
