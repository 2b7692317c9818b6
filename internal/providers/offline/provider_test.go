package offline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/store"
	"github.com/seenimoa/fredcycle/internal/store/sqlite"
)

func newStoreWithGDP(t *testing.T) (store.Store, time.Time) {
	t.Helper()
	st, err := sqlite.New(filepath.Join(t.TempDir(), "obs.db"))
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fetched := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := series.New("GDPC1",
		series.Point{Date: series.MustParseDate("2019-10-01"), Value: series.Some(1)},
		series.Point{Date: series.MustParseDate("2020-01-01"), Value: series.Some(2)},
		series.Point{Date: series.MustParseDate("2020-04-01"), Value: series.Some(3)},
	)
	if err := st.SaveSeries(context.Background(), "GDPC1", s, fetched); err != nil {
		t.Fatalf("SaveSeries: %v", err)
	}
	return st, fetched
}

func TestProviderInfo(t *testing.T) {
	p := New(nil)
	if p.Info().Name != Name {
		t.Errorf("name = %s", p.Info().Name)
	}
	if err := p.Init(nil); err != nil {
		t.Errorf("Init should need no credentials: %v", err)
	}
	models := p.SupportedModels()
	if len(models) != 1 || models[0] != provider.ModelSeriesObservations {
		t.Errorf("models = %v", models)
	}
	if err := p.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestFetchStored(t *testing.T) {
	st, fetched := newStoreWithGDP(t)
	p := New(st)

	tests := []struct {
		name   string
		params provider.QueryParams
		want   int
	}{
		{"all", provider.QueryParams{provider.ParamSymbol: "GDPC1"}, 3},
		{"since", provider.QueryParams{provider.ParamSymbol: "GDPC1", provider.ParamStartDate: "2020-01-01"}, 2},
		{"until", provider.QueryParams{provider.ParamSymbol: "GDPC1", provider.ParamEndDate: "2020-01-01"}, 2},
		{"window", provider.QueryParams{provider.ParamSymbol: "GDPC1", provider.ParamStartDate: "2020-01-01", provider.ParamEndDate: "2020-01-01"}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := p.Fetcher(provider.ModelSeriesObservations).Fetch(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			s := res.Data.(series.Series)
			if s.Len() != tt.want {
				t.Errorf("len = %d, want %d", s.Len(), tt.want)
			}
			if !res.Cached || !res.FetchedAt.Equal(fetched) {
				t.Errorf("result should carry the stored fetch time, got %v cached=%v", res.FetchedAt, res.Cached)
			}
		})
	}
}

func TestFetchRenames(t *testing.T) {
	st, _ := newStoreWithGDP(t)
	res, err := New(st).Fetcher(provider.ModelSeriesObservations).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSymbol: "GDPC1",
		provider.ParamName:   "gdp",
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if name := res.Data.(series.Series).Name; name != "gdp" {
		t.Errorf("name = %s", name)
	}
}

func TestFetchErrors(t *testing.T) {
	st, _ := newStoreWithGDP(t)
	f := New(st).Fetcher(provider.ModelSeriesObservations)

	_, err := f.Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "UNRATE"})
	if !errors.Is(err, provider.ErrNotFound) || !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	_, err = f.Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "GDPC1", provider.ParamStartDate: "2020/01/01"})
	if !errors.Is(err, series.ErrMalformedDate) {
		t.Errorf("expected ErrMalformedDate, got %v", err)
	}
}

func TestRegistryFallsBackToStore(t *testing.T) {
	st, _ := newStoreWithGDP(t)
	reg := provider.NewRegistry()

	down := provider.NewBaseProvider("fred", "unreachable", "", nil)
	down.RegisterFetcher(&failing{provider.NewBaseFetcher(provider.ModelSeriesObservations, "down", []string{provider.ParamSymbol}, nil)})
	if err := reg.Register(&down); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register(New(st)); err != nil {
		t.Fatal(err)
	}

	res, err := reg.FetchWithFallback(context.Background(), provider.ModelSeriesObservations, provider.QueryParams{provider.ParamSymbol: "GDPC1"})
	if err != nil {
		t.Fatalf("FetchWithFallback: %v", err)
	}
	if res.Provider != Name {
		t.Errorf("provider = %s", res.Provider)
	}
}

type failing struct{ provider.BaseFetcher }

func (failing) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	return nil, errors.New("dial tcp: connection refused")
}
