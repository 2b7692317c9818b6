// Package store persists fetched indicator series so later runs can skip the
// network or run offline.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/seenimoa/fredcycle/internal/series"
)

// ErrNotFound is returned by LoadSeries for a series that was never saved.
var ErrNotFound = errors.New("series not stored")

// Store saves and loads whole series keyed by FRED series id. SaveSeries
// replaces any earlier copy of the series.
type Store interface {
	SaveSeries(ctx context.Context, seriesID string, s series.Series, fetchedAt time.Time) error
	LoadSeries(ctx context.Context, seriesID string) (series.Series, time.Time, error)
	ListSeries(ctx context.Context) ([]Entry, error)
	Close() error
}

// Entry describes one stored series.
type Entry struct {
	SeriesID     string    `json:"series_id"`
	Observations int       `json:"observations"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// NopStore keeps nothing. It is used when no store path is configured.
type NopStore struct{}

func (s *NopStore) SaveSeries(ctx context.Context, seriesID string, ser series.Series, fetchedAt time.Time) error {
	return nil
}

func (s *NopStore) LoadSeries(ctx context.Context, seriesID string) (series.Series, time.Time, error) {
	return series.Series{}, time.Time{}, ErrNotFound
}

func (s *NopStore) ListSeries(ctx context.Context) ([]Entry, error) {
	return nil, nil
}

func (s *NopStore) Close() error {
	return nil
}
