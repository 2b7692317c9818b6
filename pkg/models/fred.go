// Package models holds the data types returned by providers and served by the API.
package models

import "time"

// SeriesInfo is the metadata FRED publishes for one series.
type SeriesInfo struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Frequency          string    `json:"frequency,omitempty"`
	Units              string    `json:"units,omitempty"`
	SeasonalAdjustment string    `json:"seasonal_adjustment,omitempty"`
	ObservationStart   time.Time `json:"observation_start,omitempty"`
	ObservationEnd     time.Time `json:"observation_end,omitempty"`
	LastUpdated        time.Time `json:"last_updated,omitempty"`
	Popularity         int       `json:"popularity,omitempty"`
	Notes              string    `json:"notes,omitempty"`
}

// SearchResult represents a FRED series search hit.
type SearchResult struct {
	SeriesID           string    `json:"series_id"`
	Title              string    `json:"title"`
	Frequency          string    `json:"frequency,omitempty"`
	Units              string    `json:"units,omitempty"`
	SeasonalAdjustment string    `json:"seasonal_adjustment,omitempty"`
	ObservationStart   time.Time `json:"observation_start,omitempty"`
	ObservationEnd     time.Time `json:"observation_end,omitempty"`
	Popularity         int       `json:"popularity,omitempty"`
}

// SeriesSummary describes one loaded indicator: where it came from and what it covers.
type SeriesSummary struct {
	Name         string    `json:"name"`
	SeriesID     string    `json:"series_id"`
	Source       string    `json:"source"`
	Observations int       `json:"observations"`
	Valid        int       `json:"valid"`
	First        string    `json:"first,omitempty"`
	Last         string    `json:"last,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
}
