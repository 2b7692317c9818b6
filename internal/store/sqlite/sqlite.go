// Package sqlite is the on-disk observation store, backed by modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/store"
)

const timeLayout = time.RFC3339Nano

type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveSeries replaces the stored observations of seriesID in one transaction.
func (s *Store) SaveSeries(ctx context.Context, seriesID string, ser series.Series, fetchedAt time.Time) (err error) {
	if seriesID == "" {
		return fmt.Errorf("sqlite: series id is required")
	}
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM observations WHERE series_id = ?`, seriesID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO observations (series_id, obs_date, value)
		VALUES (?, ?, ?)
		ON CONFLICT(series_id, obs_date) DO UPDATE SET value = excluded.value
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, p := range ser.Points {
		var value any
		if p.Value.Valid {
			value = p.Value.Float
		}
		if _, err = stmt.ExecContext(ctx, seriesID, p.Date.String(), value); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO series_fetches (series_id, fetched_at, observations)
		VALUES (?, ?, ?)
		ON CONFLICT(series_id) DO UPDATE SET
			fetched_at = excluded.fetched_at,
			observations = excluded.observations
	`, seriesID, fetchedAt.UTC().Format(timeLayout), ser.Len())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// LoadSeries returns the stored series, named seriesID, and when it was fetched.
func (s *Store) LoadSeries(ctx context.Context, seriesID string) (series.Series, time.Time, error) {
	var fetched string
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM series_fetches WHERE series_id = ?`, seriesID,
	).Scan(&fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return series.Series{}, time.Time{}, fmt.Errorf("%s: %w", seriesID, store.ErrNotFound)
	}
	if err != nil {
		return series.Series{}, time.Time{}, err
	}
	fetchedAt, err := time.Parse(timeLayout, fetched)
	if err != nil {
		return series.Series{}, time.Time{}, fmt.Errorf("sqlite: fetched_at for %s: %w", seriesID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT obs_date, value FROM observations WHERE series_id = ? ORDER BY obs_date`, seriesID)
	if err != nil {
		return series.Series{}, time.Time{}, err
	}
	defer rows.Close()

	var points []series.Point
	for rows.Next() {
		var (
			date  string
			value sql.NullFloat64
		)
		if err := rows.Scan(&date, &value); err != nil {
			return series.Series{}, time.Time{}, err
		}
		d, err := series.ParseDate(date)
		if err != nil {
			return series.Series{}, time.Time{}, fmt.Errorf("sqlite: %s: %w", seriesID, err)
		}
		v := series.Null()
		if value.Valid {
			v = series.Some(value.Float64)
		}
		points = append(points, series.Point{Date: d, Value: v})
	}
	if err := rows.Err(); err != nil {
		return series.Series{}, time.Time{}, err
	}

	return series.New(seriesID, points...), fetchedAt, nil
}

// ListSeries returns every stored series ordered by id.
func (s *Store) ListSeries(ctx context.Context) ([]store.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT series_id, observations, fetched_at FROM series_fetches ORDER BY series_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []store.Entry
	for rows.Next() {
		var (
			e       store.Entry
			fetched string
		)
		if err := rows.Scan(&e.SeriesID, &e.Observations, &fetched); err != nil {
			return nil, err
		}
		if e.FetchedAt, err = time.Parse(timeLayout, fetched); err != nil {
			return nil, fmt.Errorf("sqlite: fetched_at for %s: %w", e.SeriesID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Store) migrate() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS series_fetches (
			series_id TEXT PRIMARY KEY,
			fetched_at TEXT NOT NULL,
			observations INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS observations (
			series_id TEXT NOT NULL,
			obs_date TEXT NOT NULL,
			value REAL,
			PRIMARY KEY (series_id, obs_date)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}
