package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/seenimoa/fredcycle/internal/analysis"
	"github.com/seenimoa/fredcycle/internal/catalog"
	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/infra"
	"github.com/seenimoa/fredcycle/internal/loader"
	"github.com/seenimoa/fredcycle/internal/metrics"
	"github.com/seenimoa/fredcycle/internal/pipeline"
	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/providers"
	"github.com/seenimoa/fredcycle/internal/store"
	"github.com/seenimoa/fredcycle/internal/store/sqlite"
)

// app holds the components every command shares.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	store   store.Store
	reg     *provider.Registry
	cat     *catalog.Catalog
	pipe    *pipeline.Pipeline
	metrics *metrics.Metrics
	loader  *loader.Loader
	svc     *analysis.Service
}

// newApp wires the store, provider registry, catalog, pipeline, loader and
// analysis service from cfg.
func newApp(cfg *config.Config) (*app, error) {
	lg, err := infra.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	var st store.Store = &store.NopStore{}
	if cfg.Store.Path != "" {
		s, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
		st = s
	}

	reg := provider.NewRegistry()
	if err := providers.RegisterAll(reg, cfg.FRED, st); err != nil {
		st.Close()
		return nil, fmt.Errorf("registering providers: %w", err)
	}
	if cfg.FRED.APIKey == "" {
		lg.Warn().Msg("no FRED API key configured; serving stored observations only")
	}

	cat, err := catalog.FromConfig(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	pipe, err := cat.Pipeline(cfg.Pipeline)
	if err != nil {
		st.Close()
		return nil, err
	}

	m := metrics.New()
	ld := loader.New(reg, st, cat, loader.Options{
		ObservationStart: cfg.FRED.ObservationStart,
		MaxAge:           time.Duration(cfg.Store.MaxAge) * time.Hour,
		Concurrency:      cfg.Analysis.ConcurrentFetches,
		Offline:          cfg.Analysis.Offline,
	}, m)
	svc := analysis.NewService(cat, pipe, ld, m, snapshotTTL(cfg))

	return &app{
		cfg:     cfg,
		log:     lg,
		store:   st,
		reg:     reg,
		cat:     cat,
		pipe:    pipe,
		metrics: m,
		loader:  ld,
		svc:     svc,
	}, nil
}

// snapshotTTL keeps a served snapshot as long as stored series stay fresh,
// with an hour when the store is disabled.
func snapshotTTL(cfg *config.Config) time.Duration {
	if cfg.Store.Path != "" && cfg.Store.MaxAge > 0 {
		return time.Duration(cfg.Store.MaxAge) * time.Hour
	}
	return time.Hour
}

func (a *app) close() {
	if a == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("closing store")
	}
}
