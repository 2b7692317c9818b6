// Package analysis ties the loader, the feature pipeline and the regime
// statistics together into one snapshot that the CLI, the report and the
// API share.
package analysis

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/seenimoa/fredcycle/internal/catalog"
	"github.com/seenimoa/fredcycle/internal/infra"
	"github.com/seenimoa/fredcycle/internal/loader"
	"github.com/seenimoa/fredcycle/internal/metrics"
	"github.com/seenimoa/fredcycle/internal/pipeline"
	"github.com/seenimoa/fredcycle/pkg/models"
)

// Snapshot is one assembled table together with the load summaries it was
// built from. Treat it as read-only; it may be shared between requests.
type Snapshot struct {
	Table    *pipeline.Table
	Series   []models.SeriesSummary
	Pipeline *pipeline.Pipeline
	Catalog  *catalog.Catalog
	BuiltAt  time.Time
}

// Loader is the part of loader.Loader the service needs.
type Loader interface {
	Load(ctx context.Context) (*loader.Result, error)
}

// Service builds snapshots and keeps the latest one for ttl.
type Service struct {
	cat     *catalog.Catalog
	pipe    *pipeline.Pipeline
	loader  Loader
	metrics *metrics.Metrics

	cache *infra.Cache[*Snapshot]
	group singleflight.Group

	// buildTimeout bounds a shared build, which outlives the request that started it.
	buildTimeout time.Duration
}

const snapshotKey = "snapshot"

// DefaultBuildTimeout bounds one shared snapshot build.
const DefaultBuildTimeout = 2 * time.Minute

// NewService creates a service. A non-positive ttl rebuilds on every Snapshot call.
func NewService(cat *catalog.Catalog, pipe *pipeline.Pipeline, ld Loader, m *metrics.Metrics, ttl time.Duration) *Service {
	return &Service{
		cat:     cat,
		pipe:    pipe,
		loader:  ld,
		metrics: m,
		cache:   infra.NewCache[*Snapshot](ttl),

		buildTimeout: DefaultBuildTimeout,
	}
}

// Catalog returns the catalog the service was built with.
func (s *Service) Catalog() *catalog.Catalog { return s.cat }

// Pipeline returns the configured pipeline.
func (s *Service) Pipeline() *pipeline.Pipeline { return s.pipe }

// Build loads every indicator and runs the pipeline.
func (s *Service) Build(ctx context.Context) (*Snapshot, error) {
	log := infra.Logger(ctx)

	res, err := s.loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	table, err := s.pipe.Run(res.Series)
	s.metrics.ObservePipeline(tableLen(table), time.Since(start), err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Int("rows", table.Len()).
		Int("columns", len(table.Columns())).
		Dur("took", time.Since(start)).
		Msg("table assembled")

	snap := &Snapshot{
		Table:    table,
		Series:   res.Summaries,
		Pipeline: s.pipe,
		Catalog:  s.cat,
		BuiltAt:  time.Now(),
	}
	return snap, nil
}

// Snapshot returns the cached snapshot, building one when it is missing or
// expired. Concurrent callers share a single build, which keeps the
// first caller's values but not its cancellation; a caller whose ctx ends
// stops waiting without aborting the build for the others.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap, ok := s.cache.Get(snapshotKey); ok {
		return snap, nil
	}
	ch := s.group.DoChan(snapshotKey, func() (any, error) {
		bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		snap, err := s.Build(bctx)
		if err != nil {
			return nil, err
		}
		s.cache.Set(snapshotKey, snap)
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Invalidate drops the cached snapshot.
func (s *Service) Invalidate() {
	s.cache.Invalidate(snapshotKey)
}

func tableLen(t *pipeline.Table) int {
	if t == nil {
		return 0
	}
	return t.Len()
}
