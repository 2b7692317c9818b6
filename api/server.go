// Package api provides the HTTP server for fredcycle.
//
// It exposes the indicator catalog, the assembled analysis table, regime
// statistics and the rendered report, plus Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/seenimoa/fredcycle/internal/analysis"
	"github.com/seenimoa/fredcycle/internal/catalog"
	"github.com/seenimoa/fredcycle/internal/config"
	"github.com/seenimoa/fredcycle/internal/export"
	"github.com/seenimoa/fredcycle/internal/metrics"
	"github.com/seenimoa/fredcycle/internal/pipeline"
	"github.com/seenimoa/fredcycle/internal/provider"
	"github.com/seenimoa/fredcycle/internal/report"
	"github.com/seenimoa/fredcycle/internal/series"
	"github.com/seenimoa/fredcycle/internal/stats"
)

// Version is reported by /health. The CLI sets it at startup.
var Version = "dev"

// Analyzer is the part of analysis.Service the server uses.
type Analyzer interface {
	Snapshot(ctx context.Context) (*analysis.Snapshot, error)
	Catalog() *catalog.Catalog
	Invalidate()
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	svc     Analyzer
	gen     *report.Generator
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewServer creates a configured API server with all routes and middleware.
// A nil metrics disables /metrics.
func NewServer(cfg *config.Config, svc Analyzer, gen *report.Generator, m *metrics.Metrics, log zerolog.Logger) *Server {
	srv := &Server{
		cfg:     cfg,
		svc:     svc,
		gen:     gen,
		metrics: m,
		log:     log,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	s.log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(150 * time.Second))

	origins := []string{"*"}
	if s.cfg != nil && len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/catalog", s.handleCatalog)
		r.Get("/series", s.handleSeries)
		r.Get("/table", s.handleTable)
		r.Get("/table/export", s.handleTableExport)
		r.Get("/stats", s.handleStats)
		r.Get("/stats/{op}", s.handleReduce)
		r.Get("/report", s.handleReport)
		r.Post("/refresh", s.handleRefresh)

		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// ============================================================
// Request/Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CatalogResponse is the body of GET /api/v1/catalog.
type CatalogResponse struct {
	Indicators []catalog.Indicator `json:"indicators"`
	Periods    []PeriodInfo        `json:"periods"`
	Default    string              `json:"default_period"`
}

// PeriodInfo describes one period interval.
type PeriodInfo struct {
	Label string       `json:"label"`
	Start series.Date  `json:"start"`
	End   *series.Date `json:"end,omitempty"`
	Color string       `json:"color"`
}

// TableResponse is the body of GET /api/v1/table.
type TableResponse struct {
	Columns      []string       `json:"columns"`
	LabelColumns []string       `json:"label_columns"`
	Rows         []pipeline.Row `json:"rows"`
	BuiltAt      time.Time      `json:"built_at"`
}

// StatsResponse is the body of GET /api/v1/stats.
type StatsResponse struct {
	Horizons []int                   `json:"horizons"`
	Regimes  []analysis.RegimeStats  `json:"regimes"`
	Points   []analysis.QuarterPoint `json:"points,omitempty"`
}

// ReduceResponse is the body of GET /api/v1/stats/{op}.
type ReduceResponse struct {
	Op     string       `json:"op"`
	X      string       `json:"x"`
	Y      string       `json:"y,omitempty"`
	Period string       `json:"period,omitempty"`
	N      int          `json:"n"`
	Value  series.Value `json:"value"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": Version,
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	cat := s.svc.Catalog()
	resp := CatalogResponse{
		Indicators: cat.Indicators(),
		Default:    cat.Periods().Default(),
	}
	for _, iv := range cat.Periods().Intervals() {
		resp.Periods = append(resp.Periods, PeriodInfo{Label: iv.Label, Start: iv.Start, End: iv.End, Color: cat.Color(iv.Label)})
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: snap.Series})
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	table, err := tableFor(snap, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: TableResponse{
			Columns:      table.Columns(),
			LabelColumns: table.LabelColumns(),
			Rows:         table.Rows(),
			BuiltAt:      snap.BuiltAt,
		},
	})
}

func (s *Server) handleTableExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(defaultString(r.URL.Query().Get("format"), string(export.FormatCSV)))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	table, err := tableFor(snap, r.URL.Query().Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	contentType := "text/csv; charset=utf-8"
	if format == export.FormatParquet {
		contentType = "application/vnd.apache.parquet"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="credit_cycle.%s"`, format))
	if err := export.Write(w, table, format); err != nil {
		s.log.Error().Err(err).Str("format", string(format)).Msg("table export failed")
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	regimes, points, err := snap.Regimes()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := StatsResponse{
		Horizons: analysis.ColumnsFor(snap.Pipeline).Horizons,
		Regimes:  regimes,
	}
	if r.URL.Query().Get("points") == "true" {
		resp.Points = points
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

// handleReduce applies one statistic to table columns:
// /stats/mean?x=quarterly_spread[&period=Post-Crisis]
// /stats/correlation?x=quarterly_spread&y=delinquency_rate_loans_fwd_12m
func (s *Server) handleReduce(w http.ResponseWriter, r *http.Request) {
	op, err := stats.ParseOp(chi.URLParam(r, "op"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	xName, yName, period := q.Get("x"), q.Get("y"), q.Get("period")
	if xName == "" {
		writeError(w, http.StatusBadRequest, "x is required")
		return
	}
	if op.Paired() && yName == "" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s needs y", op))
		return
	}

	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	xs, ok := snap.Table.Column(xName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown column %q", xName))
		return
	}
	var ys []series.Value
	if op.Paired() {
		if ys, ok = snap.Table.Column(yName); !ok {
			writeError(w, http.StatusNotFound, fmt.Sprintf("unknown column %q", yName))
			return
		}
	}

	if period != "" {
		labels, _ := snap.Table.Labels(snap.Pipeline.Config().PeriodColumn)
		xs, ys = filterByLabel(xs, ys, labels, period)
	}

	var n int
	if op.Paired() {
		px, _ := stats.Pairs(xs, ys)
		n = len(px)
	} else {
		n = countValid(xs)
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ReduceResponse{
			Op:     op.String(),
			X:      xName,
			Y:      yName,
			Period: period,
			N:      n,
			Value:  stats.Reduce(op, xs, ys),
		},
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("format") == "text" {
		text, err := s.gen.Text(snap)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
		return
	}
	html, err := s.gen.HTML(snap)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(html))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.svc.Invalidate()
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"rows":     snap.Table.Len(),
			"built_at": snap.BuiltAt,
		},
	})
}

// ============================================================
// Helpers
// ============================================================

// snapshot fetches the current snapshot, writing the error response on failure.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*analysis.Snapshot, bool) {
	snap, err := s.svc.Snapshot(r.Context())
	if err != nil {
		hlog := s.log.With().Str("path", r.URL.Path).Logger()
		hlog.Error().Err(err).Msg("building snapshot failed")
		writeError(w, statusFor(err), err.Error())
		return nil, false
	}
	return snap, true
}

// statusFor maps load errors onto HTTP statuses.
func statusFor(err error) int {
	var creds *provider.ErrInvalidCredentials
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &creds):
		return http.StatusBadGateway
	case errors.Is(err, provider.ErrNotFound), errors.Is(err, pipeline.ErrMissingColumn):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// tableFor returns the snapshot table, or a truncated copy when start is set.
func tableFor(snap *analysis.Snapshot, start string) (*pipeline.Table, error) {
	if strings.TrimSpace(start) == "" {
		return snap.Table, nil
	}
	d, err := series.ParseDate(start)
	if err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	t := snap.Table.Clone()
	t.Truncate(d)
	return t, nil
}

func filterByLabel(xs, ys []series.Value, labels []string, want string) ([]series.Value, []series.Value) {
	var fx, fy []series.Value
	for i := range xs {
		if i >= len(labels) || labels[i] != want {
			continue
		}
		fx = append(fx, xs[i])
		if ys != nil {
			fy = append(fy, ys[i])
		}
	}
	return fx, fy
}

func countValid(vs []series.Value) int {
	n := 0
	for _, v := range vs {
		if v.Valid {
			n++
		}
	}
	return n
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
