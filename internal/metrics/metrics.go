// Package metrics defines the Prometheus collectors for series loading,
// pipeline runs and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fredcycle"

// buckets for seconds resolutions of histograms
var buckets = []float64{.05, .1, .25, .5, 1, 2.5, 5, 10}

// Metrics owns a registry and every collector registered on it. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	SeriesFetches      *prometheus.CounterVec
	SeriesFetchSeconds *prometheus.HistogramVec
	PipelineRuns       *prometheus.CounterVec
	PipelineSeconds    prometheus.Histogram
	TableRows          prometheus.Gauge
	HTTPRequests       *prometheus.CounterVec
	HTTPSeconds        *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry, along with the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		SeriesFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_fetch_total",
			Help:      "Series loads by source (fred, store) and result.",
		}, []string{"source", "result"}),
		SeriesFetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "series_fetch_duration_seconds",
			Help:      "Time taken to load one series.",
			Buckets:   buckets,
		}, []string{"source"}),
		PipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Feature pipeline runs by result.",
		}, []string{"result"}),
		PipelineSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Time taken to build the assembled table.",
			Buckets:   buckets,
		}),
		TableRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_rows",
			Help:      "Rows in the most recently assembled table.",
		}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by route pattern and status code.",
		}, []string{"route", "code"}),
		HTTPSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "API request latency by route pattern.",
			Buckets:   buckets,
		}, []string{"route"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SeriesFetches,
		m.SeriesFetchSeconds,
		m.PipelineRuns,
		m.PipelineSeconds,
		m.TableRows,
		m.HTTPRequests,
		m.HTTPSeconds,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveFetch records one series load.
func (m *Metrics) ObserveFetch(source string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.SeriesFetches.WithLabelValues(source, result(err)).Inc()
	m.SeriesFetchSeconds.WithLabelValues(source).Observe(d.Seconds())
}

// ObservePipeline records one pipeline run and, on success, the table size.
func (m *Metrics) ObservePipeline(rows int, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.PipelineRuns.WithLabelValues(result(err)).Inc()
	m.PipelineSeconds.Observe(d.Seconds())
	if err == nil {
		m.TableRows.Set(float64(rows))
	}
}

// ObserveRequest records one API request.
func (m *Metrics) ObserveRequest(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPSeconds.WithLabelValues(route).Observe(d.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
