package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFetch(t *testing.T) {
	m := New()
	m.ObserveFetch("fred", 20*time.Millisecond, nil)
	m.ObserveFetch("fred", time.Millisecond, errors.New("boom"))
	m.ObserveFetch("store", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesFetches.WithLabelValues("fred", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesFetches.WithLabelValues("fred", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SeriesFetches.WithLabelValues("store", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.SeriesFetchSeconds))
}

func TestObservePipeline(t *testing.T) {
	m := New()
	m.ObservePipeline(120, time.Millisecond, nil)
	m.ObservePipeline(0, time.Millisecond, errors.New("missing column"))

	assert.Equal(t, 120.0, testutil.ToFloat64(m.TableRows), "failed runs keep the last size")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRuns.WithLabelValues("error")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveFetch("fred", time.Second, nil)
	m.ObservePipeline(1, time.Second, nil)
	m.ObserveRequest("/health", 200, time.Second)
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveRequest("/api/v1/table", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, _ := io.ReadAll(rec.Body)
	assert.True(t, strings.Contains(string(body), `fredcycle_http_requests_total{code="200",route="/api/v1/table"} 1`))
	assert.Contains(t, string(body), "go_goroutines")
}
