// Package observability wires Prometheus metrics and OpenTelemetry tracing
// into the engine. Both are opt-in; with everything disabled the recorders
// are no-ops and no collector is required.
package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics
	metricsMu     sync.RWMutex
)

// Metrics is the recording surface the engine and the HTTP layer emit into.
type Metrics interface {
	RecordRun(ctx context.Context, mode string, elapsed time.Duration)
	RecordSearch(ctx context.Context)
	RecordFetch(ctx context.Context, ok bool)
	RecordSkippedURL(ctx context.Context)
	RecordChunksStored(ctx context.Context, count int)
	RecordRetrievalHits(ctx context.Context, count int)
	RecordPipelineError(ctx context.Context, stage string)
	RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration, responseSize int)
	Handler() http.Handler
}

// PrometheusMetrics exports engine counters through the OpenTelemetry
// Prometheus bridge. The zero value is a valid no-op recorder.
type PrometheusMetrics struct {
	runDuration   metric.Float64Histogram
	runsTotal     metric.Int64Counter
	searchesTotal metric.Int64Counter
	fetchesTotal  metric.Int64Counter
	urlsSkipped   metric.Int64Counter
	chunksStored  metric.Int64Counter
	retrievalHits metric.Int64Counter
	stageErrors   metric.Int64Counter

	httpDuration metric.Float64Histogram
	httpRequests metric.Int64Counter
	httpRespSize metric.Int64Counter
}

func NewPrometheusMetrics(
	runDuration metric.Float64Histogram,
	runsTotal metric.Int64Counter,
	searchesTotal metric.Int64Counter,
	fetchesTotal metric.Int64Counter,
	urlsSkipped metric.Int64Counter,
	chunksStored metric.Int64Counter,
	retrievalHits metric.Int64Counter,
	stageErrors metric.Int64Counter,
	httpDuration metric.Float64Histogram,
	httpRequests metric.Int64Counter,
	httpRespSize metric.Int64Counter,
) *PrometheusMetrics {
	return &PrometheusMetrics{
		runDuration:   runDuration,
		runsTotal:     runsTotal,
		searchesTotal: searchesTotal,
		fetchesTotal:  fetchesTotal,
		urlsSkipped:   urlsSkipped,
		chunksStored:  chunksStored,
		retrievalHits: retrievalHits,
		stageErrors:   stageErrors,
		httpDuration:  httpDuration,
		httpRequests:  httpRequests,
		httpRespSize:  httpRespSize,
	}
}

func (m *PrometheusMetrics) RecordRun(ctx context.Context, mode string, elapsed time.Duration) {
	if m == nil || m.runDuration == nil || m.runsTotal == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("mode", mode),
	}

	m.runDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attrs...))
	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *PrometheusMetrics) RecordSearch(ctx context.Context) {
	if m == nil || m.searchesTotal == nil {
		return
	}

	m.searchesTotal.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordFetch(ctx context.Context, ok bool) {
	if m == nil || m.fetchesTotal == nil {
		return
	}

	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.fetchesTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *PrometheusMetrics) RecordSkippedURL(ctx context.Context) {
	if m == nil || m.urlsSkipped == nil {
		return
	}

	m.urlsSkipped.Add(ctx, 1)
}

func (m *PrometheusMetrics) RecordChunksStored(ctx context.Context, count int) {
	if m == nil || m.chunksStored == nil {
		return
	}

	m.chunksStored.Add(ctx, int64(count))
}

func (m *PrometheusMetrics) RecordRetrievalHits(ctx context.Context, count int) {
	if m == nil || m.retrievalHits == nil {
		return
	}

	m.retrievalHits.Add(ctx, int64(count))
}

func (m *PrometheusMetrics) RecordPipelineError(ctx context.Context, stage string) {
	if m == nil || m.stageErrors == nil {
		return
	}

	m.stageErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", stage)))
}

func (m *PrometheusMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, duration time.Duration, responseSize int) {
	if m == nil || m.httpDuration == nil || m.httpRequests == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("method", method),
		attribute.String("path", route),
		attribute.Int("status", status),
	}

	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(attrs...))

	if m.httpRespSize != nil {
		m.httpRespSize.Add(ctx, int64(responseSize), metric.WithAttributes(attrs...))
	}
}

// Handler serves the Prometheus scrape endpoint. When metrics are disabled
// it answers 503 so probes can tell the endpoint apart from a dead server.
func (m *PrometheusMetrics) Handler() http.Handler {
	if m == nil || m.runsTotal == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics not enabled"))
		})
	}
	return promhttp.Handler()
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}
