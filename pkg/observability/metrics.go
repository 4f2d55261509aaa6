package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/introlix/explorer/pkg/config"
)

// InitMetrics builds the Prometheus-backed metric set. Disabled metrics
// return a zero PrometheusMetrics, which records nothing.
func InitMetrics(ctx context.Context, cfg config.MetricsConfig) (*PrometheusMetrics, error) {
	if !cfg.Enabled {
		return &PrometheusMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("explorer")

	runDuration, err := meter.Float64Histogram(
		"explorer_run_duration_seconds",
		metric.WithDescription("Explore run duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run duration histogram: %w", err)
	}

	runsTotal, err := meter.Int64Counter(
		"explorer_runs_total",
		metric.WithDescription("Total explore runs"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runs counter: %w", err)
	}

	searchesTotal, err := meter.Int64Counter(
		"explorer_web_searches_total",
		metric.WithDescription("Total web searches issued"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create searches counter: %w", err)
	}

	fetchesTotal, err := meter.Int64Counter(
		"explorer_url_fetches_total",
		metric.WithDescription("Total URL fetch attempts by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetches counter: %w", err)
	}

	urlsSkipped, err := meter.Int64Counter(
		"explorer_urls_skipped_total",
		metric.WithDescription("URLs skipped as duplicates or already ingested"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create skipped urls counter: %w", err)
	}

	chunksStored, err := meter.Int64Counter(
		"explorer_chunks_stored_total",
		metric.WithDescription("Chunk records written to the vector store"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunks stored counter: %w", err)
	}

	retrievalHits, err := meter.Int64Counter(
		"explorer_retrieval_hits_total",
		metric.WithDescription("Chunks returned to callers above the score threshold"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create retrieval hits counter: %w", err)
	}

	stageErrors, err := meter.Int64Counter(
		"explorer_pipeline_errors_total",
		metric.WithDescription("Pipeline stage failures by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline errors counter: %w", err)
	}

	httpDuration, err := meter.Float64Histogram(
		"explorer_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	httpRequests, err := meter.Int64Counter(
		"explorer_http_requests_total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http requests counter: %w", err)
	}

	httpRespSize, err := meter.Int64Counter(
		"explorer_http_response_bytes_total",
		metric.WithDescription("Total HTTP response bytes"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create http response size counter: %w", err)
	}

	return NewPrometheusMetrics(
		runDuration,
		runsTotal,
		searchesTotal,
		fetchesTotal,
		urlsSkipped,
		chunksStored,
		retrievalHits,
		stageErrors,
		httpDuration,
		httpRequests,
		httpRespSize,
	), nil
}
