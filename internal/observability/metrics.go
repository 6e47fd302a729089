package observability

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/cuongbtq/prompt-gateway/internal/domain"
	"github.com/cuongbtq/prompt-gateway/internal/orchestrator"
)

var _ orchestrator.Recorder = (*Metrics)(nil)

// Metrics holds the HTTP and orchestration instruments.
// It implements orchestrator.Recorder.
type Metrics struct {
	meter metric.Meter

	// HTTP metrics
	HTTPRequestDuration metric.Float64Histogram
	HTTPRequestsTotal   metric.Int64Counter
	HTTPErrorsTotal     metric.Int64Counter

	// Orchestration metrics
	JobsAcceptedTotal    metric.Int64Counter
	JobsDispatchedTotal  metric.Int64Counter
	RetriesTotal         metric.Int64Counter
	ResultsIngestedTotal metric.Int64Counter
	OutboxProcessedTotal metric.Int64Counter
}

// NewMetrics creates the instruments on a dedicated Prometheus registry and
// returns the handler that serves it.
func NewMetrics(serviceName string) (*Metrics, http.Handler, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, nil, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(serviceName)
	m := &Metrics{meter: meter}

	m.HTTPRequestDuration, err = meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPRequestsTotal, err = meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.HTTPErrorsTotal, err = meter.Int64Counter(
		"http_errors_total",
		metric.WithDescription("Total number of HTTP errors (4xx and 5xx)"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsAcceptedTotal, err = meter.Int64Counter(
		"jobs_accepted_total",
		metric.WithDescription("Total number of accepted job requests"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.JobsDispatchedTotal, err = meter.Int64Counter(
		"jobs_dispatched_total",
		metric.WithDescription("Total number of attempts enqueued for dispatch"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.RetriesTotal, err = meter.Int64Counter(
		"job_retries_total",
		metric.WithDescription("Total number of fallback attempts scheduled"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.ResultsIngestedTotal, err = meter.Int64Counter(
		"results_ingested_total",
		metric.WithDescription("Total number of provider results ingested, by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	m.OutboxProcessedTotal, err = meter.Int64Counter(
		"outbox_processed_total",
		metric.WithDescription("Total number of outbox processing iterations, by outcome"),
	)
	if err != nil {
		return nil, nil, err
	}

	return m, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, route string, statusCode int, durationSeconds float64) {
	attrs := metric.WithAttributes(
		methodAttr(method),
		routeAttr(route),
		statusAttr(statusCode),
	)

	m.HTTPRequestDuration.Record(ctx, durationSeconds, attrs)
	m.HTTPRequestsTotal.Add(ctx, 1, attrs)

	if statusCode >= 400 {
		m.HTTPErrorsTotal.Add(ctx, 1, attrs)
	}
}

// JobAccepted records an accepted job request.
func (m *Metrics) JobAccepted(taskType string) {
	m.JobsAcceptedTotal.Add(context.Background(), 1, metric.WithAttributes(taskTypeAttr(taskType)))
}

// JobDispatched records an attempt handed to the outbox.
func (m *Metrics) JobDispatched(provider string) {
	m.JobsDispatchedTotal.Add(context.Background(), 1, metric.WithAttributes(providerAttr(provider)))
}

// RetryScheduled records a fallback attempt.
func (m *Metrics) RetryScheduled(provider, reason string) {
	m.RetriesTotal.Add(context.Background(), 1, metric.WithAttributes(providerAttr(provider), reasonAttr(reason)))
}

// ResultIngested records the outcome of one result ingestion.
func (m *Metrics) ResultIngested(status domain.IngestStatus) {
	m.ResultsIngestedTotal.Add(context.Background(), 1, metric.WithAttributes(outcomeAttr(string(status))))
}

// OutboxProcessed records one outbox processing iteration.
func (m *Metrics) OutboxProcessed(outcome string) {
	m.OutboxProcessedTotal.Add(context.Background(), 1, metric.WithAttributes(outcomeAttr(outcome)))
}
