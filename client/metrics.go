package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the client's metric instruments. Attach with WithMetrics;
// a nil Metrics disables instrumentation entirely.
type Metrics struct {
	RequestsTotal          metric.Int64Counter
	RequestDurationSeconds metric.Float64Histogram
	RequestErrorsTotal     metric.Int64Counter
}

// NewMetrics creates the instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.RequestsTotal, err = meter.Int64Counter(
		"api_client_requests_total",
		metric.WithDescription("Total number of API requests issued"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.RequestDurationSeconds, err = meter.Float64Histogram(
		"api_client_request_duration_seconds",
		metric.WithDescription("Duration of API requests in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.RequestErrorsTotal, err = meter.Int64Counter(
		"api_client_request_errors_total",
		metric.WithDescription("Total number of API requests that failed"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// record registers one completed request. A status of 0 means the request
// never produced a response.
func (m *Metrics) record(ctx context.Context, method, endpoint string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status),
	)
	m.RequestsTotal.Add(ctx, 1, attrs)
	m.RequestDurationSeconds.Record(ctx, elapsed.Seconds(), attrs)
	if status == 0 || status >= 400 {
		m.RequestErrorsTotal.Add(ctx, 1, attrs)
	}
}
