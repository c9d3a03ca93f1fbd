package protection

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics defines the interface recording protect/reveal call metrics.
type Metrics interface {
	// RecordOperation records one call. Operation is "protect" or "reveal";
	// status is "success" or the failure kind.
	RecordOperation(ctx context.Context, operation, status string)

	// RecordDuration records the duration of one call. Duration is recorded
	// in seconds as a histogram for percentile calculations.
	RecordDuration(ctx context.Context, operation string, duration time.Duration, status string)
}

// otelMetrics implements Metrics using OpenTelemetry metrics.
type otelMetrics struct {
	operationCounter metric.Int64Counter
	durationHisto    metric.Float64Histogram
}

// NewOTelMetrics creates a Metrics implementation using the provided meter
// provider. The namespace parameter is used as a prefix for all metric names
// (e.g., "protect").
func NewOTelMetrics(meterProvider metric.MeterProvider, namespace string) (Metrics, error) {
	meter := meterProvider.Meter(namespace)

	operationCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_calls_total", namespace),
		metric.WithDescription("Total number of protect/reveal calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create call counter: %w", err)
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_call_duration_seconds", namespace),
		metric.WithDescription("Duration of protect/reveal calls in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &otelMetrics{
		operationCounter: operationCounter,
		durationHisto:    durationHisto,
	}, nil
}

// RecordOperation increments the call counter with operation and status labels.
func (o *otelMetrics) RecordOperation(ctx context.Context, operation, status string) {
	o.operationCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// RecordDuration records the call duration in seconds with operation and
// status labels.
func (o *otelMetrics) RecordDuration(
	ctx context.Context,
	operation string,
	duration time.Duration,
	status string,
) {
	o.durationHisto.Record(ctx, duration.Seconds(),
		metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("status", status),
		),
	)
}

// NoOpMetrics is a no-op implementation of Metrics for when metrics are
// disabled.
type NoOpMetrics struct{}

// NewNoOpMetrics creates a no-op Metrics implementation.
func NewNoOpMetrics() Metrics {
	return &NoOpMetrics{}
}

// RecordOperation does nothing when metrics are disabled.
func (n *NoOpMetrics) RecordOperation(ctx context.Context, operation, status string) {
	// No-op
}

// RecordDuration does nothing when metrics are disabled.
func (n *NoOpMetrics) RecordDuration(
	ctx context.Context,
	operation string,
	duration time.Duration,
	status string,
) {
	// No-op
}

// clientWithMetrics decorates a Protector with metrics instrumentation.
type clientWithMetrics struct {
	next    Protector
	metrics Metrics
}

// NewClientWithMetrics wraps a Protector with metrics recording.
func NewClientWithMetrics(next Protector, m Metrics) Protector {
	return &clientWithMetrics{
		next:    next,
		metrics: m,
	}
}

// Protect records metrics for protect calls.
func (c *clientWithMetrics) Protect(ctx context.Context, policyName, data string) (*Result, error) {
	start := time.Now()
	res, err := c.next.Protect(ctx, policyName, data)

	status := callStatus(err)
	c.metrics.RecordOperation(ctx, "protect", status)
	c.metrics.RecordDuration(ctx, "protect", time.Since(start), status)

	return res, err
}

// Reveal records metrics for reveal calls.
func (c *clientWithMetrics) Reveal(ctx context.Context, policyName, protectedData string) (*Result, error) {
	start := time.Now()
	res, err := c.next.Reveal(ctx, policyName, protectedData)

	status := callStatus(err)
	c.metrics.RecordOperation(ctx, "reveal", status)
	c.metrics.RecordDuration(ctx, "reveal", time.Since(start), status)

	return res, err
}

// callStatus maps a call outcome to a metrics status label.
func callStatus(err error) string {
	if err == nil {
		return "success"
	}
	if e, ok := AsError(err); ok {
		return string(e.Kind)
	}
	return "error"
}
