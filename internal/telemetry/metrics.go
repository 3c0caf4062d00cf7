// Package telemetry provides OpenTelemetry instrumentation for the admin API.
package telemetry

import (
	"context"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// RefreshMetricsMeterName is the name used for the education organization refresh meter
	RefreshMetricsMeterName = "github.com/ed-fi-alliance/ods-admin-api/edorg"

	// JobMetricsMeterName is the name used for the background job meter
	JobMetricsMeterName = "github.com/ed-fi-alliance/ods-admin-api/jobs"
)

// RefreshMetrics holds the instruments recorded per ODS instance refresh
type RefreshMetrics struct {
	refreshDuration    metric.Float64Histogram
	organizationsTotal metric.Int64Gauge
}

// NewRefreshMetrics creates a new RefreshMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewRefreshMetrics(provider metric.MeterProvider) (*RefreshMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(RefreshMetricsMeterName)

	refreshDuration, err := meter.Float64Histogram(
		"edorg_refresh_duration_seconds",
		metric.WithDescription("Duration of education organization refreshes per ODS instance"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120),
	)
	if err != nil {
		return nil, err
	}

	organizationsTotal, err := meter.Int64Gauge(
		"edorg_organizations_total",
		metric.WithDescription("Number of cached education organizations per ODS instance"),
		metric.WithUnit("{organization}"),
	)
	if err != nil {
		return nil, err
	}

	return &RefreshMetrics{
		refreshDuration:    refreshDuration,
		organizationsTotal: organizationsTotal,
	}, nil
}

// RecordRefreshDuration records how long one instance refresh took
func (m *RefreshMetrics) RecordRefreshDuration(ctx context.Context, instanceID int, duration time.Duration, success bool) {
	if m == nil || m.refreshDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("instance_id", strconv.Itoa(instanceID)),
		attribute.Bool("success", success),
	}

	m.refreshDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordOrganizationsTotal records the cache size of an instance after a successful refresh
func (m *RefreshMetrics) RecordOrganizationsTotal(ctx context.Context, instanceID int, count int64) {
	if m == nil || m.organizationsTotal == nil {
		return
	}

	m.organizationsTotal.Record(ctx, count,
		metric.WithAttributes(attribute.String("instance_id", strconv.Itoa(instanceID))))
}

// JobMetrics holds the instruments for background job runs
type JobMetrics struct {
	runsTotal metric.Int64Counter
}

// NewJobMetrics creates a new JobMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewJobMetrics(provider metric.MeterProvider) (*JobMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(JobMetricsMeterName)

	runsTotal, err := meter.Int64Counter(
		"job_runs_total",
		metric.WithDescription("Number of finished job runs by terminal status"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	return &JobMetrics{runsTotal: runsTotal}, nil
}

// RecordRun counts one finished run with its terminal status
func (m *JobMetrics) RecordRun(ctx context.Context, status string) {
	if m == nil || m.runsTotal == nil {
		return
	}

	m.runsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}
