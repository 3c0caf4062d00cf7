// Package otel names the spans of the refresh pipeline and the job wrapper and
// holds the attribute keys they share.
package otel

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanJobRun          = "jobs.Run"
	SpanRefresh         = "edorg.Execute"
	SpanRefreshInstance = "edorg.RefreshInstance"
)

// Attribute keys.
const (
	AttrTenant        = attribute.Key("tenant.name")
	AttrInstanceID    = attribute.Key("ods_instance.id")
	AttrInstanceCount = attribute.Key("ods_instance.count")
	AttrJobID         = attribute.Key("job.id")
	AttrRunID         = attribute.Key("job.run_id")
	AttrResultCount   = attribute.Key("result.count")
	AttrEngine        = attribute.Key("db.engine")
)

// StartSpan starts name for tenant with attrs. The tenant attribute is only
// set when tenant is non-empty. With a nil tracer ctx is returned unchanged
// together with the span it already carries.
func StartSpan(
	ctx context.Context, tracer trace.Tracer, name, tenant string, attrs ...attribute.KeyValue,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	if tenant != "" {
		attrs = append(attrs, AttrTenant.String(tenant))
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// RecordError attaches err to span as an event and marks the span failed.
// Refresh errors can carry connection details, so the status description
// only says how the operation ended.
func RecordError(span trace.Span, err error) {
	if err == nil || span == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, outcome(err))
}

func outcome(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	default:
		return "failed"
	}
}
