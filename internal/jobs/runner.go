package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/ed-fi-alliance/ods-admin-api/internal/otel"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
	"github.com/ed-fi-alliance/ods-admin-api/internal/telemetry"
)

// Runner executes units of work and records their lifecycle in a status.Store.
// Run never returns an error: failures end up in the Error status.
type Runner struct {
	store   status.Store
	metrics *telemetry.JobMetrics
	tracer  trace.Tracer
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithJobMetrics sets the job metrics recorded after each run
func WithJobMetrics(m *telemetry.JobMetrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithRunnerTracer sets the tracer used for run spans
func WithRunnerTracer(t trace.Tracer) RunnerOption {
	return func(r *Runner) {
		r.tracer = t
	}
}

// NewRunner creates a Runner writing to store.
func NewRunner(store status.Store, opts ...RunnerOption) *Runner {
	r := &Runner{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Execute runs h for the firing described by jc, reading the tenant from the job data.
func (r *Runner) Execute(ctx context.Context, jc *Context, h Handler) {
	r.Run(ctx, jc.JobID, jc.FireToken, jc.Tenant(), func(ctx context.Context) error {
		return h.Handle(ctx, jc)
	})
}

// Run marks the run InProgress, invokes work and marks it Completed or Error.
// A panic in work is recovered and recorded as Error.
func (r *Runner) Run(ctx context.Context, jobID, fireToken, tenant string, work func(context.Context) error) {
	runID := RunID(jobID, fireToken)
	logger := slog.With("job_id", jobID, "run_id", runID)

	ctx, span := otel.StartSpan(ctx, r.tracer, otel.SpanJobRun, tenant,
		otel.AttrJobID.String(jobID), otel.AttrRunID.String(runID))
	defer span.End()

	// Status writes must land even when the run itself is cancelled.
	statusCtx := context.WithoutCancel(ctx)

	if err := r.store.SetStatus(statusCtx, runID, status.JobStatusInProgress, tenant, ""); err != nil {
		logger.Error("Failed to mark job in progress", "error", err)
		otel.RecordError(span, err)
		r.finish(statusCtx, logger, runID, tenant, status.JobStatusError, err.Error())
		return
	}

	if err := invoke(ctx, work); err != nil {
		logger.Error("Job failed", "error", err)
		otel.RecordError(span, err)
		r.finish(statusCtx, logger, runID, tenant, status.JobStatusError, err.Error())
		return
	}

	logger.Info("Job completed")
	r.finish(statusCtx, logger, runID, tenant, status.JobStatusCompleted, "")
}

func (r *Runner) finish(
	ctx context.Context, logger *slog.Logger, runID, tenant string, js status.JobStatus, msg string,
) {
	if err := r.store.SetStatus(ctx, runID, js, tenant, msg); err != nil {
		logger.Error("Failed to record final job status", "status", js, "error", err)
	}
	r.metrics.RecordRun(ctx, string(js))
}

func invoke(ctx context.Context, work func(context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.New(fmt.Sprint(p))
		}
	}()
	return work(ctx)
}
