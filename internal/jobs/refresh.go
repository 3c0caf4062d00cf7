package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mocks/mock_refresh.go -package=mocks -source=refresh.go Refresher,Enqueuer

// RefreshEducationOrganizationsJobName prefixes the ids of refresh jobs.
const RefreshEducationOrganizationsJobName = "RefreshEducationOrganizationsJob"

// Refresher refreshes the education organization cache. *edorg.Service satisfies it.
type Refresher interface {
	Execute(ctx context.Context, tenantName string, instanceID *int) error
}

// RefreshJob is the Handler that delegates a firing to a Refresher.
type RefreshJob struct {
	refresher    Refresher
	multiTenancy bool
}

var _ Handler = (*RefreshJob)(nil)

// NewRefreshJob creates the refresh handler.
func NewRefreshJob(refresher Refresher, multiTenancy bool) *RefreshJob {
	return &RefreshJob{refresher: refresher, multiTenancy: multiTenancy}
}

// Handle reads the tenant and optional instance id from the job data and runs the refresh.
func (j *RefreshJob) Handle(ctx context.Context, jc *Context) error {
	var instanceID *int
	if raw, ok := jc.Data[OdsInstanceIDKey]; ok {
		id, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", OdsInstanceIDKey, raw, err)
		}
		instanceID = &id
	}

	if !j.multiTenancy {
		slog.Info("Starting education organizations refresh", "job_id", jc.JobID)
		return j.refresher.Execute(ctx, "", instanceID)
	}

	tenant := jc.Tenant()
	if tenant == "" {
		slog.Error("Tenant name is required for multi-tenant refresh", "job_id", jc.JobID)
		return nil
	}
	slog.Info("Starting education organizations refresh", "job_id", jc.JobID, "tenant", tenant)
	return j.refresher.Execute(ctx, tenant, instanceID)
}

// Enqueuer queues refresh runs. The HTTP layer depends on it.
type Enqueuer interface {
	// EnqueueRefresh queues a refresh of one instance, or of all instances when
	// instanceID is nil, and returns the run id.
	EnqueueRefresh(ctx context.Context, tenant string, instanceID *int) (string, error)
}

// RefreshQueue submits RefreshJob firings to a Scheduler.
type RefreshQueue struct {
	scheduler *Scheduler
	job       Handler
}

var _ Enqueuer = (*RefreshQueue)(nil)

// NewRefreshQueue creates a queue firing job on scheduler.
func NewRefreshQueue(scheduler *Scheduler, job Handler) *RefreshQueue {
	return &RefreshQueue{scheduler: scheduler, job: job}
}

// EnqueueRefresh fires a one-off refresh with a new job id.
func (q *RefreshQueue) EnqueueRefresh(ctx context.Context, tenant string, instanceID *int) (string, error) {
	return q.scheduler.Enqueue(ctx, refreshJobID(tenant), refreshData(tenant, instanceID), q.job)
}

// RefreshNow runs a refresh on the calling goroutine, recording its status
// like any queued run.
func (q *RefreshQueue) RefreshNow(ctx context.Context, tenant string, instanceID *int) (string, error) {
	return q.scheduler.RunNow(ctx, refreshJobID(tenant), refreshData(tenant, instanceID), q.job)
}

// SchedulePeriodic fires a refresh of all instances of tenant every interval.
func (q *RefreshQueue) SchedulePeriodic(tenant string, interval time.Duration) error {
	return q.scheduler.Every(refreshJobID(tenant), refreshData(tenant, nil), interval, q.job)
}

func refreshJobID(tenant string) string {
	return fmt.Sprintf("%s-%s-%s", RefreshEducationOrganizationsJobName, tenant, uuid.NewString())
}

func refreshData(tenant string, instanceID *int) map[string]string {
	data := map[string]string{TenantNameKey: tenant}
	if instanceID != nil {
		data[OdsInstanceIDKey] = strconv.Itoa(*instanceID)
	}
	return data
}
