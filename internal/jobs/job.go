// Package jobs runs background units of work with tracked run status.
//
// A job firing is described by a Context carrying the job id, a fresh fire
// token and string job data. The Runner wraps a Handler so that every run
// writes InProgress followed by exactly one terminal status. The Scheduler
// fires jobs immediately or on an interval.
package jobs

import (
	"context"
	"fmt"
)

const (
	// TenantNameKey is the job data key holding the tenant the job targets
	TenantNameKey = "tenantName"

	// OdsInstanceIDKey is the job data key holding an optional ODS instance id
	OdsInstanceIDKey = "odsInstanceId"
)

// Context describes one firing of a job.
type Context struct {
	// JobID is the stable job identity
	JobID string

	// FireToken is unique per firing
	FireToken string

	// Data holds the job parameters
	Data map[string]string
}

// RunID returns the composite run identifier of this firing.
func (c *Context) RunID() string {
	return RunID(c.JobID, c.FireToken)
}

// Tenant returns the tenant name from the job data, or "".
func (c *Context) Tenant() string {
	return c.Data[TenantNameKey]
}

// RunID builds the run identifier "{jobID}_{fireToken}".
func RunID(jobID, fireToken string) string {
	return fmt.Sprintf("%s_%s", jobID, fireToken)
}

// Handler is the job-specific logic invoked by the Runner.
type Handler interface {
	Handle(ctx context.Context, jc *Context) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, jc *Context) error

// Handle calls f(ctx, jc).
func (f HandlerFunc) Handle(ctx context.Context, jc *Context) error {
	return f(ctx, jc)
}
