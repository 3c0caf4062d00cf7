package app

import (
	"github.com/ed-fi-alliance/ods-admin-api/internal/edorg"
	"github.com/ed-fi-alliance/ods-admin-api/internal/jobs"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
	"github.com/ed-fi-alliance/ods-admin-api/internal/tenants"
)

// AppComponents groups all application components
//
//nolint:revive // This name is fine
type AppComponents struct {
	// Resolver yields the admin database of each tenant
	Resolver *tenants.Resolver

	// Statuses records job run statuses
	Statuses status.Store

	// Scheduler fires background jobs
	Scheduler *jobs.Scheduler

	// Refresh queues education organization refresh runs
	Refresh *jobs.RefreshQueue

	// EducationOrganizations refreshes and serves the cache
	EducationOrganizations *edorg.Service
}
