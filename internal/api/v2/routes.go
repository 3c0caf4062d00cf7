// Package v2 provides the education organization and job status handlers of
// the admin API.
package v2

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ed-fi-alliance/ods-admin-api/internal/api/common"
	"github.com/ed-fi-alliance/ods-admin-api/internal/edorg"
	"github.com/ed-fi-alliance/ods-admin-api/internal/jobs"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
	"github.com/ed-fi-alliance/ods-admin-api/internal/tenants"
)

//go:generate mockgen -destination=mocks/mock_routes.go -package=mocks -source=routes.go CacheReader

// CacheReader yields the education organization cache of a tenant.
// *edorg.Service satisfies it.
type CacheReader interface {
	StoreFor(ctx context.Context, tenant string) (edorg.Store, error)
}

// RefreshResponse acknowledges a queued refresh.
type RefreshResponse struct {
	Message string `json:"message"`
	RunID   string `json:"runId"`
}

// Routes serves the /v2 endpoints.
type Routes struct {
	enqueuer jobs.Enqueuer
	cache    CacheReader
	statuses status.Store
}

// NewRoutes creates the handlers over their collaborators.
func NewRoutes(enqueuer jobs.Enqueuer, cache CacheReader, statuses status.Store) *Routes {
	return &Routes{
		enqueuer: enqueuer,
		cache:    cache,
		statuses: statuses,
	}
}

// Router mounts the /v2 endpoints. Tenant resolution happens in middleware
// installed by the caller.
func Router(enqueuer jobs.Enqueuer, cache CacheReader, statuses status.Store) http.Handler {
	routes := NewRoutes(enqueuer, cache, statuses)

	r := chi.NewRouter()

	r.Post("/educationOrganizations/refresh", routes.refreshAll)
	r.Post("/educationOrganizations/refresh/{instanceId}", routes.refreshInstance)
	r.Get("/educationOrganizations", routes.listEducationOrganizations)
	r.Get("/educationOrganizations/{instanceId}", routes.listEducationOrganizations)
	r.Get("/jobs/{runId}", routes.getJobStatus)

	return r
}

// refreshAll handles POST /v2/educationOrganizations/refresh
func (rr *Routes) refreshAll(w http.ResponseWriter, r *http.Request) {
	rr.enqueue(w, r, nil, "Education organizations refresh has been queued for all instances")
}

// refreshInstance handles POST /v2/educationOrganizations/refresh/{instanceId}
func (rr *Routes) refreshInstance(w http.ResponseWriter, r *http.Request) {
	id, err := common.GetIntURLParam(r, "instanceId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	rr.enqueue(w, r, &id, fmt.Sprintf("Education organizations refresh has been queued for instance %d", id))
}

func (rr *Routes) enqueue(w http.ResponseWriter, r *http.Request, instanceID *int, message string) {
	tenant := common.TenantFromContext(r.Context())

	runID, err := rr.enqueuer.EnqueueRefresh(r.Context(), tenant, instanceID)
	switch {
	case errors.Is(err, tenants.ErrTenantNotFound):
		writeTenantError(w, tenant, err)
		return
	case err != nil:
		slog.Error("Failed to queue education organizations refresh", "tenant", tenant, "error", err)
		code := http.StatusInternalServerError
		if errors.Is(err, jobs.ErrSchedulerStopped) {
			code = http.StatusServiceUnavailable
		}
		common.WriteErrorResponse(w, "Failed to queue refresh", code)
		return
	}

	common.WriteJSONResponse(w, RefreshResponse{Message: message, RunID: runID}, http.StatusAccepted)
}

// listEducationOrganizations handles GET /v2/educationOrganizations[/{instanceId}]
func (rr *Routes) listEducationOrganizations(w http.ResponseWriter, r *http.Request) {
	var instanceID *int
	if chi.URLParam(r, "instanceId") != "" {
		id, err := common.GetIntURLParam(r, "instanceId")
		if err != nil {
			common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
			return
		}
		instanceID = &id
	}

	tenant := common.TenantFromContext(r.Context())
	store, err := rr.cache.StoreFor(r.Context(), tenant)
	if err != nil {
		writeTenantError(w, tenant, err)
		return
	}

	orgs, err := store.List(r.Context(), instanceID)
	if err != nil {
		slog.Error("Failed to list education organizations", "tenant", tenant, "error", err)
		common.WriteErrorResponse(w, "Failed to list education organizations", http.StatusInternalServerError)
		return
	}

	common.WriteJSONResponse(w, orgs, http.StatusOK)
}

// getJobStatus handles GET /v2/jobs/{runId}
func (rr *Routes) getJobStatus(w http.ResponseWriter, r *http.Request) {
	runID, err := common.GetAndValidateURLParam(r, "runId")
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	tenant := common.TenantFromContext(r.Context())
	rec, err := rr.statuses.GetStatus(r.Context(), runID, tenant)
	switch {
	case errors.Is(err, status.ErrNotFound):
		common.WriteErrorResponse(w, fmt.Sprintf("Job %s not found", runID), http.StatusNotFound)
		return
	case err != nil:
		writeTenantError(w, tenant, err)
		return
	}

	common.WriteJSONResponse(w, rec, http.StatusOK)
}

func writeTenantError(w http.ResponseWriter, tenant string, err error) {
	if errors.Is(err, tenants.ErrTenantNotFound) {
		common.WriteErrorResponse(w, fmt.Sprintf("Tenant %s is not configured", tenant), http.StatusBadRequest)
		return
	}
	slog.Error("Failed to reach admin database", "tenant", tenant, "error", err)
	common.WriteErrorResponse(w, "Failed to reach admin database", http.StatusInternalServerError)
}
