package common

import (
	"context"
	"net/http"
	"strings"
)

// TenantHeader carries the tenant identifier of a request.
const TenantHeader = "tenant"

type tenantKey struct{}

// WithTenant returns a copy of ctx carrying tenant.
func WithTenant(ctx context.Context, tenant string) context.Context {
	return context.WithValue(ctx, tenantKey{}, tenant)
}

// TenantFromContext returns the tenant of the request, or "" in single-tenant mode.
func TenantFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantKey{}).(string)
	return tenant
}

// TenantMiddleware reads the tenant header. With multiTenancy on, requests
// without one are rejected; otherwise the header is ignored.
func TenantMiddleware(multiTenancy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !multiTenancy {
				next.ServeHTTP(w, r)
				return
			}

			tenant := strings.TrimSpace(r.Header.Get(TenantHeader))
			if tenant == "" {
				WriteErrorResponse(w, "The tenant header is required", http.StatusBadRequest)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
		})
	}
}
