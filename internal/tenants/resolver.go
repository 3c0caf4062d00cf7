package tenants

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
)

// ErrTenantNotFound is returned for a tenant identifier absent from the configuration.
var ErrTenantNotFound = errors.New("tenant not found")

// Opener opens a tenant database handle.
type Opener = db.OpenFunc

// Resolver hands out engine-specific handles bound to a tenant's admin
// database. The same handle serves the admin API tables and the ODS instance
// registry, which share a database. Handles are opened on first use and kept
// until Close. Connecting happens outside the cache lock, so a slow tenant
// database only delays callers of that tenant.
type Resolver struct {
	provider    Provider
	engine      db.Engine
	pool        db.PoolOptions
	open        Opener
	defaultConn string

	opening singleflight.Group
	mu      sync.Mutex
	handles map[string]*db.Handle
}

// defaultKey holds the single-tenant handle. The NUL prefix keeps it apart
// from configured tenant ids.
const defaultKey = "\x00default"

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithPoolOptions sets the pool settings used for every opened handle.
func WithPoolOptions(opts db.PoolOptions) ResolverOption {
	return func(r *Resolver) {
		r.pool = opts
	}
}

// WithOpener replaces db.Open, mainly for tests.
func WithOpener(open Opener) ResolverOption {
	return func(r *Resolver) {
		r.open = open
	}
}

// WithDefaultConnectionString sets the admin database used outside multi-tenancy.
func WithDefaultConnectionString(connStr string) ResolverOption {
	return func(r *Resolver) {
		r.defaultConn = connStr
	}
}

// NewResolver creates a Resolver for the given engine.
func NewResolver(provider Provider, engine db.Engine, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		provider: provider,
		engine:   engine,
		open:     db.Open,
		handles:  make(map[string]*db.Handle),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the admin database handle for tenantID. It fails with
// ErrTenantNotFound for unknown tenants and db.ErrUnsupportedEngine when the
// configured engine is not supported.
func (r *Resolver) Resolve(ctx context.Context, tenantID string) (*db.Handle, error) {
	var tenant Configuration
	var ok bool
	if r.provider != nil {
		tenant, ok = r.provider.Get()[tenantID]
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTenantNotFound, tenantID)
	}
	if !r.engine.Valid() {
		return nil, fmt.Errorf("%w: %s", db.ErrUnsupportedEngine, r.engine)
	}

	return r.handle(ctx, tenantID, tenant.AdminConnectionString)
}

// Default returns the handle for the single-tenant admin database.
func (r *Resolver) Default(ctx context.Context) (*db.Handle, error) {
	if !r.engine.Valid() {
		return nil, fmt.Errorf("%w: %s", db.ErrUnsupportedEngine, r.engine)
	}
	if r.defaultConn == "" {
		return nil, fmt.Errorf("no default admin connection string configured")
	}

	return r.handle(ctx, defaultKey, r.defaultConn)
}

// handle returns the cached handle for key, opening it once when missing.
// Concurrent callers of the same key share one open; other keys are not held
// up by it.
func (r *Resolver) handle(ctx context.Context, key, connStr string) (*db.Handle, error) {
	if h := r.cached(key); h != nil {
		return h, nil
	}

	v, err, _ := r.opening.Do(key, func() (any, error) {
		if h := r.cached(key); h != nil {
			return h, nil
		}
		h, err := r.open(ctx, r.engine, connStr, r.pool)
		if err != nil {
			if key == defaultKey {
				return nil, fmt.Errorf("failed to open admin database: %w", err)
			}
			return nil, fmt.Errorf("failed to open admin database for tenant %q: %w", key, err)
		}
		slog.Debug("Opened admin database", "tenant", tenantLabel(key), "engine", r.engine.String())

		r.mu.Lock()
		defer r.mu.Unlock()
		r.handles[key] = h
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*db.Handle), nil
}

func (r *Resolver) cached(key string) *db.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[key]
}

func tenantLabel(key string) string {
	if key == defaultKey {
		return ""
	}
	return key
}

// Close closes every handle opened by the resolver.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for key, h := range r.handles {
		if err := h.Close(); err != nil {
			if key == defaultKey {
				errs = append(errs, err)
			} else {
				errs = append(errs, fmt.Errorf("tenant %q: %w", key, err))
			}
		}
		delete(r.handles, key)
	}
	return errors.Join(errs...)
}
