package edorg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/encryption"
	"github.com/ed-fi-alliance/ods-admin-api/internal/odsinstances"
	"github.com/ed-fi-alliance/ods-admin-api/internal/otel"
	"github.com/ed-fi-alliance/ods-admin-api/internal/telemetry"
)

// ErrDecryptionFailed is returned when an instance connection string cannot be decrypted.
var ErrDecryptionFailed = errors.New("failed to decrypt connection string")

// Settings is the configuration snapshot the Service works from.
type Settings struct {
	MultiTenancy bool
	// EncryptionKey is the base64 encoded key for instance connection strings
	EncryptionKey  string
	Engine         db.Engine
	MaxParallelism int
}

// HandleResolver yields the admin database of a tenant, or the default one.
type HandleResolver interface {
	Resolve(ctx context.Context, tenantID string) (*db.Handle, error)
	Default(ctx context.Context) (*db.Handle, error)
}

// Service refreshes the education organization cache from the remote ODS
// databases registered in an admin database.
type Service struct {
	settings  Settings
	handles   HandleResolver
	decrypter encryption.Provider
	source    Source

	newInstances func(*db.Handle) odsinstances.Repository
	newStore     func(*db.Handle) Store

	clock   clock.Clock
	locks   *keyedMutex
	metrics *telemetry.RefreshMetrics
	tracer  trace.Tracer
}

// Option configures a Service
type Option func(*Service)

// WithSource replaces the remote ODS reader
func WithSource(src Source) Option {
	return func(s *Service) {
		s.source = src
	}
}

// WithInstanceRepository replaces how the instance registry is read from an admin database
func WithInstanceRepository(f func(*db.Handle) odsinstances.Repository) Option {
	return func(s *Service) {
		s.newInstances = f
	}
}

// WithStore replaces how the cache is accessed in an admin database
func WithStore(f func(*db.Handle) Store) Option {
	return func(s *Service) {
		s.newStore = f
	}
}

// WithClock sets the clock used for refresh timestamps
func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		s.clock = c
	}
}

// WithRefreshMetrics sets the refresh metrics
func WithRefreshMetrics(m *telemetry.RefreshMetrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTracer sets the tracer used for refresh spans
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// NewService creates a Service.
func NewService(settings Settings, handles HandleResolver, decrypter encryption.Provider, opts ...Option) *Service {
	s := &Service{
		settings:  settings,
		handles:   handles,
		decrypter: decrypter,
		source:    NewSQLSource(nil),
		newInstances: func(h *db.Handle) odsinstances.Repository {
			return odsinstances.NewRepository(h)
		},
		newStore: NewSQLStore,
		clock:    clock.New(),
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute refreshes the cache for instanceID, or for every registered
// instance when nil, in the admin database of tenantName (multi-tenancy) or
// the default one. Configuration errors fail the call; failures of single
// instances are logged and do not affect the others.
func (s *Service) Execute(ctx context.Context, tenantName string, instanceID *int) error {
	key, err := s.checkSettings()
	if err != nil {
		return err
	}

	var h *db.Handle
	if s.settings.MultiTenancy {
		if tenantName == "" {
			slog.Error("Tenant name must be provided when multi-tenancy is enabled")
			return nil
		}
		h, err = s.handles.Resolve(ctx, tenantName)
	} else {
		h, err = s.handles.Default(ctx)
	}
	if err != nil {
		return err
	}

	instances, err := s.targets(ctx, s.newInstances(h), instanceID)
	if err != nil {
		return err
	}

	s.refreshAll(ctx, tenantName, key, s.newStore(h), instances)
	return ctx.Err()
}

// StoreFor returns the cache store of tenant's admin database, or the
// default one outside multi-tenancy.
func (s *Service) StoreFor(ctx context.Context, tenant string) (Store, error) {
	var h *db.Handle
	var err error
	if s.settings.MultiTenancy {
		h, err = s.handles.Resolve(ctx, tenant)
	} else {
		h, err = s.handles.Default(ctx)
	}
	if err != nil {
		return nil, err
	}
	return s.newStore(h), nil
}

func (s *Service) checkSettings() ([]byte, error) {
	if s.settings.EncryptionKey == "" {
		return nil, config.ErrMissingEncryptionKey
	}
	if !s.settings.Engine.Valid() {
		return nil, fmt.Errorf("%w: %s", db.ErrUnsupportedEngine, s.settings.Engine)
	}
	return encryption.DecodeKey(s.settings.EncryptionKey)
}

func (s *Service) targets(
	ctx context.Context, repo odsinstances.Repository, instanceID *int,
) ([]odsinstances.OdsInstance, error) {
	if instanceID == nil {
		instances, err := repo.List(ctx)
		if err != nil {
			return nil, err
		}
		return instances, nil
	}

	inst, err := repo.Get(ctx, *instanceID)
	if errors.Is(err, odsinstances.ErrNotFound) {
		slog.Warn("ODS instance not found, skipping education organization refresh", "instance_id", *instanceID)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []odsinstances.OdsInstance{*inst}, nil
}

func (s *Service) maxParallelism() int {
	if s.settings.MaxParallelism < 1 {
		return config.DefaultMaxParallelism
	}
	return s.settings.MaxParallelism
}

func (s *Service) refreshAll(
	ctx context.Context, tenant string, key []byte, store Store, instances []odsinstances.OdsInstance,
) {
	ctx, span := otel.StartSpan(ctx, s.tracer, otel.SpanRefresh, tenant,
		otel.AttrInstanceCount.Int(len(instances)),
		otel.AttrEngine.String(s.settings.Engine.String()))
	defer span.End()

	var failed atomic.Int32
	// A plain group: one failing instance must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.maxParallelism())
	for _, inst := range instances {
		g.Go(func() error {
			if err := s.refreshInstance(ctx, tenant, key, store, inst); err != nil {
				failed.Add(1)
				slog.Error("Failed to refresh education organizations",
					"instance_id", inst.ID, "tenant", tenant, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	slog.Info("Education organizations refresh finished",
		"tenant", tenant, "instances", len(instances), "failed", failed.Load())
}

func (s *Service) refreshInstance(
	ctx context.Context, tenant string, key []byte, store Store, inst odsinstances.OdsInstance,
) (err error) {
	unlock := s.locks.Lock(tenant + "/" + strconv.Itoa(inst.ID))
	defer unlock()

	ctx, span := otel.StartSpan(ctx, s.tracer, otel.SpanRefreshInstance, tenant,
		otel.AttrInstanceID.Int(inst.ID))
	start := s.clock.Now()
	defer func() {
		s.metrics.RecordRefreshDuration(ctx, inst.ID, s.clock.Since(start), err == nil)
		otel.RecordError(span, err)
		span.End()
	}()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic while refreshing instance %d: %v", inst.ID, p)
		}
	}()

	connStr, ok := s.decrypter.TryDecrypt(inst.ConnectionString, key)
	if !ok {
		return fmt.Errorf("%w for ods instance %d", ErrDecryptionFailed, inst.ID)
	}

	results, err := s.source.Fetch(ctx, s.settings.Engine, connStr)
	if err != nil {
		return err
	}
	span.SetAttributes(otel.AttrResultCount.Int(len(results)))

	existing, err := store.ListByInstance(ctx, inst.ID)
	if err != nil {
		return err
	}

	cs := Reconcile(inst, existing, results, s.clock.Now().UTC())
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.Apply(ctx, inst.ID, cs); err != nil {
		return err
	}

	s.metrics.RecordOrganizationsTotal(ctx, inst.ID, int64(len(cs.Inserts)+len(cs.Updates)))
	slog.Info("Refreshed education organizations",
		"instance_id", inst.ID,
		"tenant", tenant,
		"inserted", len(cs.Inserts),
		"updated", len(cs.Updates),
		"deleted", len(cs.Deletes))
	return nil
}
