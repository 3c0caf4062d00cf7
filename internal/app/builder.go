package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/ed-fi-alliance/ods-admin-api/internal/api"
	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/edorg"
	"github.com/ed-fi-alliance/ods-admin-api/internal/encryption"
	"github.com/ed-fi-alliance/ods-admin-api/internal/jobs"
	"github.com/ed-fi-alliance/ods-admin-api/internal/status"
	"github.com/ed-fi-alliance/ods-admin-api/internal/telemetry"
	"github.com/ed-fi-alliance/ods-admin-api/internal/tenants"
)

const (
	defaultHTTPAddress    = ":8080"
	defaultRequestTimeout = 10 * time.Second
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 15 * time.Second
	defaultIdleTimeout    = 60 * time.Second

	// TracerName names the tracer shared by the job runner and the synchronizer
	TracerName = "github.com/ed-fi-alliance/ods-admin-api/jobs"
)

// AdminAppOptions configures the admin app builder
type AdminAppOptions func(*adminAppConfig) error

// adminAppConfig collects the options of NewAdminApp. Overrides exist mainly
// for tests; production wiring falls back to defaults.
type adminAppConfig struct {
	config *config.Config

	encryptionKey string
	opener        db.OpenFunc
	clock         clock.Clock
	edorgOptions  []edorg.Option

	// HTTP server options
	address        string
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration

	// Telemetry components
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

func baseConfig(opts ...AdminAppOptions) (*adminAppConfig, error) {
	cfg := &adminAppConfig{
		address:        defaultHTTPAddress,
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
		opener:         db.Open,
		clock:          clock.New(),
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// NewAdminApp wires the admin API from its configuration
func NewAdminApp(ctx context.Context, opts ...AdminAppOptions) (*AdminApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}
	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if cfg.encryptionKey == "" {
		// a missing key is not fatal here: refresh runs record it as their error
		cfg.encryptionKey, err = cfg.config.ResolveEncryptionKey(ctx, SecretKeySource)
		if err != nil {
			slog.Warn("Encryption key unavailable; refreshes will fail", "error", err)
		}
	}

	components, err := buildComponents(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build components: %w", err)
	}

	httpServer, err := buildHTTPServer(cfg, components)
	if err != nil {
		_ = components.Resolver.Close()
		return nil, fmt.Errorf("failed to build HTTP server: %w", err)
	}

	return &AdminApp{
		config:     cfg.config,
		components: components,
		httpServer: httpServer,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the HTTP server address
func WithAddress(addr string) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		if addr == "" {
			return fmt.Errorf("address cannot be empty")
		}

		host, port, ok := strings.Cut(addr, ":")
		if !ok || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares replaces the default HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithEncryptionKey sets the base64 key instead of resolving it from the configuration
func WithEncryptionKey(key string) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.encryptionKey = key
		return nil
	}
}

// WithOpener overrides how admin databases are opened (for testing)
func WithOpener(open db.OpenFunc) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		if open == nil {
			return fmt.Errorf("opener cannot be nil")
		}
		cfg.opener = open
		return nil
	}
}

// WithClock sets the clock driving periodic refreshes (for testing)
func WithClock(c clock.Clock) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.clock = c
		return nil
	}
}

// WithEdOrgOptions passes extra options to the education organization service (for testing)
func WithEdOrgOptions(opts ...edorg.Option) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.edorgOptions = append(cfg.edorgOptions, opts...)
		return nil
	}
}

// WithMeterProvider sets the OpenTelemetry meter provider
func WithMeterProvider(mp metric.MeterProvider) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.meterProvider = mp
		return nil
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) AdminAppOptions {
	return func(cfg *adminAppConfig) error {
		cfg.tracerProvider = tp
		return nil
	}
}

// SecretKeySource reads the encryption key from AWS Secrets Manager.
func SecretKeySource(ctx context.Context, c *config.AWSSecretsManagerConfig) (config.KeySource, error) {
	return encryption.NewSecretsManagerKeySource(ctx, c.SecretID,
		encryption.WithRegion(c.Region),
		encryption.WithEndpoint(c.Endpoint),
	)
}

// buildComponents wires the resolver, status store, job runtime and synchronizer
func buildComponents(b *adminAppConfig) (*AppComponents, error) {
	slog.Info("Initializing components",
		"engine", b.config.DatabaseEngine.String(),
		"multi_tenancy", b.config.MultiTenancy,
	)

	resolver := tenants.NewResolver(
		tenants.NewStaticProvider(b.config),
		b.config.DatabaseEngine,
		tenants.WithPoolOptions(b.config.GetPoolOptions()),
		tenants.WithDefaultConnectionString(b.config.ConnectionStrings.EdFiAdmin),
		tenants.WithOpener(b.opener),
	)
	statuses := status.NewDBStore(resolver, b.config.MultiTenancy)

	var tracer trace.Tracer
	if b.tracerProvider != nil {
		tracer = b.tracerProvider.Tracer(TracerName)
	}

	jobMetrics, err := telemetry.NewJobMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create job metrics: %w", err)
	}
	refreshMetrics, err := telemetry.NewRefreshMetrics(b.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh metrics: %w", err)
	}

	runner := jobs.NewRunner(statuses, jobs.WithJobMetrics(jobMetrics), jobs.WithRunnerTracer(tracer))
	scheduler := jobs.NewScheduler(runner, statuses, jobs.WithClock(b.clock))

	edorgOpts := append([]edorg.Option{
		edorg.WithRefreshMetrics(refreshMetrics),
		edorg.WithTracer(tracer),
	}, b.edorgOptions...)
	svc := edorg.NewService(edorg.Settings{
		MultiTenancy:   b.config.MultiTenancy,
		EncryptionKey:  b.encryptionKey,
		Engine:         b.config.DatabaseEngine,
		MaxParallelism: b.config.GetMaxParallelism(),
	}, resolver, encryption.NewProvider(), edorgOpts...)

	refresh := jobs.NewRefreshQueue(scheduler, jobs.NewRefreshJob(svc, b.config.MultiTenancy))

	slog.Info("Components initialized successfully")
	return &AppComponents{
		Resolver:               resolver,
		Statuses:               statuses,
		Scheduler:              scheduler,
		Refresh:                refresh,
		EducationOrganizations: svc,
	}, nil
}

// buildHTTPServer builds the HTTP server with router and middleware
func buildHTTPServer(b *adminAppConfig, c *AppComponents) (*http.Server, error) {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	// metrics and tracing go first so rejected requests are observed too
	var observability []func(http.Handler) http.Handler
	if b.tracerProvider != nil {
		observability = append(observability, telemetry.TracingMiddleware(b.tracerProvider))
	}
	if b.meterProvider != nil {
		metricsMiddleware, err := telemetry.MetricsMiddleware(b.meterProvider)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		observability = append(observability, metricsMiddleware)
	}
	b.middlewares = append(observability, b.middlewares...)

	router := api.NewServer(api.Dependencies{
		Enqueuer:     c.Refresh,
		Cache:        c.EducationOrganizations,
		Statuses:     c.Statuses,
		Readiness:    api.ReadinessFunc(readiness(b.config.MultiTenancy, c.Resolver)),
		MultiTenancy: b.config.MultiTenancy,
	}, api.WithMiddlewares(b.middlewares...))

	server := &http.Server{
		Addr:         b.address,
		Handler:      router,
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server, nil
}

// readiness pings the default admin database. In multi-tenant mode tenant
// databases are opened on demand, so the process is ready once configured.
func readiness(multiTenancy bool, resolver *tenants.Resolver) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if multiTenancy {
			return nil
		}
		h, err := resolver.Default(ctx)
		if err != nil {
			return err
		}
		return h.Ping(ctx)
	}
}
