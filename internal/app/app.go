// Package app provides application lifecycle management for the admin API.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/tenants"
)

// AdminApp encapsulates the HTTP server and the background job runtime
type AdminApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
}

// Start schedules periodic refreshes and serves HTTP on the configured address.
// It blocks until the server stops.
func (app *AdminApp) Start() error {
	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	return app.Serve(listener)
}

// Serve is Start on an existing listener.
func (app *AdminApp) Serve(listener net.Listener) error {
	if err := app.schedulePeriodicRefresh(); err != nil {
		_ = listener.Close()
		return err
	}

	slog.Info("Server listening", "address", listener.Addr().String())
	if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// schedulePeriodicRefresh registers one recurring refresh per tenant, or a
// single one outside multi-tenancy.
func (app *AdminApp) schedulePeriodicRefresh() error {
	interval := app.config.GetRefreshInterval()
	if interval <= 0 {
		return nil
	}

	targets := []string{""}
	if app.config.MultiTenancy {
		targets = tenants.IDs(tenants.NewStaticProvider(app.config))
	}
	for _, tenant := range targets {
		if err := app.components.Refresh.SchedulePeriodic(tenant, interval); err != nil {
			return fmt.Errorf("failed to schedule refresh for tenant %q: %w", tenant, err)
		}
	}
	return nil
}

// Refresh runs one refresh synchronously and returns its run id.
func (app *AdminApp) Refresh(ctx context.Context, tenant string, instanceID *int) (string, error) {
	return app.components.Refresh.RefreshNow(ctx, tenant, instanceID)
}

// Stop shuts down the HTTP server, waits for running jobs and closes the
// admin database handles.
func (app *AdminApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
	}

	app.components.Scheduler.Stop()

	if err := app.components.Resolver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close admin databases: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	slog.Info("Server shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *AdminApp) GetConfig() *config.Config {
	return app.config
}

// GetHTTPServer returns the HTTP server
func (app *AdminApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
