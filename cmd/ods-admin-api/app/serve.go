package app

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	adminapp "github.com/ed-fi-alliance/ods-admin-api/internal/app"
	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/telemetry"
	"github.com/ed-fi-alliance/ods-admin-api/internal/versions"
)

const defaultGracefulTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the admin API server",
		Long: `Start the admin API server.

The server requires a configuration file (--config) that specifies:
- The database engine and the admin database connection string(s)
- Multi-tenancy and the tenant databases
- The encryption key source and the refresh schedule`,
		RunE: runServe,
	}
	cmd.Flags().String("address", ":8080", "Address to listen on")
	addConfigFlag(cmd, false)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	address, err := cmd.Flags().GetString("address")
	if err != nil {
		return fmt.Errorf("failed to get address flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(tel)

	app, err := adminapp.NewAdminApp(ctx,
		adminapp.WithConfig(cfg),
		adminapp.WithAddress(address),
		adminapp.WithMeterProvider(tel.MeterProvider()),
		adminapp.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create admin API: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Start()
	}()

	select {
	case err := <-errCh:
		// the server never came up; release jobs and connections
		if stopErr := app.Stop(defaultGracefulTimeout); stopErr != nil {
			slog.Error("Failed to stop admin API", "error", stopErr)
		}
		return err
	case <-ctx.Done():
	}

	if err := app.Stop(defaultGracefulTimeout); err != nil {
		return err
	}
	return <-errCh
}

func newTelemetry(ctx context.Context, cfg *config.Config) (*telemetry.Telemetry, error) {
	telCfg := cfg.Telemetry
	if telCfg != nil && telCfg.ServiceVersion == "" {
		withVersion := *telCfg
		withVersion.ServiceVersion = versions.Version
		telCfg = &withVersion
	}
	tel, err := telemetry.New(ctx, telCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return tel, nil
}

func shutdownTelemetry(tel *telemetry.Telemetry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tel.Shutdown(ctx); err != nil {
		slog.Error("Failed to shut down telemetry", "error", err)
	}
}
