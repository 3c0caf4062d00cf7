package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	adminapp "github.com/ed-fi-alliance/ods-admin-api/internal/app"
)

func newRefreshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the education organization cache once",
		Long: `Refresh the education organization cache of every ODS instance, or of a single
instance with --instance, and print the run id. In multi-tenant mode --tenant
selects the admin database. The command fails when the run ends in Error.`,
		Args: cobra.NoArgs,
		RunE: runRefresh,
	}
	cmd.Flags().String("tenant", "", "Tenant whose instances are refreshed (multi-tenant mode)")
	cmd.Flags().Int("instance", 0, "Refresh only this ODS instance id")
	addConfigFlag(cmd, false)
	return cmd
}

func runRefresh(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	tenant, err := cmd.Flags().GetString("tenant")
	if err != nil {
		return fmt.Errorf("failed to get tenant flag: %w", err)
	}
	var instanceID *int
	if cmd.Flags().Changed("instance") {
		id, err := cmd.Flags().GetInt("instance")
		if err != nil {
			return fmt.Errorf("failed to get instance flag: %w", err)
		}
		instanceID = &id
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.MultiTenancy && tenant == "" {
		return fmt.Errorf("--tenant is required when multi-tenancy is enabled")
	}

	tel, err := newTelemetry(ctx, cfg)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(tel)

	app, err := adminapp.NewAdminApp(ctx,
		adminapp.WithConfig(cfg),
		adminapp.WithMeterProvider(tel.MeterProvider()),
		adminapp.WithTracerProvider(tel.TracerProvider()),
	)
	if err != nil {
		return fmt.Errorf("failed to create admin API: %w", err)
	}
	defer func() {
		_ = app.Stop(defaultGracefulTimeout)
	}()

	start := time.Now()
	runID, err := app.Refresh(ctx, tenant, instanceID)
	if err != nil {
		return fmt.Errorf("refresh %s failed: %w", runID, err)
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s completed in %s\n", runID, time.Since(start).Round(time.Millisecond))
	return err
}
