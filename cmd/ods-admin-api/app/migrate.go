package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ed-fi-alliance/ods-admin-api/database"
	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/tenants"
)

// migrationTarget is one admin database to migrate.
type migrationTarget struct {
	// Tenant is empty outside multi-tenancy
	Tenant  string
	ConnStr string
}

func (t migrationTarget) label() string {
	if t.Tenant == "" {
		return "default admin database"
	}
	return fmt.Sprintf("admin database of tenant %q", t.Tenant)
}

type migrateFunc func(ctx context.Context, engine db.Engine, connStr string) error

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long: `Database migration tool for the adminapi schema. Use with 'up' or 'down'
subcommands. In multi-tenant mode every tenant's admin database is migrated
unless --tenant selects one.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().String("tenant", "", "Migrate only this tenant's admin database")
	addConfigFlag(cmd, true)

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateDownCmd())
	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending database migrations",
		Long: `Apply all pending migrations to bring the adminapi schema up to date.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, "apply migrations to", database.Up)
		},
	}
}

func newMigrateDownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Migrate the database down",
		Long: `Migrate the adminapi schema down by reverting migrations.
WARNING: This operation drops the job status and education organization tables.

Examples:
  # Migrate down by 1 step
  ods-admin-api migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way
  ods-admin-api migrate down --config config.yaml --yes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			steps, err := cmd.Flags().GetUint("num-steps")
			if err != nil {
				return fmt.Errorf("failed to get num-steps flag: %w", err)
			}
			action := "revert ALL migrations on"
			if steps > 0 {
				action = fmt.Sprintf("revert %d migration(s) on", steps)
			}
			return runMigrate(cmd, action, func(ctx context.Context, engine db.Engine, connStr string) error {
				return database.Down(ctx, engine, connStr, int(steps))
			})
		},
	}
	cmd.Flags().UintP("num-steps", "n", 0, "Number of steps to migrate down (0 = all)")
	return cmd
}

func runMigrate(cmd *cobra.Command, action string, migrateDB migrateFunc) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	tenant, err := cmd.Flags().GetString("tenant")
	if err != nil {
		return fmt.Errorf("failed to get tenant flag: %w", err)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	targets, err := migrationTargets(cfg, tenant)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	for _, target := range targets {
		if !yes {
			ok, err := confirm(in, cmd.OutOrStdout(),
				fmt.Sprintf("About to %s the %s.", action, target.label()))
			if err != nil {
				return err
			}
			if !ok {
				slog.Info("Migration cancelled by user", "tenant", target.Tenant)
				continue
			}
		}

		slog.Info("Migrating admin database", "tenant", target.Tenant, "engine", cfg.DatabaseEngine.String())
		if err := migrateDB(cmd.Context(), cfg.DatabaseEngine, target.ConnStr); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", target.label(), err)
		}
	}
	return nil
}

// migrationTargets lists the admin databases of cfg, restricted to tenant
// when it is set.
func migrationTargets(cfg *config.Config, tenant string) ([]migrationTarget, error) {
	if !cfg.MultiTenancy {
		if tenant != "" {
			return nil, fmt.Errorf("--tenant requires multi-tenancy to be enabled")
		}
		return []migrationTarget{{ConnStr: cfg.ConnectionStrings.EdFiAdmin}}, nil
	}

	provider := tenants.NewStaticProvider(cfg)
	all := provider.Get()
	if tenant != "" {
		t, ok := all[tenant]
		if !ok {
			return nil, fmt.Errorf("%w: %s", tenants.ErrTenantNotFound, tenant)
		}
		return []migrationTarget{{Tenant: tenant, ConnStr: t.AdminConnectionString}}, nil
	}

	ids := tenants.IDs(provider)
	targets := make([]migrationTarget, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, migrationTarget{Tenant: id, ConnStr: all[id].AdminConnectionString})
	}
	return targets, nil
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) (bool, error) {
	if _, err := fmt.Fprintf(out, "%s Continue? (yes/no): ", prompt); err != nil {
		return false, err
	}
	response, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("failed to read user input: %w", err)
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "yes" || response == "y", nil
}
