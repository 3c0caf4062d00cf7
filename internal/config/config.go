// Package config provides configuration loading and management for the admin API.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ed-fi-alliance/ods-admin-api/internal/db"
	"github.com/ed-fi-alliance/ods-admin-api/internal/telemetry"
)

const (
	// DefaultMaxParallelism bounds how many ODS instances are refreshed at once.
	DefaultMaxParallelism = 10

	// EnvPrefix prefixes the environment variables read through viper.
	EnvPrefix = "ODS_ADMIN_API"

	// EncryptionKeyEnvVar is consulted when no key file or secret is configured.
	EncryptionKeyEnvVar = "ODS_ADMIN_API_ENCRYPTION_KEY"
)

// ErrMissingEncryptionKey is returned when no encryption key source yields a key.
var ErrMissingEncryptionKey = errors.New("encryption key is not configured")

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// MultiTenancy routes every request and job to a tenant-specific admin database
	MultiTenancy bool `yaml:"multiTenancy"`

	// DatabaseEngine selects SqlServer or PostgreSql for the admin and ODS databases
	DatabaseEngine db.Engine `yaml:"databaseEngine"`

	// EncryptionKey is the base64 key protecting ODS connection strings.
	// Prefer EncryptionKeyFile or EncryptionKeySecret outside development.
	EncryptionKey string `yaml:"encryptionKey,omitempty"`

	// EncryptionKeyFile is a path to a file holding the base64 key
	EncryptionKeyFile string `yaml:"encryptionKeyFile,omitempty"`

	// EncryptionKeySecret reads the key from a secret store
	EncryptionKeySecret *EncryptionKeySecretConfig `yaml:"encryptionKeySecret,omitempty"`

	// MaxParallelism caps concurrent ODS instance refreshes (default 10)
	MaxParallelism int `yaml:"maxParallelism,omitempty"`

	// ConnectionStrings are the admin databases used when multi-tenancy is off
	ConnectionStrings ConnectionStrings `yaml:"connectionStrings"`

	// Tenants maps tenant identifiers to their databases when multi-tenancy is on
	Tenants map[string]TenantConfig `yaml:"tenants,omitempty"`

	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Jobs      *JobsConfig       `yaml:"jobs,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// ConnectionStrings holds the administrative database connection strings
type ConnectionStrings struct {
	EdFiAdmin    string `yaml:"edFiAdmin"`
	EdFiSecurity string `yaml:"edFiSecurity,omitempty"`
}

// TenantConfig defines a single tenant
type TenantConfig struct {
	ConnectionStrings ConnectionStrings `yaml:"connectionStrings"`
}

// EncryptionKeySecretConfig selects a secret store for the encryption key
type EncryptionKeySecretConfig struct {
	AWSSecretsManager *AWSSecretsManagerConfig `yaml:"awsSecretsManager,omitempty"`
}

// AWSSecretsManagerConfig points at an AWS Secrets Manager secret
type AWSSecretsManagerConfig struct {
	SecretID string `yaml:"secretId"`
	Region   string `yaml:"region,omitempty"`
	// Endpoint overrides the service endpoint, e.g. for LocalStack
	Endpoint string `yaml:"endpoint,omitempty"`
}

// DatabaseConfig defines connection pool settings shared by all admin databases
type DatabaseConfig struct {
	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// JobsConfig defines background job settings
type JobsConfig struct {
	// RefreshInterval schedules a recurring education organization refresh.
	// Empty disables the recurring job.
	RefreshInterval string `yaml:"refreshInterval,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetMaxParallelism returns the refresh parallelism, using the default if unset
func (c *Config) GetMaxParallelism() int {
	if c.MaxParallelism <= 0 {
		return DefaultMaxParallelism
	}
	return c.MaxParallelism
}

// GetRefreshInterval returns the recurring refresh interval, or zero when disabled
func (c *Config) GetRefreshInterval() time.Duration {
	if c.Jobs == nil || c.Jobs.RefreshInterval == "" {
		return 0
	}
	// validated on load
	d, _ := time.ParseDuration(c.Jobs.RefreshInterval)
	return d
}

// GetPoolOptions converts the database settings into pool options
func (c *Config) GetPoolOptions() db.PoolOptions {
	if c.Database == nil {
		return db.PoolOptions{}
	}
	opts := db.PoolOptions{
		MaxOpenConns: c.Database.MaxOpenConns,
		MaxIdleConns: c.Database.MaxIdleConns,
	}
	if c.Database.ConnMaxLifetime != "" {
		// validated on load
		opts.ConnMaxLifetime, _ = time.ParseDuration(c.Database.ConnMaxLifetime)
	}
	return opts
}

// KeySource yields a base64 encryption key from an external store.
type KeySource interface {
	Key(ctx context.Context) (string, error)
}

// SecretKeySourceFactory builds a KeySource for an AWS Secrets Manager secret.
type SecretKeySourceFactory func(ctx context.Context, cfg *AWSSecretsManagerConfig) (KeySource, error)

// ResolveEncryptionKey returns the base64 encryption key using the following priority:
// 1. Read from EncryptionKeyFile if specified
// 2. Read from EncryptionKeySecret if specified
// 3. Read from the ODS_ADMIN_API_ENCRYPTION_KEY environment variable
// 4. The inline EncryptionKey value
//
// ErrMissingEncryptionKey is returned when no source yields a key.
func (c *Config) ResolveEncryptionKey(ctx context.Context, newSecretSource SecretKeySourceFactory) (string, error) {
	if c.EncryptionKeyFile != "" {
		data, err := os.ReadFile(filepath.Clean(c.EncryptionKeyFile))
		if err != nil {
			return "", fmt.Errorf("failed to read encryption key from file %s: %w", c.EncryptionKeyFile, err)
		}
		if key := strings.TrimSpace(string(data)); key != "" {
			return key, nil
		}
		return "", fmt.Errorf("%w: %s is empty", ErrMissingEncryptionKey, c.EncryptionKeyFile)
	}

	if c.EncryptionKeySecret != nil && c.EncryptionKeySecret.AWSSecretsManager != nil {
		if newSecretSource == nil {
			return "", fmt.Errorf("no secret store client available for encryptionKeySecret")
		}
		src, err := newSecretSource(ctx, c.EncryptionKeySecret.AWSSecretsManager)
		if err != nil {
			return "", fmt.Errorf("failed to create secret key source: %w", err)
		}
		key, err := src.Key(ctx)
		if err != nil {
			return "", err
		}
		if key == "" {
			return "", fmt.Errorf("%w: secret %s is empty", ErrMissingEncryptionKey, c.EncryptionKeySecret.AWSSecretsManager.SecretID)
		}
		return key, nil
	}

	if envKey := os.Getenv(EncryptionKeyEnvVar); envKey != "" {
		return envKey, nil
	}

	if c.EncryptionKey != "" {
		return c.EncryptionKey, nil
	}

	return "", fmt.Errorf("%w: set encryptionKeyFile, encryptionKeySecret or %s", ErrMissingEncryptionKey, EncryptionKeyEnvVar)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if !c.DatabaseEngine.Valid() {
		errs = append(errs, fmt.Errorf("databaseEngine: %w", db.ErrUnsupportedEngine))
	}

	if c.MaxParallelism < 0 {
		errs = append(errs, fmt.Errorf("maxParallelism must be at least 1, got %d", c.MaxParallelism))
	}

	if c.MultiTenancy {
		if len(c.Tenants) == 0 {
			errs = append(errs, fmt.Errorf("at least one tenant must be configured when multiTenancy is enabled"))
		}
		for id, tenant := range c.Tenants {
			if strings.TrimSpace(id) == "" {
				errs = append(errs, fmt.Errorf("tenant identifier cannot be empty"))
				continue
			}
			if tenant.ConnectionStrings.EdFiAdmin == "" {
				errs = append(errs, fmt.Errorf("tenants.%s: connectionStrings.edFiAdmin is required", id))
			}
		}
	} else if c.ConnectionStrings.EdFiAdmin == "" {
		errs = append(errs, fmt.Errorf("connectionStrings.edFiAdmin is required"))
	}

	if secret := c.EncryptionKeySecret; secret != nil {
		if secret.AWSSecretsManager == nil {
			errs = append(errs, fmt.Errorf("encryptionKeySecret: awsSecretsManager must be specified"))
		} else if secret.AWSSecretsManager.SecretID == "" {
			errs = append(errs, fmt.Errorf("encryptionKeySecret.awsSecretsManager.secretId is required"))
		}
	}

	if c.Database != nil && c.Database.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Database.ConnMaxLifetime); err != nil {
			errs = append(errs, fmt.Errorf("database.connMaxLifetime must be a valid duration: %w", err))
		}
	}

	if c.Jobs != nil && c.Jobs.RefreshInterval != "" {
		d, err := time.ParseDuration(c.Jobs.RefreshInterval)
		if err != nil {
			errs = append(errs, fmt.Errorf("jobs.refreshInterval must be a valid duration (e.g., '30m', '1h'): %w", err))
		} else if d <= 0 {
			errs = append(errs, fmt.Errorf("jobs.refreshInterval must be positive"))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
