// Package tenants maps tenant identifiers to their administrative databases.
package tenants

import (
	"maps"
	"slices"

	"github.com/ed-fi-alliance/ods-admin-api/internal/config"
)

// Configuration describes one tenant's databases.
type Configuration struct {
	TenantID                 string
	AdminConnectionString    string
	SecurityConnectionString string
}

// Provider supplies a read-only snapshot of the configured tenants.
type Provider interface {
	Get() map[string]Configuration
}

// StaticProvider serves the tenants declared in the configuration file.
type StaticProvider struct {
	tenants map[string]Configuration
}

var _ Provider = (*StaticProvider)(nil)

// NewStaticProvider builds a provider from the tenants section of cfg.
func NewStaticProvider(cfg *config.Config) *StaticProvider {
	tenants := make(map[string]Configuration, len(cfg.Tenants))
	for id, t := range cfg.Tenants {
		tenants[id] = Configuration{
			TenantID:                 id,
			AdminConnectionString:    t.ConnectionStrings.EdFiAdmin,
			SecurityConnectionString: t.ConnectionStrings.EdFiSecurity,
		}
	}
	return &StaticProvider{tenants: tenants}
}

// NewProviderFromMap is used by callers that already hold tenant configurations.
func NewProviderFromMap(tenants map[string]Configuration) *StaticProvider {
	return &StaticProvider{tenants: maps.Clone(tenants)}
}

// Get returns a copy of the tenant map.
func (p *StaticProvider) Get() map[string]Configuration {
	return maps.Clone(p.tenants)
}

// IDs returns the tenant identifiers of p in lexical order.
func IDs(p Provider) []string {
	return slices.Sorted(maps.Keys(p.Get()))
}
