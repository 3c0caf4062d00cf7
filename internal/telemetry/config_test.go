package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	t.Parallel()

	empty := &Config{}
	assert.Equal(t, DefaultServiceName, empty.GetServiceName())
	assert.Equal(t, "unknown", empty.GetServiceVersion())
	assert.Equal(t, DefaultEndpoint, empty.GetEndpoint())

	set := &Config{ServiceName: "admin", ServiceVersion: "2.3.0", Endpoint: "collector:4318"}
	assert.Equal(t, "admin", set.GetServiceName())
	assert.Equal(t, "2.3.0", set.GetServiceVersion())
	assert.Equal(t, "collector:4318", set.GetEndpoint())

	assert.Equal(t, DefaultSampling, (&TracingConfig{}).GetSampling())
	assert.Equal(t, 0.5, (&TracingConfig{Sampling: 0.5}).GetSampling())

	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{}).GetInterval())
	assert.Equal(t, DefaultMetricsInterval, (&MetricsConfig{Interval: "soon"}).GetInterval())
	assert.Equal(t, 15*time.Second, (&MetricsConfig{Interval: "15s"}).GetInterval())
}

func TestConfigSignals(t *testing.T) {
	t.Parallel()

	var nilCfg *Config
	assert.False(t, nilCfg.tracingEnabled())
	assert.False(t, nilCfg.metricsEnabled())

	off := &Config{Tracing: &TracingConfig{Enabled: true}, Metrics: &MetricsConfig{Enabled: true}}
	assert.False(t, off.tracingEnabled(), "global switch wins")
	assert.False(t, off.metricsEnabled())

	on := &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true}}
	assert.True(t, on.tracingEnabled())
	assert.False(t, on.metricsEnabled())
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{name: "nil config", config: nil},
		{
			name:   "disabled ignores invalid values",
			config: &Config{Enabled: false, Endpoint: "http://x", Tracing: &TracingConfig{Sampling: 7}},
		},
		{
			name: "valid",
			config: &Config{
				Enabled:  true,
				Endpoint: "otel-collector:4318",
				Tracing:  &TracingConfig{Enabled: true, Sampling: 1},
				Metrics:  &MetricsConfig{Enabled: true, Interval: "30s"},
			},
		},
		{
			name:    "endpoint with scheme",
			config:  &Config{Enabled: true, Endpoint: "https://collector:4318"},
			wantErr: "without a scheme",
		},
		{
			name:    "sampling above one",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Enabled: true, Sampling: 1.5}},
			wantErr: "sampling must be between",
		},
		{
			name:    "negative sampling",
			config:  &Config{Enabled: true, Tracing: &TracingConfig{Sampling: -0.1}},
			wantErr: "sampling must be between",
		},
		{
			name:    "bad interval",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "often"}},
			wantErr: "interval must be a valid duration",
		},
		{
			name:    "interval too short",
			config:  &Config{Enabled: true, Metrics: &MetricsConfig{Enabled: true, Interval: "10ms"}},
			wantErr: "at least 1s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.config.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}
