// Package config defines the typed configuration records consumed by the
// connection manager, adapter, publisher, integration, and registry. It
// intentionally does not implement schema validation, secret-store
// integration, or hot-reload: those remain external collaborators per
// spec.md §1.
package config

import (
	"strings"
	"time"
)

// Environment identifies the runtime environment the collector operates
// in; carried through to telemetry attributes.
type Environment string

const (
	// EnvDev marks the development environment.
	EnvDev Environment = "dev"
	// EnvStaging marks the staging environment.
	EnvStaging Environment = "staging"
	// EnvProd marks the production environment.
	EnvProd Environment = "prod"
)

func normalizeExchangeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ConnectionConfig configures a single Connection Manager (spec.md §3).
type ConnectionConfig struct {
	// URL is the base URL (scheme + host[:port]); any path component is
	// stripped by the Connection Manager's URL builder.
	URL string `yaml:"url" json:"url"`

	ConnectTimeout    time.Duration `yaml:"connect_timeout" json:"connectTimeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeatInterval"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout" json:"heartbeatTimeout"`

	Retry RetryPolicy `yaml:"retry" json:"retry"`

	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Proxy   string            `yaml:"proxy,omitempty" json:"proxy,omitempty"`

	CombinedStream CombinedStreamConfig `yaml:"combined_stream" json:"combinedStream"`
}

// RetryPolicy controls reconnect backoff and the circuit breaker
// (spec.md §4.1 "Reconnect policy" / "Circuit breaker").
type RetryPolicy struct {
	MaxRetries   int           `yaml:"max_retries" json:"maxRetries"`
	InitialDelay time.Duration `yaml:"initial_delay" json:"initialDelay"`
	MaxDelay     time.Duration `yaml:"max_delay" json:"maxDelay"`
	BackoffBase  float64       `yaml:"backoff_base" json:"backoffBase"`
	JitterOn     bool          `yaml:"jitter_on" json:"jitterOn"`

	// CircuitThreshold is the number of consecutive failures (within the
	// rolling window) that opens the circuit breaker.
	CircuitThreshold int `yaml:"circuit_threshold" json:"circuitThreshold"`
	// CircuitWindow is the size of the rolling attempt window tracked by
	// the breaker.
	CircuitWindow int `yaml:"circuit_window" json:"circuitWindow"`
	// CircuitCooldown is how long the breaker stays open before admitting
	// a single half-open probe.
	CircuitCooldown time.Duration `yaml:"circuit_cooldown" json:"circuitCooldown"`
}

// Unlimited reports whether the policy allows unbounded reconnect
// attempts (MaxRetries <= 0).
func (p RetryPolicy) Unlimited() bool {
	return p.MaxRetries <= 0
}

// CombinedStreamConfig describes the exchange's combined-stream
// multiplexing extension (spec.md §3 "ConnectionConfig").
type CombinedStreamConfig struct {
	Streams      []string `yaml:"streams,omitempty" json:"streams,omitempty"`
	AutoManage   bool     `yaml:"auto_manage" json:"autoManage"`
	BatchDelayMs int      `yaml:"batch_delay_ms" json:"batchDelayMs"`
	MaxStreams   int      `yaml:"max_streams" json:"maxStreams"`

	// ControlMessagesPerSecond paces outbound stream control operations
	// (subscribe/unsubscribe batches, explicit control-frame sends) the
	// way exchanges like Binance cap control-message throughput.
	ControlMessagesPerSecond float64 `yaml:"control_messages_per_second" json:"controlMessagesPerSecond"`
	// ControlBurst is the token-bucket burst size paired with
	// ControlMessagesPerSecond.
	ControlBurst int `yaml:"control_burst" json:"controlBurst"`
}

// DefaultConnectionConfig returns sensible defaults grounded on the
// teacher's Binance adapter tuning constants.
func DefaultConnectionConfig(url string) ConnectionConfig {
	return ConnectionConfig{
		URL:               url,
		ConnectTimeout:    10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  5 * time.Second,
		Retry:             DefaultRetryPolicy(),
		CombinedStream: CombinedStreamConfig{
			AutoManage:               true,
			BatchDelayMs:             200,
			MaxStreams:               1024,
			ControlMessagesPerSecond: 5,
			ControlBurst:             1,
		},
	}
}

// DefaultRetryPolicy returns the reconnect/circuit-breaker defaults
// recorded as an Open Question decision in SPEC_FULL.md §6.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:       0, // unlimited; see RetryPolicy.Unlimited
		InitialDelay:     1 * time.Second,
		MaxDelay:         30 * time.Second,
		BackoffBase:      2.0,
		JitterOn:         true,
		CircuitThreshold: 5,
		CircuitWindow:    10,
		CircuitCooldown:  30 * time.Second,
	}
}

// PublisherConfig configures batching and retry for the Publisher
// (spec.md §4.3).
type PublisherConfig struct {
	EnableBatching bool          `yaml:"enable_batching" json:"enableBatching"`
	BatchSize      int           `yaml:"batch_size" json:"batchSize"`
	BatchTimeout   time.Duration `yaml:"batch_timeout" json:"batchTimeout"`
	MaxRetries     int           `yaml:"max_retries" json:"maxRetries"`
	InitialDelay   time.Duration `yaml:"initial_delay" json:"initialDelay"`
	MaxRetryDelay  time.Duration `yaml:"max_retry_delay" json:"maxRetryDelay"`
	TopicPrefix    string        `yaml:"topic_prefix" json:"topicPrefix"`
}

// DefaultPublisherConfig returns the Publisher's default batching/retry
// tuning.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{
		EnableBatching: true,
		BatchSize:      100,
		BatchTimeout:   200 * time.Millisecond,
		MaxRetries:     5,
		InitialDelay:   100 * time.Millisecond,
		MaxRetryDelay:  5 * time.Second,
		TopicPrefix:    "market-data",
	}
}

// DefaultSubscription is subscribed automatically by the Integration on
// start() (spec.md §4.4).
type DefaultSubscription struct {
	Symbols   []string `yaml:"symbols,omitempty" json:"symbols,omitempty"`
	DataTypes []string `yaml:"data_types,omitempty" json:"dataTypes,omitempty"`
}

// IntegrationConfig binds an Adapter to a Publisher inside the registry
// (spec.md §4.4). ExtraSettings is passed through to the adapter factory
// unmodified.
type IntegrationConfig struct {
	Name             string              `yaml:"name" json:"name"`
	Adapter          string              `yaml:"adapter" json:"adapter"`
	Connection       ConnectionConfig    `yaml:"connection" json:"connection"`
	Publisher        PublisherConfig     `yaml:"publisher" json:"publisher"`
	DefaultSubscribe DefaultSubscription `yaml:"default_subscribe,omitempty" json:"defaultSubscribe,omitempty"`
	StopGracePeriod  time.Duration       `yaml:"stop_grace_period" json:"stopGracePeriod"`
	ExtraSettings    map[string]any      `yaml:"settings,omitempty" json:"settings,omitempty"`
}

// DefaultIntegrationConfig returns sane defaults for a named adapter.
func DefaultIntegrationConfig(name, adapter, url string) IntegrationConfig {
	return IntegrationConfig{
		Name:            name,
		Adapter:         normalizeExchangeName(adapter),
		Connection:      DefaultConnectionConfig(url),
		Publisher:       DefaultPublisherConfig(),
		StopGracePeriod: 5 * time.Second,
	}
}

// RegistryConfig configures process-wide registry behavior, including
// optional persistence of enabled flags (SPEC_FULL.md §3 domain stack).
type RegistryConfig struct {
	PersistenceDSN string `yaml:"persistence_dsn,omitempty" json:"persistenceDSN,omitempty"`
}

// FileConfig is the top-level document decoded by LoadFile: a set of
// named integrations plus registry-wide settings.
type FileConfig struct {
	Environment  Environment                  `yaml:"environment" json:"environment"`
	Registry     RegistryConfig               `yaml:"registry" json:"registry"`
	Integrations map[string]IntegrationConfig `yaml:"integrations" json:"integrations"`
}
