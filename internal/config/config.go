// Package config handles vertexd configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order:
// ./config.yaml, ~/.config/vertexd/config.yaml, /config/config.yaml,
// /etc/vertexd/config.yaml. FindConfig checks an explicit path (from
// the --config flag) instead of these when one is given.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "vertexd", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/vertexd/config.yaml")
	return paths
}

// searchPathsFunc is overridden in tests to avoid finding real config
// files on developer/deploy machines.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// ListenConfig defines the HTTP/websocket listen address.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// ControlledTypeConfig is the rate-limit and buffering parameter set for
// one event kind in the CONTROLLED_TYPES table (spec.md §4.4/§6).
type ControlledTypeConfig struct {
	BufferSize        int     `yaml:"buffer_size"`
	TimeBufferingSecs float64 `yaml:"time_buffering"`
	MaxHits           int     `yaml:"max_hits"`
	HitsWindowSeconds int     `yaml:"hits_window_seconds"`
}

// TimeBuffering returns the time_buffering field as a time.Duration.
func (c ControlledTypeConfig) TimeBuffering() time.Duration {
	return time.Duration(c.TimeBufferingSecs * float64(time.Second))
}

// HitsWindow returns the hits_window_seconds field as a time.Duration.
func (c ControlledTypeConfig) HitsWindow() time.Duration {
	return time.Duration(c.HitsWindowSeconds) * time.Second
}

// PrometheusConfig controls the optional Prometheus metrics endpoint.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Config holds all vertexd configuration.
type Config struct {
	Listen  ListenConfig `yaml:"listen"`
	DataDir string       `yaml:"data_dir"`

	LogLevel string `yaml:"log_level"`

	// MaxPoWThreads bounds the mining worker pool (spec.md §4.5/§6).
	MaxPoWThreads int `yaml:"max_pow_threads"`

	// WSMaxSubsAddrsConn caps the number of addresses a single
	// websocket connection may subscribe to (spec.md §3/§6).
	WSMaxSubsAddrsConn int `yaml:"ws_max_subs_addrs_conn"`
	// WSMaxSubsAddrsEmpty caps how many of those subscriptions may be
	// to addresses with no ledger history (spec.md §3/§6).
	WSMaxSubsAddrsEmpty int `yaml:"ws_max_subs_addrs_empty"`

	// HathorTokenUID is the native-token identifier used to extract the
	// relevant balance record from WALLET_BALANCE_UPDATED (spec.md §6).
	HathorTokenUID string `yaml:"hathor_token_uid"`

	// ControlledTypes is the CONTROLLED_TYPES table (spec.md §4.4/§6):
	// event kind -> {buffer_size, time_buffering, max_hits, hits_window_seconds}.
	ControlledTypes map[string]ControlledTypeConfig `yaml:"controlled_types"`

	// Channels is the CHANNELS table (spec.md §4.4/§6): channel name ->
	// the event kinds it receives.
	Channels map[string][]string `yaml:"channels"`

	// AddressEvents lists event kinds subject to address-scoped
	// delivery instead of broadcast (spec.md §4.4/§6).
	AddressEvents []string `yaml:"address_events"`

	// MetricsIntervalSecs controls the dashboard:metrics broadcast
	// cadence (spec.md §4.4 "Metrics", default 1s).
	MetricsIntervalSecs float64 `yaml:"metrics_interval_seconds"`

	// Prometheus controls the /metrics pull-based sink wired alongside
	// the websocket push broadcaster (SPEC_FULL.md §4).
	Prometheus PrometheusConfig `yaml:"prometheus"`
}

// MetricsInterval returns the metrics broadcast cadence as a time.Duration.
func (c *Config) MetricsInterval() time.Duration {
	return time.Duration(c.MetricsIntervalSecs * float64(time.Second))
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, and validates the
// result. After Load returns successfully, all fields are usable
// without additional nil/empty checks.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${DATA_DIR}). Convenience for
	// container deployments; values can also go directly in the file.
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.MaxPoWThreads == 0 {
		c.MaxPoWThreads = 4
	}
	if c.WSMaxSubsAddrsConn == 0 {
		c.WSMaxSubsAddrsConn = 40
	}
	if c.WSMaxSubsAddrsEmpty == 0 {
		c.WSMaxSubsAddrsEmpty = 20
	}
	if c.HathorTokenUID == "" {
		c.HathorTokenUID = "00"
	}
	if c.MetricsIntervalSecs == 0 {
		c.MetricsIntervalSecs = 1.0
	}
	if c.ControlledTypes == nil {
		c.ControlledTypes = DefaultControlledTypes()
	}
	if c.Channels == nil {
		c.Channels = DefaultChannels()
	}
	if c.AddressEvents == nil {
		c.AddressEvents = DefaultAddressEvents()
	}
	if c.Prometheus.Port == 0 {
		c.Prometheus.Port = 9090
	}
}

// DefaultControlledTypes returns the CONTROLLED_TYPES table as shipped
// by the reference node implementation (spec.md §6, grounded on
// original_source/hathor/websocket/factory.py).
func DefaultControlledTypes() map[string]ControlledTypeConfig {
	return map[string]ControlledTypeConfig{
		"network:new_tx_accepted": {BufferSize: 20, TimeBufferingSecs: 0.1, MaxHits: 20, HitsWindowSeconds: 2},
		"wallet:output_received":  {BufferSize: 20, TimeBufferingSecs: 0.1, MaxHits: 10, HitsWindowSeconds: 2},
		"wallet:output_spent":     {BufferSize: 20, TimeBufferingSecs: 0.1, MaxHits: 10, HitsWindowSeconds: 2},
		"wallet:balance_updated":  {BufferSize: 3, TimeBufferingSecs: 0.4, MaxHits: 3, HitsWindowSeconds: 1},
	}
}

// DefaultChannels returns the CHANNELS table (spec.md §3/§6).
func DefaultChannels() map[string][]string {
	return map[string][]string{
		"wallet-service": {"network:new_tx_accepted"},
	}
}

// DefaultAddressEvents returns the ADDRESS_EVENTS list (spec.md §3/§6).
func DefaultAddressEvents() []string {
	return []string{
		"wallet:address_history",
		"wallet:element_winner",
		"wallet:element_voided",
	}
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults, so it can assume defaults are populated.
// Returns an error describing the first problem found, or nil.
func (c *Config) Validate() error {
	if c.Listen.Port < 1 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range (1-65535)", c.Listen.Port)
	}
	if c.MaxPoWThreads < 1 {
		return fmt.Errorf("max_pow_threads must be positive, got %d", c.MaxPoWThreads)
	}
	if c.WSMaxSubsAddrsConn < 1 {
		return fmt.Errorf("ws_max_subs_addrs_conn must be positive, got %d", c.WSMaxSubsAddrsConn)
	}
	if c.WSMaxSubsAddrsEmpty < 0 {
		return fmt.Errorf("ws_max_subs_addrs_empty must not be negative, got %d", c.WSMaxSubsAddrsEmpty)
	}
	if c.Prometheus.Enabled && (c.Prometheus.Port < 1 || c.Prometheus.Port > 65535) {
		return fmt.Errorf("prometheus.port %d out of range (1-65535)", c.Prometheus.Port)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	for kind, ct := range c.ControlledTypes {
		if ct.BufferSize < 1 {
			return fmt.Errorf("controlled_types[%s].buffer_size must be positive, got %d", kind, ct.BufferSize)
		}
		if ct.MaxHits < 1 {
			return fmt.Errorf("controlled_types[%s].max_hits must be positive, got %d", kind, ct.MaxHits)
		}
	}
	return nil
}

// Default returns a default configuration suitable for local development.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
