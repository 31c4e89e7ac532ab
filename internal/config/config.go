// Package config loads the relay's YAML configuration file into typed
// settings for the server, TLS, and coordinator layers, following the
// teacher relay's internal/cli loadConfig shape.
package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level shape of config.relay.yaml.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Relay         RelayConfig         `yaml:"relay"`
	Coordinator   CoordinatorConfig   `yaml:"coordinator"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig selects which OTLP/gRPC collectors tracing and log
// export send to, and whether Prometheus metrics are recorded. Empty
// addresses disable the corresponding signal.
type ObservabilityConfig struct {
	TraceAddr string `yaml:"trace_addr"`
	LogAddr   string `yaml:"log_addr"`
	Metrics   bool   `yaml:"metrics"`
}

// ServerConfig carries listener and TLS settings.
type ServerConfig struct {
	Address     string `yaml:"address"`
	CertFile    string `yaml:"cert_file"`
	KeyFile     string `yaml:"key_file"`
	MetricsAddr string `yaml:"metrics_addr"`
	HealthAddr  string `yaml:"health_addr"`
}

// RelayConfig mirrors relay.Config's YAML-facing fields.
type RelayConfig struct {
	NodeID      string        `yaml:"node_id"`
	AnnounceURL string        `yaml:"announce_url"`
	QLogDir     string        `yaml:"qlog_dir"`
	MLogDir     string        `yaml:"mlog_dir"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	KeepAlive   time.Duration `yaml:"keep_alive"`
	Dev         bool          `yaml:"dev"`
	QLogServe   bool          `yaml:"qlog_serve"`
	MLogServe   bool          `yaml:"mlog_serve"`
}

// CoordinatorConfig selects and configures the namespace-registry
// backend: "file" for a single shared filesystem, "api" for a shared
// HTTP registry (moq-api-ietf-style), or empty/"none" for a standalone
// relay with no cross-instance lookup.
type CoordinatorConfig struct {
	Backend string `yaml:"backend"`

	File struct {
		Path string `yaml:"path"`
	} `yaml:"file"`

	API struct {
		URL             string        `yaml:"url"`
		RegistrationTTL time.Duration `yaml:"registration_ttl"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
	} `yaml:"api"`
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.Relay.NodeID == "" {
		return nil, fmt.Errorf("config: relay.node_id is required")
	}
	return &cfg, nil
}

// NodeURL parses Relay.NodeID as the URL this instance advertises to
// the coordinator as its origin.
func (c *Config) NodeURL() (*url.URL, error) {
	u, err := url.Parse(c.Relay.NodeID)
	if err != nil {
		return nil, fmt.Errorf("config: relay.node_id %q: %w", c.Relay.NodeID, err)
	}
	return u, nil
}
