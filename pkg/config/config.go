package config

import (
	"time"
)

// Config represents the main configuration for a seed node
type Config struct {
	Seed    SeedConfig    `yaml:"seed"`
	Admin   AdminConfig   `yaml:"admin"`
	Tor     TorConfig     `yaml:"tor"`
	Logging LoggingConfig `yaml:"logging"`
}

// SeedConfig contains the peer-discovery engine configuration
type SeedConfig struct {
	Port               int           `yaml:"port"`                 // Hidden service virtual port
	MaxPeers           int           `yaml:"max_peers"`            // Registry capacity
	RateLimitPerMinute uint32        `yaml:"rate_limit_per_min"`   // Per-peer discovery requests per minute
	CleanupInterval    time.Duration `yaml:"cleanup_interval"`     // Reaper period
	InactivityLimit    time.Duration `yaml:"inactivity_limit"`     // Age beyond which a peer is reaped
	ActivityWindow     time.Duration `yaml:"activity_window"`      // Age within which a peer is discoverable
	MaxDiscoveryPeers  uint16        `yaml:"max_discovery_peers"`  // Hard ceiling on results per discovery
	RequestTimeout     time.Duration `yaml:"request_timeout"`      // Per-connection read/write deadline
	ShutdownGrace      time.Duration `yaml:"shutdown_grace"`       // Bounded wait for in-flight work on stop
	Verbose            bool          `yaml:"verbose"`              // Per-connection debug logging
}

// AdminConfig contains the local status endpoint configuration
type AdminConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"` // Loopback only; never exposed to the mesh
}

// TorConfig contains the anonymizing-transport integration configuration.
// Bringing up the hidden service itself is external; these values are handed
// to whatever transport implementation is wired in.
type TorConfig struct {
	DataDir   string `yaml:"data_dir"`   // Hidden service key material directory
	SocksAddr string `yaml:"socks_addr"` // SOCKS5 proxy for outbound mesh streams
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Colors     bool   `yaml:"colors"`      // ANSI colors on stdout
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Seed: SeedConfig{
			Port:               12345,
			MaxPeers:           500,
			RateLimitPerMinute: 60,
			CleanupInterval:    180 * time.Second,
			InactivityLimit:    300 * time.Second,
			ActivityWindow:     300 * time.Second,
			MaxDiscoveryPeers:  50,
			RequestTimeout:     30 * time.Second,
			ShutdownGrace:      5 * time.Second,
			Verbose:            false,
		},
		Admin: AdminConfig{
			Enabled:    true,
			ListenAddr: "127.0.0.1:7190",
		},
		Tor: TorConfig{
			DataDir:   "./data/seed",
			SocksAddr: "127.0.0.1:9050",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Colors: true,
		},
	}
}
