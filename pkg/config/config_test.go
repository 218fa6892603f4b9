package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config failed validation: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero port", func(c *Config) { c.Seed.Port = 0 }, "seed.port"},
		{"port too high", func(c *Config) { c.Seed.Port = 70000 }, "seed.port"},
		{"zero max peers", func(c *Config) { c.Seed.MaxPeers = 0 }, "seed.max_peers"},
		{"zero rate limit", func(c *Config) { c.Seed.RateLimitPerMinute = 0 }, "seed.rate_limit_per_min"},
		{"negative cleanup", func(c *Config) { c.Seed.CleanupInterval = -time.Second }, "seed.cleanup_interval"},
		{"zero inactivity", func(c *Config) { c.Seed.InactivityLimit = 0 }, "seed.inactivity_limit"},
		{"zero activity window", func(c *Config) { c.Seed.ActivityWindow = 0 }, "seed.activity_window"},
		{
			"activity window beyond inactivity limit",
			func(c *Config) { c.Seed.ActivityWindow = c.Seed.InactivityLimit + time.Second },
			"activity_window",
		},
		{"zero discovery ceiling", func(c *Config) { c.Seed.MaxDiscoveryPeers = 0 }, "seed.max_discovery_peers"},
		{"zero request timeout", func(c *Config) { c.Seed.RequestTimeout = 0 }, "seed.request_timeout"},
		{"admin addr not host:port", func(c *Config) { c.Admin.ListenAddr = "localhost" }, "admin.listen_addr"},
		{"admin addr not loopback", func(c *Config) { c.Admin.ListenAddr = "0.0.0.0:7190" }, "loopback"},
		{"socks addr not host:port", func(c *Config) { c.Tor.SocksAddr = "9050" }, "tor.socks_addr"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() accepted a bad config")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestValidateSkipsDisabledAdmin(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Admin.Enabled = false
	cfg.Admin.ListenAddr = "not an address"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() checked the listen addr of a disabled admin endpoint: %v", err)
	}
}

func TestLoadFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := `
seed:
  port: 23456
  max_peers: 100
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Seed.Port != 23456 {
		t.Errorf("Seed.Port = %d, want 23456", cfg.Seed.Port)
	}
	if cfg.Seed.MaxPeers != 100 {
		t.Errorf("Seed.MaxPeers = %d, want 100", cfg.Seed.MaxPeers)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Seed.RateLimitPerMinute != 60 {
		t.Errorf("Seed.RateLimitPerMinute = %d, want default 60", cfg.Seed.RateLimitPerMinute)
	}
	if cfg.Admin.ListenAddr != "127.0.0.1:7190" {
		t.Errorf("Admin.ListenAddr = %q, want default", cfg.Admin.ListenAddr)
	}
}

func TestLoadFileRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := `
seed:
  port: 23456
  max_connections: 10
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Fatal("LoadFile() accepted a config with an unknown key")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadFile() succeeded on a missing file")
	}
}

func TestDurationKeysParse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := `
seed:
  cleanup_interval: 90s
  inactivity_limit: 10m
  activity_window: 5m
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if cfg.Seed.CleanupInterval != 90*time.Second {
		t.Errorf("CleanupInterval = %s, want 90s", cfg.Seed.CleanupInterval)
	}
	if cfg.Seed.InactivityLimit != 10*time.Minute {
		t.Errorf("InactivityLimit = %s, want 10m", cfg.Seed.InactivityLimit)
	}
	if cfg.Seed.ActivityWindow != 5*time.Minute {
		t.Errorf("ActivityWindow = %s, want 5m", cfg.Seed.ActivityWindow)
	}
}
