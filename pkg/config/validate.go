package config

import (
	"fmt"
	"net"
)

// Validate checks the configuration for values the engine cannot run with.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Seed.Port <= 0 || c.Seed.Port > 65535 {
		return fmt.Errorf("seed.port must be in 1..65535, got %d", c.Seed.Port)
	}
	if c.Seed.MaxPeers <= 0 {
		return fmt.Errorf("seed.max_peers must be positive, got %d", c.Seed.MaxPeers)
	}
	if c.Seed.RateLimitPerMinute == 0 {
		return fmt.Errorf("seed.rate_limit_per_min must be positive")
	}
	if c.Seed.CleanupInterval <= 0 {
		return fmt.Errorf("seed.cleanup_interval must be positive, got %s", c.Seed.CleanupInterval)
	}
	if c.Seed.InactivityLimit <= 0 {
		return fmt.Errorf("seed.inactivity_limit must be positive, got %s", c.Seed.InactivityLimit)
	}
	if c.Seed.ActivityWindow <= 0 {
		return fmt.Errorf("seed.activity_window must be positive, got %s", c.Seed.ActivityWindow)
	}
	if c.Seed.ActivityWindow > c.Seed.InactivityLimit {
		return fmt.Errorf("seed.activity_window (%s) must not exceed seed.inactivity_limit (%s)",
			c.Seed.ActivityWindow, c.Seed.InactivityLimit)
	}
	if c.Seed.MaxDiscoveryPeers == 0 {
		return fmt.Errorf("seed.max_discovery_peers must be positive")
	}
	if c.Seed.RequestTimeout <= 0 {
		return fmt.Errorf("seed.request_timeout must be positive, got %s", c.Seed.RequestTimeout)
	}
	if c.Admin.Enabled {
		host, _, err := net.SplitHostPort(c.Admin.ListenAddr)
		if err != nil {
			return fmt.Errorf("admin.listen_addr is not host:port: %w", err)
		}
		if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
			return fmt.Errorf("admin.listen_addr must bind a loopback address, got %q", host)
		}
	}
	if c.Tor.SocksAddr != "" {
		if _, _, err := net.SplitHostPort(c.Tor.SocksAddr); err != nil {
			return fmt.Errorf("tor.socks_addr is not host:port: %w", err)
		}
	}
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error; got %q", c.Logging.Level)
	}
	return nil
}
