package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"git.debros.io/DeBros/seednode/pkg/config"
	"git.debros.io/DeBros/seednode/pkg/logging"
	"git.debros.io/DeBros/seednode/pkg/server"
	"git.debros.io/DeBros/seednode/pkg/transport"
)

// seedFlags holds the parsed command line surface.
type seedFlags struct {
	configPath      string
	port            int
	maxPeers        int
	rateLimit       uint
	cleanupInterval time.Duration
	adminAddr       string
	verbose         bool
	help            bool

	set map[string]bool
}

func parse_seed_flags() *seedFlags {
	f := &seedFlags{}

	flag.StringVar(&f.configPath, "config", "", "Path to config YAML file (overrides defaults)")
	flag.IntVar(&f.port, "port", 12345, "Listen port for peer discovery requests")
	flag.IntVar(&f.maxPeers, "max-peers", 500, "Maximum number of registered peers")
	flag.UintVar(&f.rateLimit, "rate-limit", 60, "Per-peer discovery requests per minute")
	flag.DurationVar(&f.cleanupInterval, "cleanup-interval", 180*time.Second, "How often inactive peers are evicted")
	flag.StringVar(&f.adminAddr, "admin-addr", "", "Loopback address for the local status endpoint (empty disables it)")
	flag.BoolVar(&f.verbose, "verbose", false, "Per-connection debug logging")
	flag.BoolVar(&f.help, "help", false, "Show help")
	flag.Parse()

	// Track which flags were given explicitly so file-loaded values are only
	// overridden on purpose.
	f.set = make(map[string]bool)
	flag.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f
}

// load_seed_config builds the effective configuration: defaults, then the
// optional YAML file, then explicit command line overrides.
func load_seed_config(f *seedFlags) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if f.configPath != "" {
		loaded, err := config.LoadFile(f.configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", f.configPath, err)
		}
		cfg = loaded
	}

	if f.set["port"] {
		cfg.Seed.Port = f.port
	}
	if f.set["max-peers"] {
		cfg.Seed.MaxPeers = f.maxPeers
	}
	if f.set["rate-limit"] {
		cfg.Seed.RateLimitPerMinute = uint32(f.rateLimit)
	}
	if f.set["cleanup-interval"] {
		cfg.Seed.CleanupInterval = f.cleanupInterval
	}
	if f.set["admin-addr"] {
		cfg.Admin.Enabled = f.adminAddr != ""
		cfg.Admin.ListenAddr = f.adminAddr
	}
	if f.set["verbose"] {
		cfg.Seed.Verbose = f.verbose
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setup_logger(cfg *config.Config) *logging.ColoredLogger {
	level := logging.ParseLevel(cfg.Logging.Level)
	if cfg.Seed.Verbose {
		level = logging.ParseLevel("debug")
	}

	var (
		logger *logging.ColoredLogger
		err    error
	)
	if cfg.Logging.OutputFile != "" {
		logger, err = logging.NewFileLogger(cfg.Logging.OutputFile, level)
	} else {
		logger, err = logging.NewColoredLogger(cfg.Logging.Colors, level)
	}
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

func main() {
	flags := parse_seed_flags()
	if flags.help {
		flag.Usage()
		return
	}

	cfg, err := load_seed_config(flags)
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := setup_logger(cfg)
	defer logger.Sync()

	logger.ComponentInfo(logging.ComponentSeed, "seed node configuration",
		zap.Int("port", cfg.Seed.Port),
		zap.Int("max_peers", cfg.Seed.MaxPeers),
		zap.Uint32("rate_limit_per_min", cfg.Seed.RateLimitPerMinute),
		zap.Duration("cleanup_interval", cfg.Seed.CleanupInterval),
		zap.Duration("inactivity_limit", cfg.Seed.InactivityLimit),
		zap.Bool("admin_enabled", cfg.Admin.Enabled))

	tr, err := transport.ListenTCP(fmt.Sprintf("0.0.0.0:%d", cfg.Seed.Port))
	if err != nil {
		logger.ComponentError(logging.ComponentServer, "failed to listen", zap.Error(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := server.New(cfg, logger, tr)
	if err := srv.Start(ctx); err != nil {
		logger.ComponentError(logging.ComponentServer, "failed to start seed server", zap.Error(err))
		os.Exit(1)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.ComponentInfo(logging.ComponentSeed, "shutting down seed node...")
	cancel()
	srv.Stop()
	logger.ComponentInfo(logging.ComponentSeed, "seed node shutdown complete")
}
