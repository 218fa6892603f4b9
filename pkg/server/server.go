// Package server glues the transport to the request handler: it owns the
// accept loop, one goroutine per connection, the background reaper and
// graceful shutdown. There is no process-wide singleton; callers hold the
// Server handle and stop it from their own signal handling.
package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"git.debros.io/DeBros/seednode/pkg/config"
	"git.debros.io/DeBros/seednode/pkg/handler"
	"git.debros.io/DeBros/seednode/pkg/logging"
	"git.debros.io/DeBros/seednode/pkg/protocol"
	"git.debros.io/DeBros/seednode/pkg/registry"
	"git.debros.io/DeBros/seednode/pkg/transport"
)

// statusLogInterval is how often the periodic status line is emitted when
// verbose logging is on.
const statusLogInterval = 5 * time.Minute

// drainTimeout bounds the post-response read that waits for the peer to
// close its half of the connection.
const drainTimeout = 250 * time.Millisecond

// Server runs the seed service on top of a Transport.
type Server struct {
	cfg      *config.Config
	logger   *logging.ColoredLogger
	registry *registry.Registry
	handler  *handler.Handler
	tr       transport.Transport

	cancel context.CancelFunc
	wg     sync.WaitGroup
	admin  *adminServer

	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a server. The transport is owned by the server from here on:
// Stop closes it.
func New(cfg *config.Config, logger *logging.ColoredLogger, tr transport.Transport) *Server {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	reg := registry.New(registry.Options{
		MaxPeers:           cfg.Seed.MaxPeers,
		RateLimitPerMinute: cfg.Seed.RateLimitPerMinute,
		ActivityWindow:     cfg.Seed.ActivityWindow,
		MaxDiscoveryPeers:  cfg.Seed.MaxDiscoveryPeers,
	}, logger.Logger)

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: reg,
		handler:  handler.New(reg, logger),
		tr:       tr,
	}
	if cfg.Admin.Enabled {
		s.admin = newAdminServer(cfg, s)
	}
	return s
}

// Registry exposes the peer registry, mainly for the admin endpoint and tests.
func (s *Server) Registry() *registry.Registry { return s.registry }

// Handler exposes the request handler, mainly for the admin endpoint and tests.
func (s *Server) Handler() *handler.Handler { return s.handler }

// Addr returns the transport's listen address.
func (s *Server) Addr() string { return s.tr.Addr() }

// Start launches the accept loop, the reaper and the admin endpoint. It
// returns immediately; use Stop to shut down.
func (s *Server) Start(ctx context.Context) error {
	var startErr error
	s.startOnce.Do(func() {
		ctx, s.cancel = context.WithCancel(ctx)

		s.logger.ComponentInfo(logging.ComponentServer, "seed server starting",
			zap.String("addr", s.tr.Addr()),
			zap.Int("max_peers", s.cfg.Seed.MaxPeers),
			zap.Uint32("rate_limit_per_min", s.cfg.Seed.RateLimitPerMinute),
			zap.Duration("cleanup_interval", s.cfg.Seed.CleanupInterval))

		if s.admin != nil {
			if err := s.admin.start(); err != nil {
				startErr = err
				return
			}
		}

		s.wg.Add(2)
		go s.acceptLoop(ctx)
		go s.reapLoop(ctx)

		if s.cfg.Seed.Verbose {
			s.wg.Add(1)
			go s.statusLoop(ctx)
		}
	})
	return startErr
}

// Stop shuts the server down: no new connections are accepted, the reaper is
// cancelled, and in-flight work gets a bounded grace period before Stop
// returns regardless.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		s.logger.ComponentInfo(logging.ComponentServer, "initiating graceful shutdown")

		if s.cancel != nil {
			s.cancel()
		}
		_ = s.tr.Close()
		if s.admin != nil {
			s.admin.stop()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()

		grace := s.cfg.Seed.ShutdownGrace
		if grace <= 0 {
			grace = 5 * time.Second
		}
		select {
		case <-done:
			s.logger.ComponentInfo(logging.ComponentServer, "shutdown complete")
		case <-time.After(grace):
			s.logger.ComponentWarn(logging.ComponentServer, "shutdown grace period expired",
				zap.Duration("grace", grace))
		}
	})
}

// acceptLoop hands each accepted stream to its own goroutine. The loop itself
// does no protocol work.
func (s *Server) acceptLoop(ctx context.Context) {
	defer s.wg.Done()

	for {
		conn, peerID, err := s.tr.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.ComponentWarn(logging.ComponentServer, "accept failed", zap.Error(err))
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn, peerID)
		}()
	}
}

// handleConnection serves exactly one request/response exchange and closes
// the stream. Read and write are bounded by the configured request timeout so
// a stalled peer cannot pin the goroutine.
func (s *Server) handleConnection(conn net.Conn, peerID string) {
	defer conn.Close()

	connID := uuid.NewString()
	if s.cfg.Seed.Verbose {
		s.logger.ComponentDebug(logging.ComponentServer, "connection accepted",
			zap.String("conn_id", connID),
			zap.String("peer", peerID))
	}

	deadline := time.Now().Add(s.cfg.Seed.RequestTimeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return
	}

	frame, readErr := readFrame(conn)
	if frame == nil {
		// Nothing usable arrived; close without a response.
		if s.cfg.Seed.Verbose && readErr != nil {
			s.logger.ComponentDebug(logging.ComponentServer, "connection closed without frame",
				zap.String("conn_id", connID),
				zap.Error(readErr))
		}
		return
	}

	response := s.handler.Process(frame, peerID)
	if _, err := conn.Write(response); err != nil {
		s.logger.ComponentDebug(logging.ComponentServer, "failed to write response",
			zap.String("conn_id", connID),
			zap.Error(err))
		return
	}

	// Drain any unread request bytes before closing so the peer sees a clean
	// FIN instead of a reset racing the response.
	_ = conn.SetReadDeadline(time.Now().Add(drainTimeout))
	_, _ = io.Copy(io.Discard, io.LimitReader(conn, protocol.MaxMessageSize))
}

// readFrame reads one length-prefixed frame: the fixed header first, then
// exactly the declared payload. A fully read but invalid header is returned
// as-is so the handler can answer with a proper error frame; a short or
// failed read returns nil and the connection is closed silently.
func readFrame(conn io.Reader) ([]byte, error) {
	header := make([]byte, protocol.HeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		return nil, err
	}

	hdr, err := protocol.ParseHeader(header)
	if err != nil {
		// The declared length cannot be trusted past a failed validation, so
		// no further read is attempted.
		return header, nil
	}
	if hdr.PayloadLength == 0 {
		return header, nil
	}

	frame := make([]byte, protocol.HeaderSize+int(hdr.PayloadLength))
	copy(frame, header)
	if _, err := io.ReadFull(conn, frame[protocol.HeaderSize:]); err != nil {
		return nil, err
	}
	return frame, nil
}

// reapLoop periodically evicts peers that have been inactive beyond the
// configured limit. Cancellation is observed immediately via the context.
func (s *Server) reapLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Seed.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.registry.Reap(s.cfg.Seed.InactivityLimit); removed > 0 {
				s.logger.ComponentInfo(logging.ComponentRegistry, "cleaned up inactive peers",
					zap.Int("removed", removed))
			}
		}
	}
}

// statusLoop logs a periodic one-line summary while verbose mode is on.
func (s *Server) statusLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(statusLogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := s.registry.Stats()
			s.logger.ComponentInfo(logging.ComponentSeed, "status",
				zap.Int("active_peers", stats.ActivePeers),
				zap.Int("total_peers", stats.TotalPeers),
				zap.Uint64("requests_served", stats.DiscoveryRequestsServed))
		}
	}
}
