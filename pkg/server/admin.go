package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"git.debros.io/DeBros/seednode/pkg/config"
	"git.debros.io/DeBros/seednode/pkg/httputil"
	"git.debros.io/DeBros/seednode/pkg/logging"
)

// adminServer exposes operational state over a loopback-only HTTP listener.
// Nothing here is reachable from the mesh; config validation enforces the
// loopback bind.
type adminServer struct {
	cfg  *config.Config
	seed *Server
	http *http.Server
}

// statusResponse is the /v1/status document.
type statusResponse struct {
	UptimeSeconds int64 `json:"uptime_seconds"`

	Config struct {
		Port               int    `json:"port"`
		MaxPeers           int    `json:"max_peers"`
		RateLimitPerMinute uint32 `json:"rate_limit_per_min"`
		CleanupIntervalSec int64  `json:"cleanup_interval_seconds"`
	} `json:"config"`

	Peers struct {
		Total                   int    `json:"total"`
		Active                  int    `json:"active"`
		RegistrationsProcessed  uint64 `json:"registrations_processed"`
		DiscoveryRequestsServed uint64 `json:"discovery_requests_served"`
	} `json:"peers"`

	Handler struct {
		MessagesProcessed uint64 `json:"messages_processed"`
		InvalidMessages   uint64 `json:"invalid_messages"`
		RateLimited       uint64 `json:"rate_limited"`
		Registrations     uint64 `json:"registrations"`
		Discoveries       uint64 `json:"discoveries"`
		Pings             uint64 `json:"pings"`
	} `json:"handler"`
}

func newAdminServer(cfg *config.Config, seed *Server) *adminServer {
	a := &adminServer{cfg: cfg, seed: seed}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/v1/health", a.handleHealth)
	r.Get("/v1/status", a.handleStatus)

	a.http = &http.Server{
		Addr:              cfg.Admin.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return a
}

func (a *adminServer) start() error {
	ln, err := net.Listen("tcp", a.cfg.Admin.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind admin endpoint %s: %w", a.cfg.Admin.ListenAddr, err)
	}

	go func() {
		if err := a.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.seed.logger.ComponentError(logging.ComponentAdmin, "admin server failed",
				zap.Error(err))
		}
	}()

	a.seed.logger.ComponentInfo(logging.ComponentAdmin, "admin endpoint listening",
		zap.String("addr", a.cfg.Admin.ListenAddr))
	return nil
}

func (a *adminServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = a.http.Shutdown(ctx)
}

func (a *adminServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *adminServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	regStats := a.seed.registry.Stats()
	hStats := a.seed.handler.Stats()

	var resp statusResponse
	resp.UptimeSeconds = int64(time.Since(regStats.StartTime).Seconds())
	resp.Config.Port = a.cfg.Seed.Port
	resp.Config.MaxPeers = a.cfg.Seed.MaxPeers
	resp.Config.RateLimitPerMinute = a.cfg.Seed.RateLimitPerMinute
	resp.Config.CleanupIntervalSec = int64(a.cfg.Seed.CleanupInterval.Seconds())
	resp.Peers.Total = regStats.TotalPeers
	resp.Peers.Active = regStats.ActivePeers
	resp.Peers.RegistrationsProcessed = regStats.RegistrationsProcessed
	resp.Peers.DiscoveryRequestsServed = regStats.DiscoveryRequestsServed
	resp.Handler.MessagesProcessed = hStats.MessagesProcessed
	resp.Handler.InvalidMessages = hStats.InvalidMessages
	resp.Handler.RateLimited = hStats.RateLimited
	resp.Handler.Registrations = hStats.Registrations
	resp.Handler.Discoveries = hStats.Discoveries
	resp.Handler.Pings = hStats.Pings

	httputil.WriteJSON(w, http.StatusOK, resp)
}
