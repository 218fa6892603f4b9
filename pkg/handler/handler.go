// Package handler turns one raw frame plus a caller identity into exactly one
// response frame. Every invocation is independent; all state lives in the
// registry or in the handler's own counters.
package handler

import (
	"sync"

	"go.uber.org/zap"

	"git.debros.io/DeBros/seednode/pkg/logging"
	"git.debros.io/DeBros/seednode/pkg/protocol"
	"git.debros.io/DeBros/seednode/pkg/registry"
)

// Stats are the handler-side counters, separate from the registry's. They are
// monotonic until process restart.
type Stats struct {
	MessagesProcessed uint64
	InvalidMessages   uint64
	RateLimited       uint64
	Registrations     uint64
	Discoveries       uint64
	Pings             uint64
}

// Handler dispatches parsed frames against the peer registry.
type Handler struct {
	registry *registry.Registry
	logger   *logging.ColoredLogger

	mu    sync.Mutex
	stats Stats
}

// New creates a handler bound to a registry.
func New(reg *registry.Registry, logger *logging.ColoredLogger) *Handler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Handler{
		registry: reg,
		logger:   logger,
	}
}

// Process handles one frame from the peer identified by peerID and returns
// the response frame to write back. It never returns nil: malformed input,
// rate limiting and routing failures all produce a bounded error response.
//
// The flow is fixed: decode, rate-limit check against the connection
// identity, touch that identity, then route by type.
func (h *Handler) Process(frame []byte, peerID string) []byte {
	h.mu.Lock()
	h.stats.MessagesProcessed++
	h.mu.Unlock()

	hdr, payload, err := protocol.Decode(frame)
	if err != nil {
		h.countInvalid()
		h.logger.ComponentDebug(logging.ComponentProtocol, "rejected malformed frame",
			zap.String("peer", peerID),
			zap.Error(err))
		return errorResponse(protocol.ErrCodeMalformed, "invalid message format")
	}

	if h.registry.IsRateLimited(peerID) {
		h.mu.Lock()
		h.stats.RateLimited++
		h.mu.Unlock()
		return errorResponse(protocol.ErrCodeRateLimited, "rate limit exceeded")
	}

	h.registry.Touch(peerID)

	switch hdr.Type {
	case protocol.TypePeerRegister:
		return h.handleRegister(payload, peerID)
	case protocol.TypePeerDiscovery:
		return h.handleDiscovery(payload, peerID)
	case protocol.TypePeerUnregister:
		return h.handleUnregister(peerID)
	case protocol.TypePing:
		return h.handlePing(payload)
	default:
		h.countInvalid()
		return errorResponse(protocol.ErrCodeUnsupportedType, "unsupported message type")
	}
}

// Stats returns a snapshot of the handler counters.
func (h *Handler) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stats
}

func (h *Handler) handleRegister(payload []byte, peerID string) []byte {
	req, err := protocol.DecodeRegisterRequest(payload)
	if err != nil {
		h.countInvalid()
		return errorResponse(protocol.ErrCodeBadPayloadSize, "invalid peer register payload size")
	}

	// The payload-supplied address is validated independently of whatever
	// identity the transport attached to the connection.
	if !registry.IsValidOnionAddress(req.Address) {
		h.countInvalid()
		return errorResponse(protocol.ErrCodeInvalidAddress, "invalid onion address format")
	}

	if !h.registry.Register(req.Address, req.Port, req.Capabilities) {
		return errorResponse(protocol.ErrCodeCapacity, "failed to register peer (capacity reached)")
	}

	h.mu.Lock()
	h.stats.Registrations++
	h.mu.Unlock()

	h.logger.ComponentDebug(logging.ComponentRegistry, "peer registered",
		zap.String("address", req.Address),
		zap.Uint16("port", req.Port))

	return protocol.Encode(protocol.TypeHandshakeResponse, nil)
}

func (h *Handler) handleDiscovery(payload []byte, peerID string) []byte {
	req, err := protocol.DecodeDiscoveryRequest(payload)
	if err != nil {
		h.countInvalid()
		return errorResponse(protocol.ErrCodeBadPayloadSize, "invalid peer discovery payload size")
	}

	// The requester is the connection's identity, never anything the payload
	// claims. A rate-limited requester gets an empty success here.
	peers := h.registry.Discover(peerID, req.MaxPeers, req.RequiredCapabilities)

	entries := make([]protocol.PeerEntry, 0, len(peers))
	for _, p := range peers {
		entries = append(entries, protocol.PeerEntry{
			Port:         p.Port,
			Capabilities: p.Capabilities,
			Address:      p.Address,
		})
	}

	h.mu.Lock()
	h.stats.Discoveries++
	h.mu.Unlock()

	return protocol.Encode(protocol.TypeHandshakeResponse, protocol.EncodeDiscoveryResponse(entries))
}

func (h *Handler) handleUnregister(peerID string) []byte {
	// Unregister is keyed by the connection identity so a peer can only ever
	// remove itself.
	if !h.registry.Unregister(peerID) {
		return errorResponse(protocol.ErrCodeNotFound, "peer not found for unregistration")
	}
	return protocol.Encode(protocol.TypeHandshakeResponse, nil)
}

func (h *Handler) handlePing(payload []byte) []byte {
	h.mu.Lock()
	h.stats.Pings++
	h.mu.Unlock()
	return protocol.Encode(protocol.TypePong, payload)
}

func (h *Handler) countInvalid() {
	h.mu.Lock()
	h.stats.InvalidMessages++
	h.mu.Unlock()
}

func errorResponse(code uint8, message string) []byte {
	return protocol.Encode(protocol.TypeError, protocol.EncodeErrorResponse(code, message))
}
