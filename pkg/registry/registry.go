// Package registry is the authoritative in-memory directory of active mesh
// peers. It owns admission (capacity, address validation), liveness tracking,
// per-peer rate limiting, discovery sampling and periodic reaping.
//
// All state lives behind one coarse mutex. The registry holds at most a few
// thousand entries and every critical section is short and I/O free, so finer
// locking would buy nothing and could tear (port, capabilities, last_seen)
// triples. Nothing here is ever persisted.
package registry

import (
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

// rateLimitWindow is the rate-limiter window. The reset is keyed off a peer's
// last_seen rather than an independent window-start timestamp, matching the
// observed behavior this service replaces. A steady trickle of traffic can
// therefore keep a counter alive across minutes; see DESIGN.md before
// changing this.
const rateLimitWindow = 60 * time.Second

// PeerRecord is one registered peer. Copies of records are handed out;
// callers never see live registry state.
type PeerRecord struct {
	Address      string
	Port         uint16
	Capabilities uint32
	LastSeen     time.Time
	RegisteredAt time.Time
	RequestCount uint32
}

// Stats is a point-in-time snapshot of registry counters. Counters only ever
// increase; ActivePeers is recomputed on every call.
type Stats struct {
	TotalPeers              int
	ActivePeers             int
	RegistrationsProcessed  uint64
	DiscoveryRequestsServed uint64
	StartTime               time.Time
}

// Options configures a Registry.
type Options struct {
	MaxPeers           int
	RateLimitPerMinute uint32
	ActivityWindow     time.Duration // discovery eligibility window
	MaxDiscoveryPeers  uint16        // hard ceiling on results per discovery
}

// Registry tracks active peers for discovery.
type Registry struct {
	mu    sync.Mutex
	peers map[string]*PeerRecord

	maxPeers           int
	rateLimitPerMinute uint32
	activityWindow     time.Duration
	maxDiscoveryPeers  uint16

	registrations   uint64
	requestsServed  uint64
	startTime       time.Time

	logger *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates a registry. Zero option fields take the service defaults.
func New(opts Options, logger *zap.Logger) *Registry {
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = 500
	}
	if opts.RateLimitPerMinute == 0 {
		opts.RateLimitPerMinute = 60
	}
	if opts.ActivityWindow <= 0 {
		opts.ActivityWindow = 300 * time.Second
	}
	if opts.MaxDiscoveryPeers == 0 {
		opts.MaxDiscoveryPeers = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Registry{
		peers:              make(map[string]*PeerRecord),
		maxPeers:           opts.MaxPeers,
		rateLimitPerMinute: opts.RateLimitPerMinute,
		activityWindow:     opts.ActivityWindow,
		maxDiscoveryPeers:  opts.MaxDiscoveryPeers,
		startTime:          time.Now(),
		logger:             logger,
		now:                time.Now,
	}
}

// Register inserts or refreshes a peer. It returns false if the address fails
// shape validation or the registry is full and the address is new. Refreshing
// an existing address always succeeds: port, capabilities and last_seen are
// overwritten, registered_at and the rate-limit counter are preserved.
func (r *Registry) Register(address string, port uint16, capabilities uint32) bool {
	if !IsValidOnionAddress(address) {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	peer, exists := r.peers[address]
	if !exists {
		if len(r.peers) >= r.maxPeers {
			return false
		}
		now := r.now()
		peer = &PeerRecord{
			Address:      address,
			RegisteredAt: now,
		}
		r.peers[address] = peer
		r.registrations++
		r.logger.Debug("peer registered",
			zap.String("address", address),
			zap.Int("total_peers", len(r.peers)))
	}

	peer.Port = port
	peer.Capabilities = capabilities
	peer.LastSeen = r.now()
	return true
}

// Unregister removes a peer and reports whether it existed.
func (r *Registry) Unregister(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[address]; !ok {
		return false
	}
	delete(r.peers, address)
	return true
}

// Touch updates a peer's last_seen if it is registered. Unknown addresses are
// a silent no-op: connections are accepted from peers that never registered.
func (r *Registry) Touch(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if peer, ok := r.peers[address]; ok {
		peer.LastSeen = r.now()
	}
}

// Discover returns a uniformly random sample of active peers for requester.
// A rate-limited requester gets an empty result, which still counts as a
// served request. The requester itself is never included; candidates must
// have been seen within the activity window and carry every bit of
// requiredCapabilities. maxResults is clamped to the configured ceiling.
func (r *Registry) Discover(requester string, maxResults uint16, requiredCapabilities uint32) []PeerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.requestsServed++

	if r.isRateLimitedLocked(requester) {
		return nil
	}

	if peer, ok := r.peers[requester]; ok {
		peer.RequestCount++
	}

	if maxResults > r.maxDiscoveryPeers {
		maxResults = r.maxDiscoveryPeers
	}

	now := r.now()
	candidates := make([]PeerRecord, 0, len(r.peers))
	for address, peer := range r.peers {
		if address == requester {
			continue
		}
		if now.Sub(peer.LastSeen) > r.activityWindow {
			continue
		}
		if requiredCapabilities != 0 && peer.Capabilities&requiredCapabilities != requiredCapabilities {
			continue
		}
		candidates = append(candidates, *peer)
	}

	if len(candidates) <= int(maxResults) {
		return candidates
	}

	rand.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return candidates[:maxResults]
}

// IsRateLimited reports whether address has exhausted its request budget for
// the current window.
func (r *Registry) IsRateLimited(address string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.isRateLimitedLocked(address)
}

// isRateLimitedLocked checks and, when the peer has been idle a full window,
// resets the counter. Callers must hold r.mu.
func (r *Registry) isRateLimitedLocked(address string) bool {
	peer, ok := r.peers[address]
	if !ok {
		// Unknown peers carry no counter.
		return false
	}

	if r.now().Sub(peer.LastSeen) >= rateLimitWindow {
		peer.RequestCount = 0
		return false
	}

	return peer.RequestCount >= r.rateLimitPerMinute
}

// Reap removes every peer idle longer than maxAge and returns the eviction
// count. Surviving peers idle a full rate-limit window get their counters
// reset in the same sweep.
func (r *Registry) Reap(maxAge time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for address, peer := range r.peers {
		idle := now.Sub(peer.LastSeen)
		if idle > maxAge {
			delete(r.peers, address)
			removed++
			continue
		}
		if idle >= rateLimitWindow {
			peer.RequestCount = 0
		}
	}

	return removed
}

// Stats returns a snapshot of the registry counters. ActivePeers counts peers
// seen within the activity window at call time.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	active := 0
	for _, peer := range r.peers {
		if now.Sub(peer.LastSeen) <= r.activityWindow {
			active++
		}
	}

	return Stats{
		TotalPeers:              len(r.peers),
		ActivePeers:             active,
		RegistrationsProcessed:  r.registrations,
		DiscoveryRequestsServed: r.requestsServed,
		StartTime:               r.startTime,
	}
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Get returns a copy of the record for address, if present.
func (r *Registry) Get(address string) (PeerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.peers[address]
	if !ok {
		return PeerRecord{}, false
	}
	return *peer, true
}
