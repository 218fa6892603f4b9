// Package transport defines the seam between the seed engine and whatever
// byte-stream transport carries it. The production deployment listens behind
// a hidden service whose bring-up (key material, circuit management) lives
// outside this repository; the engine only ever sees accepted streams and an
// opaque peer identity per stream.
package transport

import (
	"context"
	"net"
)

// Transport yields inbound connections for the server to handle. Accept
// blocks until a connection arrives, the context is cancelled, or the
// transport is closed.
//
// The peer identity string is opaque to the engine: it is whatever the
// transport can attribute the stream to (an onion address when the transport
// knows it, a socket address for the dev TCP transport). The registry keys
// rate limiting off it, so a transport should return stable identities.
type Transport interface {
	Accept(ctx context.Context) (net.Conn, string, error)
	Addr() string
	Close() error
}
