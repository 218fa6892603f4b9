package transport

import (
	"context"
	"fmt"
	"net"
)

// TCPTransport is a plain TCP implementation of Transport, used for local
// development and tests. Peer identity is the remote host (without port), so
// repeated connections from one host share a rate-limit bucket the way
// repeated streams from one onion address do in production.
type TCPTransport struct {
	listener net.Listener
}

// ListenTCP starts a TCP transport on addr (host:port).
func ListenTCP(addr string) (*TCPTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return &TCPTransport{listener: ln}, nil
}

// Accept waits for the next inbound connection. Cancelling the context
// closes the listener, so a blocked Accept returns promptly.
func (t *TCPTransport) Accept(ctx context.Context) (net.Conn, string, error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			t.listener.Close()
		case <-done:
		}
	}()

	conn, err := t.listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", err
	}

	identity := conn.RemoteAddr().String()
	if host, _, splitErr := net.SplitHostPort(identity); splitErr == nil {
		identity = host
	}
	return conn, identity, nil
}

// Addr returns the bound listen address.
func (t *TCPTransport) Addr() string {
	return t.listener.Addr().String()
}

// Close shuts the listener down.
func (t *TCPTransport) Close() error {
	return t.listener.Close()
}
