// Package torproxy opens outbound streams to mesh peers through a local
// SOCKS5 proxy (a Tor client or compatible). The seed service itself never
// dials out; this is the client half of the transport contract, used by mesh
// participants that learned an address from a discovery response.
package torproxy

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	goproxy "golang.org/x/net/proxy"
)

// DefaultSocksAddr is the conventional local SOCKS5 endpoint.
const DefaultSocksAddr = "127.0.0.1:9050"

// Dialer opens streams to onion addresses via a SOCKS5 proxy.
type Dialer struct {
	socksAddr string
}

// NewDialer creates a dialer using the given SOCKS5 address. An empty
// address selects DefaultSocksAddr.
func NewDialer(socksAddr string) *Dialer {
	if socksAddr == "" {
		socksAddr = DefaultSocksAddr
	}
	return &Dialer{socksAddr: socksAddr}
}

// Address returns the SOCKS5 address this dialer routes through.
func (d *Dialer) Address() string { return d.socksAddr }

// OpenStream dials target:port through the proxy. The target hostname is
// passed to the proxy unresolved, which is what lets .onion names work. The
// context deadline bounds the whole dial, including circuit build time.
func (d *Dialer) OpenStream(ctx context.Context, target string, port uint16) (net.Conn, error) {
	var timeout time.Duration
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
		if timeout <= 0 {
			return nil, context.DeadlineExceeded
		}
	}
	base := &net.Dialer{Timeout: timeout}

	socksDialer, err := goproxy.SOCKS5("tcp", d.socksAddr, nil, base)
	if err != nil {
		return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
	}

	addr := net.JoinHostPort(target, strconv.Itoa(int(port)))
	conn, err := socksDialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream to %s: %w", addr, err)
	}
	return conn, nil
}

// Running reports whether a SOCKS5 proxy answers at the configured address.
// It attempts a short TCP dial and returns false on failure.
func (d *Dialer) Running() bool {
	conn, err := net.DialTimeout("tcp", d.socksAddr, 200*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
