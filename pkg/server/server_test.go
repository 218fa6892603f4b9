package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.debros.io/DeBros/seednode/pkg/config"
	"git.debros.io/DeBros/seednode/pkg/protocol"
	"git.debros.io/DeBros/seednode/pkg/transport"
)

var (
	addrA = strings.Repeat("a", 56) + ".onion"
	addrB = strings.Repeat("b", 56) + ".onion"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Seed.RequestTimeout = 2 * time.Second
	cfg.Seed.CleanupInterval = time.Hour // keep the reaper quiet during tests
	cfg.Seed.ShutdownGrace = 3 * time.Second
	cfg.Admin.Enabled = false
	return cfg
}

func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()

	tr, err := transport.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)

	srv := New(cfg, nil, tr)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(srv.Stop)
	return srv
}

// exchange sends one frame and returns the complete response.
func exchange(t *testing.T, addr string, frame []byte) []byte {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetDeadline(time.Now().Add(3*time.Second)))
	_, err = conn.Write(frame)
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	resp, err := io.ReadAll(conn)
	require.NoError(t, err)
	return resp
}

func registerFrame(address string, port uint16, caps uint32) []byte {
	payload := protocol.EncodeRegisterRequest(protocol.RegisterRequest{
		Port:         port,
		Capabilities: caps,
		Address:      address,
	})
	return protocol.Encode(protocol.TypePeerRegister, payload)
}

func TestEndToEndRegisterAndDiscover(t *testing.T) {
	srv := startTestServer(t, testConfig())
	addr := srv.Addr()

	// Register two peers.
	resp := exchange(t, addr, registerFrame(addrA, 9000, 0x1))
	hdr, payload, err := protocol.Decode(resp)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeHandshakeResponse, hdr.Type)
	require.Empty(t, payload)

	resp = exchange(t, addr, registerFrame(addrB, 9001, 0x3))
	hdr, _, err = protocol.Decode(resp)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeHandshakeResponse, hdr.Type)

	// Discover peers requiring capability bit 0x1: both qualify; the
	// requester identity is the test host, not a registered peer.
	discovery := protocol.Encode(protocol.TypePeerDiscovery,
		protocol.EncodeDiscoveryRequest(protocol.DiscoveryRequest{MaxPeers: 10, RequiredCapabilities: 0x1}))
	resp = exchange(t, addr, discovery)

	hdr, payload, err = protocol.Decode(resp)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeHandshakeResponse, hdr.Type)

	peers, err := protocol.DecodeDiscoveryResponse(payload)
	require.NoError(t, err)
	require.Len(t, peers, 2)

	byAddr := map[string]protocol.PeerEntry{}
	for _, p := range peers {
		byAddr[p.Address] = p
	}
	require.Equal(t, uint16(9000), byAddr[addrA].Port)
	require.Equal(t, uint16(9001), byAddr[addrB].Port)
	require.Equal(t, uint32(0x3), byAddr[addrB].Capabilities)
}

func TestEndToEndBadMagicGetsErrorFrame(t *testing.T) {
	srv := startTestServer(t, testConfig())

	frame := registerFrame(addrA, 9000, 0)
	frame[0] ^= 0x01

	resp := exchange(t, srv.Addr(), frame)
	hdr, payload, err := protocol.Decode(resp)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeError, hdr.Type)

	errResp, err := protocol.DecodeErrorResponse(payload)
	require.NoError(t, err)
	require.Equal(t, protocol.ErrCodeMalformed, errResp.Code)
}

func TestEndToEndPing(t *testing.T) {
	srv := startTestServer(t, testConfig())

	body := []byte("seed, are you up")
	resp := exchange(t, srv.Addr(), protocol.Encode(protocol.TypePing, body))

	hdr, payload, err := protocol.Decode(resp)
	require.NoError(t, err)
	require.Equal(t, protocol.TypePong, hdr.Type)
	require.Equal(t, body, payload)
}

func TestEmptyConnectionClosedSilently(t *testing.T) {
	srv := startTestServer(t, testConfig())

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Empty(t, buf, "server answered an empty connection")
	conn.Close()
}

func TestTruncatedPayloadClosedSilently(t *testing.T) {
	srv := startTestServer(t, testConfig())

	frame := registerFrame(addrA, 9000, 0)
	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)

	// Header promises a register payload; send only half of it.
	_, err = conn.Write(frame[:protocol.HeaderSize+10])
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	buf, err := io.ReadAll(conn)
	require.NoError(t, err)
	require.Empty(t, buf, "server answered a truncated frame")
	conn.Close()
}

func TestConcurrentConnections(t *testing.T) {
	srv := startTestServer(t, testConfig())
	addr := srv.Addr()

	done := make(chan error, 16)
	for g := 0; g < 16; g++ {
		go func() {
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				done <- err
				return
			}
			defer conn.Close()
			conn.SetDeadline(time.Now().Add(3 * time.Second))
			if _, err := conn.Write(protocol.Encode(protocol.TypePing, []byte("x"))); err != nil {
				done <- err
				return
			}
			conn.(*net.TCPConn).CloseWrite()
			_, err = io.ReadAll(conn)
			done <- err
		}()
	}
	for i := 0; i < 16; i++ {
		require.NoError(t, <-done)
	}

	stats := srv.Handler().Stats()
	require.Equal(t, uint64(16), stats.Pings)
}

func TestStopIsPromptAndIdempotent(t *testing.T) {
	cfg := testConfig()
	cfg.Seed.CleanupInterval = 50 * time.Millisecond

	tr, err := transport.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	srv := New(cfg, nil, tr)
	require.NoError(t, srv.Start(context.Background()))

	time.Sleep(120 * time.Millisecond) // let the reaper tick at least once

	start := time.Now()
	srv.Stop()
	srv.Stop()
	require.Less(t, time.Since(start), 2*time.Second, "shutdown blocked")

	// The listener is really gone.
	_, err = net.DialTimeout("tcp", tr.Addr(), 200*time.Millisecond)
	require.Error(t, err)
}

func TestAdminStatusEndpoint(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Enabled = true
	cfg.Admin.ListenAddr = "127.0.0.1:0"

	tr, err := transport.ListenTCP("127.0.0.1:0")
	require.NoError(t, err)
	srv := New(cfg, nil, tr)
	require.NotNil(t, srv.admin)

	// Exercise the handlers directly; binding a real port is covered by
	// Start and not interesting here.
	ts := httptest.NewServer(srv.admin.http.Handler)
	defer ts.Close()
	defer tr.Close()

	srv.Registry().Register(addrA, 9000, 0x1)

	resp, err := http.Get(ts.URL + "/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var status statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.Equal(t, 1, status.Peers.Total)
	require.Equal(t, cfg.Seed.MaxPeers, status.Config.MaxPeers)
}
