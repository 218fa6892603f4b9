package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func TestAcceptReturnsHostIdentity(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer tr.Close()

	type result struct {
		conn     net.Conn
		identity string
		err      error
	}
	results := make(chan result, 1)
	go func() {
		conn, id, err := tr.Accept(context.Background())
		results <- result{conn, id, err}
	}()

	client, err := net.Dial("tcp", tr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	r := <-results
	if r.err != nil {
		t.Fatalf("Accept() error: %v", r.err)
	}
	defer r.conn.Close()

	if r.identity != "127.0.0.1" {
		t.Errorf("identity = %q, want host without port", r.identity)
	}
}

func TestAcceptUnblocksOnCancel(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, _, err := tr.Accept(ctx)
		errs <- err
	}()

	cancel()

	select {
	case err := <-errs:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Accept() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Accept() still blocked after cancel")
	}
}

func TestAcceptAfterClose(t *testing.T) {
	tr, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	tr.Close()

	if _, _, err := tr.Accept(context.Background()); err == nil {
		t.Fatal("Accept() succeeded on a closed transport")
	}
}
