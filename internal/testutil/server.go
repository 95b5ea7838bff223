package testutil

import (
	"context"
	"net"
	"testing"

	"golang.org/x/sync/errgroup"
)

// StartSingleAcceptServer accepts one connection and runs handler on it. The
// returned wait func closes the listener and waits for handler to return.
func StartSingleAcceptServer(t *testing.T, ctx context.Context, handler func(net.Conn)) (net.Listener, func()) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	var g errgroup.Group
	g.Go(func() error {
		c, err := ln.Accept()
		if err != nil {
			return nil
		}
		defer c.Close()
		handler(c)
		return nil
	})

	wait := func() {
		_ = ln.Close()
		_ = g.Wait()
	}

	return ln, wait
}

// TCPPair returns both ends of a loopback TCP connection.
func TCPPair(t *testing.T, ctx context.Context) (client, server *net.TCPConn) {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(accepted)
			return
		}
		accepted <- c
	}()

	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	s, ok := <-accepted
	if !ok {
		_ = c.Close()
		t.Fatal("accept failed")
	}

	t.Cleanup(func() {
		_ = c.Close()
		_ = s.Close()
	})

	return c.(*net.TCPConn), s.(*net.TCPConn)
}
