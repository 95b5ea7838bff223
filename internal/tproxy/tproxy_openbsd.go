//go:build openbsd

package tproxy

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/die-net/socksx/internal/endpoint"
)

// IsSupported is true on TPROXY-supporting OSes.
const IsSupported = true

// listenTransparent enables SO_BINDANY so the socket can accept connections
// redirected by PF rdr-to rules.
//
// This requires root privileges. Outgoing rules need divert-reply for return
// traffic.
func listenTransparent(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: func(_, _ string, c syscall.RawConn) error {
		var ctrlErr error
		err := c.Control(func(fd uintptr) {
			// OpenBSD uses a socket-level option, unlike FreeBSD's
			// protocol-level one.
			ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BINDANY, 1)
		})
		if err != nil {
			return err
		}
		return ctrlErr
	}}
	return lc.Listen(context.Background(), "tcp", addr)
}

// originalDst returns the local address of the accepted connection, which PF
// rdr-to preserves.
func originalDst(tc *net.TCPConn) (endpoint.Endpoint, error) {
	e, err := endpoint.FromAddr(tc.LocalAddr())
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("%w: %w", ErrNotRedirected, err)
	}
	return e, nil
}
