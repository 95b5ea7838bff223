//go:build freebsd

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

// listenTransparent enables IP_BINDANY so the socket can accept connections
// redirected by IPFW fwd or PF rdr-to rules.
//
// This requires root or the PRIV_NETINET_BINDANY privilege.
func listenTransparent(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: func(network, _ string, c syscall.RawConn) error {
		var ctrlErr error
		err := c.Control(func(fd uintptr) {
			// For IPv6 sockets, use IPV6_BINDANY; for IPv4, use IP_BINDANY.
			if network == "tcp6" {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IPV6, unix.IPV6_BINDANY, 1)
			} else {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.IPPROTO_IP, unix.IP_BINDANY, 1)
			}
		})
		if err != nil {
			return err
		}
		return ctrlErr
	}}
	return lc.Listen(context.Background(), "tcp", addr)
}

// originalDst returns the local address of the accepted connection. IPFW fwd
// and PF rdr-to preserve the original destination there.
func originalDst(tc *net.TCPConn) (endpoint.Endpoint, error) {
	e, err := endpoint.FromAddr(tc.LocalAddr())
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("%w: %w", ErrNotRedirected, err)
	}
	return e, nil
}
