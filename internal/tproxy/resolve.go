package tproxy

import (
	"errors"
	"fmt"
	"net"

	proxyproto "github.com/pires/go-proxyproto"

	"github.com/die-net/socksx/internal/endpoint"
	"github.com/die-net/socksx/internal/proxy"
)

var (
	// ErrUnsupportedPlatform is returned where the OS offers no way to learn
	// a redirected connection's original destination.
	ErrUnsupportedPlatform = errors.New("transparent proxy is not supported on this platform")

	// ErrNotRedirected is returned for connections that carry no original
	// destination.
	ErrNotRedirected = errors.New("connection was not redirected")
)

// OriginalDestination returns the destination c was addressed to before the
// firewall redirected it to this host. Connections accepted from a PROXY
// protocol listener report the destination from their header.
func OriginalDestination(c net.Conn) (endpoint.Endpoint, error) {
	switch tc := c.(type) {
	case *proxyproto.Conn:
		h := tc.ProxyHeader()
		if h == nil || h.DestinationAddr == nil {
			return endpoint.Endpoint{}, fmt.Errorf("%w: no PROXY protocol destination", ErrNotRedirected)
		}
		return endpoint.FromAddr(h.DestinationAddr)
	case *net.TCPConn:
		return originalDst(tc)
	default:
		return endpoint.Endpoint{}, fmt.Errorf("%w: %T is not a TCP connection", ErrNotRedirected, c)
	}
}

// ListenTransparentTCP listens on addr for redirected connections and applies
// keepAliveConfig to accepted connections.
//
// With proxyProtocol set, the socket is an ordinary listener and every
// connection must start with a PROXY protocol header naming its original
// destination; this works on every platform and needs no privileges.
// Otherwise the socket is opened in the platform's transparent mode, which
// usually requires root, and callers still need firewall rules that redirect
// traffic to it.
func ListenTransparentTCP(addr string, keepAliveConfig net.KeepAliveConfig, proxyProtocol bool) (net.Listener, error) {
	if proxyProtocol {
		ln, err := proxy.ListenTCP("tcp", addr, keepAliveConfig)
		if err != nil {
			return nil, err
		}
		return &proxyproto.Listener{Listener: ln, Policy: requireProxyHeader}, nil
	}

	ln, err := listenTransparent(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen tproxy %s: %w", proxy.ErrBind, addr, err)
	}
	return &proxy.KeepAliveListener{Listener: ln, KeepAliveConfig: keepAliveConfig}, nil
}

func requireProxyHeader(net.Addr) (proxyproto.Policy, error) {
	return proxyproto.REQUIRE, nil
}
