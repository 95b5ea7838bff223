//go:build !linux && !freebsd && !openbsd

package tproxy

import (
	"net"

	"github.com/die-net/socksx/internal/endpoint"
)

// IsSupported is true on TPROXY-supporting OSes.
const IsSupported = false

func listenTransparent(string) (net.Listener, error) {
	return nil, ErrUnsupportedPlatform
}

func originalDst(*net.TCPConn) (endpoint.Endpoint, error) {
	return endpoint.Endpoint{}, ErrUnsupportedPlatform
}
