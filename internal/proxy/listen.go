package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrBind is returned when a listening socket cannot be created.
var ErrBind = errors.New("bind failed")

// ListenTCP listens on the given network/address and returns a net.Listener
// that applies keepAliveConfig to accepted TCP connections.
func ListenTCP(network, addr string, keepAliveConfig net.KeepAliveConfig) (net.Listener, error) {
	lc := net.ListenConfig{}

	ln, err := lc.Listen(context.Background(), network, addr)
	if err != nil {
		return nil, fmt.Errorf("%w: listen %s %s: %w", ErrBind, network, addr, err)
	}

	return &KeepAliveListener{Listener: ln, KeepAliveConfig: keepAliveConfig}, nil
}

// KeepAliveListener wraps a net.Listener and applies KeepAliveConfig to any
// accepted *net.TCPConn.
type KeepAliveListener struct {
	net.Listener
	net.KeepAliveConfig
}

// Accept accepts the next connection and applies KeepAliveConfig if the
// connection is a *net.TCPConn.
func (l *KeepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}

	ApplyKeepAlive(conn, l.KeepAliveConfig)

	return conn, nil
}

// ApplyKeepAlive sets ka on conn if it is a *net.TCPConn.
func ApplyKeepAlive(conn net.Conn, ka net.KeepAliveConfig) {
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetKeepAliveConfig(ka)
	}
}
