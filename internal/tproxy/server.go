package tproxy

import (
	"context"
	"errors"
	"fmt"
	"net"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/die-net/socksx/internal/dialer"
	"github.com/die-net/socksx/internal/endpoint"
	"github.com/die-net/socksx/internal/proxy"
	"github.com/die-net/socksx/internal/relay"
)

// Server is the transparent redirector. It forwards every accepted
// connection to its original destination through Dialer.
type Server struct {
	ctx context.Context

	// Dialer reaches original destinations, normally a SOCKS6 upstream.
	Dialer dialer.Dialer

	// Resolver recovers the original destination of an accepted connection.
	Resolver func(net.Conn) (endpoint.Endpoint, error)

	Functions relay.Factory
	Logger    *zap.Logger
	Verbose   bool
}

// NewServer returns a redirector using cfg's dialer, stream functions and
// logger.
func NewServer(ctx context.Context, cfg proxy.Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirectDialer(cfg.DialConfig)
	}
	return &Server{
		ctx:       ctx,
		Dialer:    cfg.Dialer,
		Resolver:  OriginalDestination,
		Functions: cfg.Functions,
		Logger:    cfg.Logger,
		Verbose:   cfg.Verbose,
	}
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	var listenPort uint16
	if la, err := endpoint.FromAddr(ln.Addr()); err == nil {
		listenPort = la.Port
	}

	for {
		c, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("accept: %w", err)
		}
		go func() {
			if err := s.handle(c, listenPort); err != nil {
				lvl := zapcore.DebugLevel
				if s.Verbose && !errors.Is(err, context.Canceled) {
					lvl = zapcore.InfoLevel
				}
				if ce := s.Logger.Check(lvl, "tproxy connection error"); ce != nil {
					ce.Write(zap.Stringer("client", c.RemoteAddr()), zap.Error(err))
				}
			}
		}()
	}
}

func (s *Server) handle(conn net.Conn, listenPort uint16) error {
	defer conn.Close()
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	dst, err := s.Resolver(conn)
	if err != nil {
		return err
	}
	if isListener(dst, conn, listenPort) {
		return fmt.Errorf("%w: %s is the redirector itself", ErrNotRedirected, dst)
	}

	up, err := s.Dialer.DialContext(ctx, "tcp", dst.String())
	if err != nil {
		return err
	}
	defer up.Close()

	var toRemote, toClient []relay.StreamFunction
	if s.Functions != nil {
		if toRemote, toClient, err = s.Functions(); err != nil {
			return fmt.Errorf("stream functions: %w", err)
		}
	}

	if err := relay.CopyBidirectional(ctx, conn, up, toRemote, toClient); err != nil {
		return fmt.Errorf("proxy %s: %w", dst, err)
	}
	return nil
}

// isListener reports whether dst is the address the client connected to
// without any redirect, which would make the redirector dial itself.
func isListener(dst endpoint.Endpoint, conn net.Conn, listenPort uint16) bool {
	if dst.Port != listenPort {
		return false
	}
	local, err := endpoint.FromAddr(conn.LocalAddr())
	return err == nil && local == dst
}
