package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/semaphore"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/dialer"
	"github.com/die-net/socksx/internal/relay"
	"github.com/die-net/socksx/internal/socks6"
)

// ErrNotAllowed is returned when the policy rejects a destination.
var ErrNotAllowed = errors.New("destination not allowed")

// Server is a SOCKS6 proxy server.
type Server struct {
	ctx    context.Context
	cfg    Config
	log    *zap.Logger
	sem    *semaphore.Weighted
	active atomic.Int64
}

// NewServer returns a Server. Connections are aborted when ctx is canceled.
func NewServer(ctx context.Context, cfg Config) *Server {
	if ctx == nil {
		ctx = context.Background()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Dialer == nil {
		cfg.Dialer = dialer.NewDirectDialer(cfg.DialConfig)
	}

	s := &Server{ctx: ctx, cfg: cfg, log: cfg.Logger}
	if cfg.Limit > 0 {
		s.sem = semaphore.NewWeighted(cfg.Limit)
	}
	return s
}

// Active returns the number of connections being handled.
func (s *Server) Active() int64 {
	return s.active.Load()
}

// Serve accepts connections on ln and handles each in its own goroutine
// until ln is closed or fails permanently. Temporary accept errors are
// retried with backoff.
func (s *Server) Serve(ln net.Listener) error {
	var tempDelay time.Duration
	for {
		if s.sem != nil {
			if err := s.sem.Acquire(s.ctx, 1); err != nil {
				return err
			}
		}

		c, err := ln.Accept()
		if err != nil {
			s.release()
			if isTemporary(err) {
				tempDelay = min(max(2*tempDelay, 5*time.Millisecond), time.Second)
				s.log.Warn("accept error, retrying", zap.Error(err), zap.Duration("delay", tempDelay))
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		s.active.Inc()
		go s.handle(c)
	}
}

func (s *Server) release() {
	if s.sem != nil {
		s.sem.Release(1)
	}
}

func isTemporary(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return false
	}
	var te interface{ Temporary() bool }
	return errors.As(err, &te) && te.Temporary()
}

func (s *Server) handle(conn net.Conn) {
	defer s.release()
	defer s.active.Dec()
	defer conn.Close()

	log := s.log.With(zap.Stringer("client", conn.RemoteAddr()))
	if err := s.serveConn(conn, log); err != nil {
		lvl := zapcore.DebugLevel
		if s.cfg.Verbose {
			lvl = zapcore.InfoLevel
		}
		if ce := log.Check(lvl, "socks6 connection error"); ce != nil {
			ce.Write(zap.Error(err))
		}
	}
}

func (s *Server) serveConn(conn net.Conn, log *zap.Logger) error {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.NegotiationTimeout))
	}

	req, err := socks6.ReadRequest(conn)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	if err := socks6.WriteNoAuthentication(conn); err != nil {
		return err
	}
	initialData, err := socks6.ReadInitialData(conn, req)
	if err != nil {
		return err
	}

	dst := req.Destination
	if s.cfg.Policy != nil && !s.cfg.Policy.Allow(dst) {
		_ = socks6.WriteConnectionRefusedReply(conn)
		return fmt.Errorf("%w: %s", ErrNotAllowed, dst)
	}

	c := chain.Resolve(req.Chain, s.cfg.Chain)
	log = log.With(zap.Stringer("destination", dst))
	if c != nil {
		log = log.With(zap.Stringer("chain", c))
	}

	out, err := s.dial(ctx, req, c, initialData)
	if err != nil {
		if isRefused(err) {
			_ = socks6.WriteConnectionRefusedReply(conn)
		} else {
			_ = socks6.WriteGeneralFailureReply(conn)
		}
		return err
	}
	defer out.Close()

	if err := socks6.WriteSuccessReply(conn, out.LocalAddr()); err != nil {
		return err
	}

	if s.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}

	var toRemote, toClient []relay.StreamFunction
	if s.cfg.Functions != nil {
		if toRemote, toClient, err = s.cfg.Functions(); err != nil {
			return fmt.Errorf("stream functions: %w", err)
		}
	}

	log.Debug("relaying")
	if err := relay.CopyBidirectional(ctx, conn, out, toRemote, toClient); err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	return nil
}

// dial reaches the request's destination through the next chain hop if one
// remains, passing on the residual chain and the request's other options, or
// directly otherwise. initialData is delivered to the destination.
func (s *Server) dial(ctx context.Context, req *socks6.Request, c *chain.Chain, initialData []byte) (net.Conn, error) {
	if c != nil && c.HasNext() {
		next, err := c.NextLink()
		if err != nil {
			return nil, err
		}
		residual := c.Residual()
		d := dialer.NewSOCKS6ProxyDialer(s.cfg.DialConfig, next.Endpoint())
		return d.ConnectRequest(ctx, &socks6.Request{
			Command:     socks6.CmdConnect,
			Destination: req.Destination,
			Chain:       &residual,
			Options:     req.Options,
		}, initialData)
	}

	out, err := s.cfg.Dialer.DialContext(ctx, "tcp", req.Destination.String())
	if err != nil {
		return nil, err
	}
	if len(initialData) > 0 {
		if _, err := out.Write(initialData); err != nil {
			_ = out.Close()
			return nil, fmt.Errorf("write initial data: %w", err)
		}
	}
	return out, nil
}

func isRefused(err error) bool {
	return errors.Is(err, socks6.ErrConnectionRefused) || errors.Is(err, syscall.ECONNREFUSED)
}
