package dialer

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/endpoint"
	"github.com/die-net/socksx/internal/socks6"
)

// SOCKS6ProxyDialer dials outbound TCP connections through a SOCKS6 proxy,
// optionally asking it to forward along a further chain of proxies.
type SOCKS6ProxyDialer struct {
	cfg       Config
	proxyAddr endpoint.Endpoint
	direct    Dialer
}

// NewSOCKS6ProxyDialer constructs a dialer for the proxy at proxyAddr.
func NewSOCKS6ProxyDialer(cfg Config, proxyAddr endpoint.Endpoint) *SOCKS6ProxyDialer {
	return &SOCKS6ProxyDialer{
		cfg:       cfg,
		proxyAddr: proxyAddr,
		direct:    NewDirectDialer(cfg),
	}
}

// ProxyAddr returns the proxy endpoint.
func (d *SOCKS6ProxyDialer) ProxyAddr() endpoint.Endpoint {
	return d.proxyAddr
}

// DialContext connects to address through the proxy, sending the configured
// chain.
func (d *SOCKS6ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("socks6 proxy dial %s %s: unsupported network", network, address)
	}

	dst, err := endpoint.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("socks6 proxy dial %s: %w", address, err)
	}

	var c *chain.Chain
	if len(d.cfg.Chain) > 0 {
		cc := chain.New(d.cfg.Chain...)
		c = &cc
	}

	return d.Connect(ctx, dst, c, nil)
}

// Connect dials the proxy and negotiates a CONNECT to dst, carrying c as the
// chain extension block when non-nil and initialData as the request's
// initial data.
func (d *SOCKS6ProxyDialer) Connect(ctx context.Context, dst endpoint.Endpoint, c *chain.Chain, initialData []byte) (net.Conn, error) {
	return d.ConnectRequest(ctx, &socks6.Request{Command: socks6.CmdConnect, Destination: dst, Chain: c}, initialData)
}

// ConnectRequest dials the proxy and sends req, options included.
//
// If NegotiationTimeout is set, a deadline is applied during negotiation and
// cleared before returning. The connection is closed on any failure.
func (d *SOCKS6ProxyDialer) ConnectRequest(ctx context.Context, req *socks6.Request, initialData []byte) (net.Conn, error) {
	conn, err := d.direct.DialContext(ctx, "tcp", d.proxyAddr.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", socks6.ErrUnreachableEndpoint, err)
	}

	if d.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(d.cfg.NegotiationTimeout))
	}

	// Unblock the handshake if ctx ends first.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})

	_, err = socks6.ClientRequest(conn, req, initialData)
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("socks6 proxy %s connect %s: %w", d.proxyAddr, req.Destination, err)
	}

	if d.cfg.NegotiationTimeout > 0 {
		_ = conn.SetDeadline(time.Time{})
	}
	return conn, nil
}
