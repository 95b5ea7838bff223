package proxy

import (
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/dialer"
	"github.com/die-net/socksx/internal/relay"
)

type Config struct {
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	// Dialer reaches destinations when no chain hop remains. Defaults to a
	// direct dialer built from DialConfig.
	Dialer dialer.Dialer

	// DialConfig configures the SOCKS6 client used for chain hops.
	DialConfig dialer.Config

	// Chain, when non-empty, replaces any chain requested by clients.
	Chain []chain.Link

	// Policy decides which destinations may be reached. Nil allows all.
	Policy Policy

	// Limit caps concurrently handled connections. Zero means no limit.
	Limit int64

	// Functions builds the stream functions for each relayed connection.
	Functions relay.Factory

	Logger  *zap.Logger
	Verbose bool
}
