package dialer

import (
	"net"
	"time"

	"github.com/die-net/socksx/internal/chain"
)

// Config holds the settings shared by every outbound dialer.
type Config struct {
	DialTimeout        time.Duration
	NegotiationTimeout time.Duration
	KeepAlive          net.KeepAliveConfig

	// Chain is sent to a socks6:// upstream as the hops it should traverse
	// after itself. Ignored by the direct dialer.
	Chain []chain.Link
}
