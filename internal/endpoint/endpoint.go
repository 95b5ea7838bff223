package endpoint

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"
)

// ErrAddress is returned for strings that do not describe a host:port pair.
var ErrAddress = errors.New("invalid address")

// Endpoint is a destination host and port. Host is either a hostname or an
// IP literal (without brackets).
type Endpoint struct {
	Host string
	Port uint16
}

// New returns an Endpoint for host and port. IP literals are stored in
// canonical form, with IPv4-mapped IPv6 addresses reduced to IPv4.
func New(host string, port uint16) Endpoint {
	return Endpoint{Host: canonicalHost(host), Port: port}
}

func canonicalHost(host string) string {
	if a, err := netip.ParseAddr(host); err == nil {
		return a.Unmap().String()
	}
	return host
}

// ValidHost reports whether host is an IP literal or a valid DNS name.
func ValidHost(host string) bool {
	return host != "" && govalidator.IsHost(host)
}

// Parse parses "host:port", "[v6]:port" or a URL-ish "scheme://host:port".
//
// The host must be non-empty and either an IP literal or a valid DNS name.
func Parse(s string) (Endpoint, error) {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w %q: %w", ErrAddress, s, err)
	}
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w %q: missing host", ErrAddress, s)
	}
	if !ValidHost(host) {
		return Endpoint{}, fmt.Errorf("%w %q: invalid host", ErrAddress, s)
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w %q: invalid port", ErrAddress, s)
	}

	return New(host, uint16(port)), nil
}

// FromAddr converts a TCP or UDP address. Other address types are parsed
// from their String form.
func FromAddr(a net.Addr) (Endpoint, error) {
	switch ta := a.(type) {
	case *net.TCPAddr:
		return fromAddrPort(ta.AddrPort()), nil
	case *net.UDPAddr:
		return fromAddrPort(ta.AddrPort()), nil
	case nil:
		return Endpoint{}, fmt.Errorf("%w: nil address", ErrAddress)
	default:
		return Parse(a.String())
	}
}

func fromAddrPort(ap netip.AddrPort) Endpoint {
	return Endpoint{Host: ap.Addr().Unmap().String(), Port: ap.Port()}
}

// IsIP reports whether Host is an IP literal.
func (e Endpoint) IsIP() bool {
	_, err := netip.ParseAddr(e.Host)
	return err == nil
}

// String returns the endpoint as a dialable "host:port".
func (e Endpoint) String() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(int(e.Port)))
}
