//go:build linux

package tproxy

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/die-net/socksx/internal/endpoint"
)

// IsSupported is true on TPROXY-supporting OSes.
const IsSupported = true

// ip6tSOOriginalDst is IP6T_SO_ORIGINAL_DST from linux/netfilter_ipv6/ip6_tables.h.
const ip6tSOOriginalDst = 80

// listenTransparent enables IP_TRANSPARENT so the socket can accept
// connections addressed to any IP (typical TPROXY setup).
func listenTransparent(addr string) (net.Listener, error) {
	lc := net.ListenConfig{Control: func(network, _ string, c syscall.RawConn) error {
		var ctrlErr error
		err := c.Control(func(fd uintptr) {
			if network == "tcp6" {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_IPV6, unix.IPV6_TRANSPARENT, 1)
			} else {
				ctrlErr = unix.SetsockoptInt(int(fd), unix.SOL_IP, unix.IP_TRANSPARENT, 1)
			}
		})
		if err != nil {
			return err
		}
		return ctrlErr
	}}
	return lc.Listen(context.Background(), "tcp", addr)
}

func originalDst(tc *net.TCPConn) (endpoint.Endpoint, error) {
	rc, err := tc.SyscallConn()
	if err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("%w: %w", ErrNotRedirected, err)
	}

	v6 := false
	if la, ok := tc.LocalAddr().(*net.TCPAddr); ok && la.IP.To4() == nil {
		v6 = true
	}

	var (
		ap          netip.AddrPort
		sockErr     error
		transparent bool
	)
	err = rc.Control(func(fd uintptr) {
		transparent = isTransparent(int(fd))
		if v6 {
			ap, sockErr = originalDst6(int(fd))
		} else {
			ap, sockErr = originalDst4(int(fd))
		}
	})
	if err == nil {
		err = sockErr
	}

	local, lerr := endpoint.FromAddr(tc.LocalAddr())

	var dst endpoint.Endpoint
	switch {
	case err == nil:
		dst = endpoint.New(ap.Addr().String(), ap.Port())
	case errors.Is(err, unix.ENOENT) && transparent && lerr == nil:
		// No NAT entry: TPROXY keeps the original destination as the
		// socket's local address.
		return local, nil
	case errors.Is(err, unix.ENOENT):
		return endpoint.Endpoint{}, fmt.Errorf("%w: no NAT entry", ErrNotRedirected)
	default:
		return endpoint.Endpoint{}, fmt.Errorf("%w: getsockopt original destination: %w", ErrNotRedirected, err)
	}

	// Conntrack also knows unredirected connections; their original
	// destination is the socket itself.
	if dst == local && !transparent {
		return endpoint.Endpoint{}, fmt.Errorf("%w: %s is the local address", ErrNotRedirected, dst)
	}
	return dst, nil
}

// isTransparent reports whether the socket inherited IP_TRANSPARENT or
// IPV6_TRANSPARENT from a TPROXY listener.
func isTransparent(fd int) bool {
	if v, err := unix.GetsockoptInt(fd, unix.SOL_IP, unix.IP_TRANSPARENT); err == nil && v != 0 {
		return true
	}
	v, err := unix.GetsockoptInt(fd, unix.SOL_IPV6, unix.IPV6_TRANSPARENT)
	return err == nil && v != 0
}

// originalDst4 reads SO_ORIGINAL_DST. The kernel fills a sockaddr_in, which
// fits in the 16 bytes of an IPv6Mreq.
func originalDst4(fd int) (netip.AddrPort, error) {
	mreq, err := unix.GetsockoptIPv6Mreq(fd, unix.IPPROTO_IP, unix.SO_ORIGINAL_DST)
	if err != nil {
		return netip.AddrPort{}, err
	}

	raw := mreq.Multiaddr
	port := binary.BigEndian.Uint16(raw[2:4])
	addr := netip.AddrFrom4([4]byte(raw[4:8]))
	return netip.AddrPortFrom(addr, port), nil
}

// originalDst6 reads IP6T_SO_ORIGINAL_DST. The kernel fills a sockaddr_in6,
// which is the leading field of an IPv6MTUInfo.
func originalDst6(fd int) (netip.AddrPort, error) {
	info, err := unix.GetsockoptIPv6MTUInfo(fd, unix.IPPROTO_IPV6, ip6tSOOriginalDst)
	if err != nil {
		return netip.AddrPort{}, err
	}

	// sin6_port is in network byte order.
	port := binary.BigEndian.Uint16(binary.NativeEndian.AppendUint16(nil, info.Addr.Port))
	addr := netip.AddrFrom16(info.Addr.Addr)
	return netip.AddrPortFrom(addr, port), nil
}
