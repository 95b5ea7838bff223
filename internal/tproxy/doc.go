// Package tproxy implements the transparent redirector: a listener that
// accepts TCP connections redirected by the firewall, recovers each
// connection's original destination and forwards it, normally through a
// SOCKS6 proxy.
//
// On Linux, it listens with IP_TRANSPARENT and retrieves the original
// destination via SO_ORIGINAL_DST (IPv4) or IP6T_SO_ORIGINAL_DST (IPv6).
// This works with both iptables/nftables REDIRECT and TPROXY rules.
//
// On FreeBSD, it listens with IP_BINDANY (protocol-level) and retrieves the
// original destination from the socket's local address (which IPFW fwd and
// PF rdr-to preserve).
//
// On OpenBSD, it listens with SO_BINDANY (socket-level) and retrieves the
// original destination from the socket's local address (which PF rdr-to
// preserves).
//
// On any platform, a listener can instead take the original destination from
// a PROXY protocol header sent by a load balancer in front of it. Without
// PROXY protocol, other platforms return ErrUnsupportedPlatform.
package tproxy
