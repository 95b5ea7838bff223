// Package dialer provides the outbound dialing implementations used by the
// SOCKS6 proxy, chain proxy and redirector.
//
// Dialers implement a small interface (DialContext) and establish outbound
// connections either directly or through a SOCKS6 proxy that may itself
// forward along a chain of further proxies.
package dialer
