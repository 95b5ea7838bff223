// Package proxy implements the SOCKS6 proxy server.
//
// The server accepts SOCKS6 CONNECT requests, applies a destination policy,
// resolves the proxy chain and either dials the destination directly or
// forwards the request to the next proxy in the chain, then relays data in
// both directions. It also holds the shared keepalive listener.
package proxy
