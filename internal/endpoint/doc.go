// Package endpoint holds the host:port value type shared by the SOCKS6
// codec, the chain model and the dialers.
package endpoint
