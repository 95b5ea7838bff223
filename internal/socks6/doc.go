// Package socks6 implements the SOCKS6 wire format used by socksx: the
// request, the authentication reply, the operation reply and the option
// block that carries initial-data lengths and proxy chains.
//
// Only the CONNECT command and the "no authentication" method are
// supported. Address fields share their layout with SOCKS5, so the address
// encoding is delegated to github.com/txthinking/socks5.
//
// Messages are written with a single Write call and read with io.ReadFull
// directly from the stream, never buffering past the end of a message, so
// the caller can hand the stream to a relay as soon as the handshake ends.
package socks6
