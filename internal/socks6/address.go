package socks6

import (
	"encoding/binary"
	"fmt"
	"io"
	"net/netip"

	txsocks5 "github.com/txthinking/socks5"

	"github.com/die-net/socksx/internal/endpoint"
)

// appendAddress appends ATYP ADDR PORT for e.
func appendAddress(b []byte, e endpoint.Endpoint) ([]byte, error) {
	if e.Host == "" {
		return nil, fmt.Errorf("%w: empty host", ErrAddress)
	}
	if !e.IsIP() && len(e.Host) > 255 {
		return nil, fmt.Errorf("%w: domain name too long", ErrAddress)
	}

	atyp, addr, port, err := txsocks5.ParseAddress(e.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAddress, err)
	}

	b = append(b, atyp)
	b = append(b, addr...)
	b = append(b, port...)
	return b, nil
}

func readAddress(r io.Reader) (endpoint.Endpoint, error) {
	var atyp [1]byte
	if _, err := io.ReadFull(r, atyp[:]); err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("read address type: %w", err)
	}

	var host string
	switch atyp[0] {
	case atypIPv4:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return endpoint.Endpoint{}, fmt.Errorf("read ipv4 address: %w", err)
		}
		host = netip.AddrFrom4(b).String()
	case atypIPv6:
		var b [16]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return endpoint.Endpoint{}, fmt.Errorf("read ipv6 address: %w", err)
		}
		host = netip.AddrFrom16(b).String()
	case atypDomain:
		var n [1]byte
		if _, err := io.ReadFull(r, n[:]); err != nil {
			return endpoint.Endpoint{}, fmt.Errorf("read domain length: %w", err)
		}
		if n[0] == 0 {
			return endpoint.Endpoint{}, fmt.Errorf("%w: empty domain name", ErrAddress)
		}
		b := make([]byte, int(n[0]))
		if _, err := io.ReadFull(r, b); err != nil {
			return endpoint.Endpoint{}, fmt.Errorf("read domain: %w", err)
		}
		host = string(b)
		if !endpoint.ValidHost(host) {
			return endpoint.Endpoint{}, fmt.Errorf("%w: invalid domain name %q", ErrAddress, host)
		}
	default:
		return endpoint.Endpoint{}, fmt.Errorf("%w: unknown address type 0x%02x", ErrAddress, atyp[0])
	}

	var port [2]byte
	if _, err := io.ReadFull(r, port[:]); err != nil {
		return endpoint.Endpoint{}, fmt.Errorf("read port: %w", err)
	}

	return endpoint.New(host, binary.BigEndian.Uint16(port[:])), nil
}
