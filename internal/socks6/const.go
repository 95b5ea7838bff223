package socks6

import (
	"errors"
	"fmt"

	txsocks5 "github.com/txthinking/socks5"
)

// Version is the protocol version byte.
const Version = 0x06

// CmdConnect is the only supported command.
const CmdConnect = 0x01

const (
	atypIPv4   = txsocks5.ATYPIPv4
	atypDomain = txsocks5.ATYPDomain
	atypIPv6   = txsocks5.ATYPIPv6
)

const (
	authSuccess = 0x00
	authFailure = 0x01
)

// Option kinds.
const (
	OptionAuthMethodAdvertisement = 0x0002
	OptionAuthMethodSelection     = 0x0003
	OptionMetadata                = 0xFDE8
)

// Metadata keys used for the chain extension block.
const (
	metaChainCursor = 998
	metaChainLength = 999
	metaChainLinks  = 1000

	maxChainLinks = 255
)

var (
	// ErrProtocol reports malformed version, command or option bytes.
	ErrProtocol = errors.New("socks6 protocol error")
	// ErrAddress reports an unparseable address field.
	ErrAddress = errors.New("socks6 address error")
	// ErrCommandNotSupported is returned by ReadRequest for anything but CONNECT.
	ErrCommandNotSupported = fmt.Errorf("%w: command not supported", ErrProtocol)
	// ErrAuthNegotiationFailed is returned when the proxy does not select "no
	// authentication".
	ErrAuthNegotiationFailed = errors.New("socks6 authentication negotiation failed")
	// ErrConnectionRefused is returned when the proxy replies ConnectionRefused.
	ErrConnectionRefused = errors.New("socks6 connection refused")
	// ErrProxy is returned for any other non-success reply.
	ErrProxy = errors.New("socks6 proxy error")
	// ErrUnreachableEndpoint wraps transport failures reaching a proxy.
	ErrUnreachableEndpoint = errors.New("socks6 proxy unreachable")
)

// ReplyCode is the status byte of an operation reply.
type ReplyCode byte

const (
	ReplySuccess                 ReplyCode = 0x00
	ReplyGeneralFailure          ReplyCode = 0x01
	ReplyConnectionNotAllowed    ReplyCode = 0x02
	ReplyNetworkUnreachable      ReplyCode = 0x03
	ReplyHostUnreachable         ReplyCode = 0x04
	ReplyConnectionRefused       ReplyCode = 0x05
	ReplyTTLExpired              ReplyCode = 0x06
	ReplyCommandNotSupported     ReplyCode = 0x07
	ReplyAddressTypeNotSupported ReplyCode = 0x08
	ReplyTimedOut                ReplyCode = 0x09
)

func (c ReplyCode) String() string {
	switch c {
	case ReplySuccess:
		return "success"
	case ReplyGeneralFailure:
		return "general failure"
	case ReplyConnectionNotAllowed:
		return "connection not allowed"
	case ReplyNetworkUnreachable:
		return "network unreachable"
	case ReplyHostUnreachable:
		return "host unreachable"
	case ReplyConnectionRefused:
		return "connection refused"
	case ReplyTTLExpired:
		return "TTL expired"
	case ReplyCommandNotSupported:
		return "command not supported"
	case ReplyAddressTypeNotSupported:
		return "address type not supported"
	case ReplyTimedOut:
		return "connection attempt timed out"
	default:
		return fmt.Sprintf("reply code 0x%02x", byte(c))
	}
}
