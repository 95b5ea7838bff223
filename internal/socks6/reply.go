package socks6

import (
	"fmt"
	"io"
	"net"

	"github.com/die-net/socksx/internal/endpoint"
)

// Reply is a decoded operation reply.
type Reply struct {
	Code ReplyCode
	Bind endpoint.Endpoint
}

var zeroBind = endpoint.New("0.0.0.0", 0)

// NewReply returns a reply with code and an unspecified bound address.
func NewReply(code ReplyCode) Reply {
	return Reply{Code: code, Bind: zeroBind}
}

// WriteNoAuthentication writes the authentication reply selecting "no
// authentication".
func WriteNoAuthentication(w io.Writer) error {
	if _, err := w.Write([]byte{Version, authSuccess, 0x00, 0x00}); err != nil {
		return fmt.Errorf("write auth reply: %w", err)
	}
	return nil
}

// ReadAuthReply reads the authentication reply and returns its options.
func ReadAuthReply(r io.Reader) ([]Option, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read auth reply: %w", err)
	}
	if hdr[0] != Version {
		return nil, fmt.Errorf("%w: proxy uses version 0x%02x", ErrProtocol, hdr[0])
	}
	opts, err := readOptions(r)
	if err != nil {
		return nil, err
	}
	if hdr[1] != authSuccess {
		return nil, fmt.Errorf("%w: status 0x%02x", ErrAuthNegotiationFailed, hdr[1])
	}
	return opts, nil
}

// WriteReply encodes rep and writes it with a single Write. An empty bound
// host is sent as 0.0.0.0.
func WriteReply(w io.Writer, rep Reply) error {
	if rep.Bind.Host == "" {
		rep.Bind.Host = zeroBind.Host
	}

	b := []byte{Version, byte(rep.Code), 0x00}
	b, err := appendAddress(b, rep.Bind)
	if err != nil {
		return err
	}
	b, err = appendOptions(b, nil)
	if err != nil {
		return err
	}

	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write %s reply: %w", rep.Code, err)
	}
	return nil
}

// WriteSuccessReply writes a success reply echoing bind as the bound
// address. A nil or unparseable bind is sent as 0.0.0.0:0.
func WriteSuccessReply(w io.Writer, bind net.Addr) error {
	rep := NewReply(ReplySuccess)
	if bind != nil {
		if e, err := endpoint.FromAddr(bind); err == nil {
			rep.Bind = e
		}
	}
	return WriteReply(w, rep)
}

// WriteConnectionRefusedReply writes a ConnectionRefused reply.
func WriteConnectionRefusedReply(w io.Writer) error {
	return WriteReply(w, NewReply(ReplyConnectionRefused))
}

// WriteGeneralFailureReply writes a GeneralFailure reply.
func WriteGeneralFailureReply(w io.Writer) error {
	return WriteReply(w, NewReply(ReplyGeneralFailure))
}

// ReadReply reads an operation reply. Reply options are read and discarded.
func ReadReply(r io.Reader) (*Reply, error) {
	var hdr [3]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read reply: %w", err)
	}
	if hdr[0] != Version {
		return nil, fmt.Errorf("%w: proxy uses version 0x%02x", ErrProtocol, hdr[0])
	}

	bind, err := readAddress(r)
	if err != nil {
		return nil, err
	}
	if _, err := readOptions(r); err != nil {
		return nil, err
	}

	return &Reply{Code: ReplyCode(hdr[1]), Bind: bind}, nil
}
