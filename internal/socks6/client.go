package socks6

import (
	"fmt"
	"io"
	"math"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/endpoint"
)

// ClientConnect performs the client side of a CONNECT over an established
// stream to a proxy: it sends the request (with c as the chain extension
// block when non-nil) and any initial data, then reads the authentication
// and operation replies.
//
// On success the stream carries application data to dst.
func ClientConnect(rw io.ReadWriter, dst endpoint.Endpoint, c *chain.Chain, initialData []byte) (*Reply, error) {
	return ClientRequest(rw, &Request{Command: CmdConnect, Destination: dst, Chain: c}, initialData)
}

// ClientRequest is ClientConnect for a prepared request, whose Options are
// sent along. InitialDataLength is set from initialData.
func ClientRequest(rw io.ReadWriter, req *Request, initialData []byte) (*Reply, error) {
	if len(initialData) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: %d bytes of initial data", ErrProtocol, len(initialData))
	}

	r := *req
	r.InitialDataLength = uint16(len(initialData))

	// Request and initial data go out in one write.
	b, err := r.appendTo(nil)
	if err != nil {
		return nil, err
	}
	b = append(b, initialData...)
	if _, err := rw.Write(b); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	if _, err := ReadAuthReply(rw); err != nil {
		return nil, err
	}

	rep, err := ReadReply(rw)
	if err != nil {
		return nil, err
	}

	switch rep.Code {
	case ReplySuccess:
		return rep, nil
	case ReplyConnectionRefused:
		return nil, fmt.Errorf("%w: %s", ErrConnectionRefused, r.Destination)
	default:
		return nil, fmt.Errorf("%w: %s: %s", ErrProxy, r.Destination, rep.Code)
	}
}
