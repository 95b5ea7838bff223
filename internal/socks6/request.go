package socks6

import (
	"fmt"
	"io"
	"strconv"

	"github.com/die-net/socksx/internal/chain"
	"github.com/die-net/socksx/internal/endpoint"
)

// Request is a decoded SOCKS6 request.
type Request struct {
	Command     byte
	Destination endpoint.Endpoint

	// InitialDataLength is the number of bytes the client sends right after
	// the request, to be forwarded before the reply.
	InitialDataLength uint16

	// Chain is the proxy chain carried in the request, nil if none.
	Chain *chain.Chain

	// Options holds every option not interpreted above.
	Options []Option
}

// WriteRequest encodes req and writes it with a single Write.
func WriteRequest(w io.Writer, req *Request) error {
	b, err := req.appendTo(nil)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return fmt.Errorf("write request: %w", err)
	}
	return nil
}

func (req *Request) appendTo(b []byte) ([]byte, error) {
	cmd := req.Command
	if cmd == 0 {
		cmd = CmdConnect
	}
	b = append(b, Version, cmd)

	b, err := appendAddress(b, req.Destination)
	if err != nil {
		return nil, err
	}
	b = append(b, 0x00) // padding

	opts := []Option{authMethodAdvertisement(req.InitialDataLength)}
	if req.Chain != nil {
		chainOpts, err := chainOptions(*req.Chain)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chainOpts...)
	}
	opts = append(opts, req.Options...)

	return appendOptions(b, opts)
}

// ReadRequest reads a complete request from r.
func ReadRequest(r io.Reader) (*Request, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read request header: %w", err)
	}
	if hdr[0] != Version {
		return nil, fmt.Errorf("%w: version 0x%02x", ErrProtocol, hdr[0])
	}
	if hdr[1] != CmdConnect {
		return nil, fmt.Errorf("%w: 0x%02x", ErrCommandNotSupported, hdr[1])
	}

	dst, err := readAddress(r)
	if err != nil {
		return nil, err
	}

	var padding [1]byte
	if _, err := io.ReadFull(r, padding[:]); err != nil {
		return nil, fmt.Errorf("read request padding: %w", err)
	}

	opts, err := readOptions(r)
	if err != nil {
		return nil, err
	}

	req := &Request{Command: hdr[1], Destination: dst}
	meta := make(map[uint16]string)
	for _, o := range opts {
		switch o.Kind {
		case OptionAuthMethodAdvertisement:
			n, err := o.initialDataLength()
			if err != nil {
				return nil, err
			}
			req.InitialDataLength = n
		case OptionMetadata:
			key, value, err := o.metadata()
			if err != nil {
				return nil, err
			}
			if isChainKey(key) {
				meta[key] = value
				continue
			}
			req.Options = append(req.Options, o)
		default:
			req.Options = append(req.Options, o)
		}
	}

	if req.Chain, err = chainFromMetadata(meta); err != nil {
		return nil, err
	}
	return req, nil
}

// ReadInitialData reads the InitialDataLength bytes following req.
func ReadInitialData(r io.Reader, req *Request) ([]byte, error) {
	if req.InitialDataLength == 0 {
		return nil, nil
	}
	b := make([]byte, int(req.InitialDataLength))
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("read initial data: %w", err)
	}
	return b, nil
}

func chainOptions(c chain.Chain) ([]Option, error) {
	links := c.Links()
	if len(links) > maxChainLinks {
		return nil, fmt.Errorf("%w: chain of %d links exceeds %d", ErrProtocol, len(links), maxChainLinks)
	}

	opts := make([]Option, 0, len(links)+2)
	for i, l := range links {
		opts = append(opts, MetadataOption(uint16(metaChainLinks+i), "socks6://"+l.String()))
	}
	opts = append(opts,
		MetadataOption(metaChainCursor, strconv.Itoa(c.Cursor())),
		MetadataOption(metaChainLength, strconv.Itoa(len(links))),
	)
	return opts, nil
}

func isChainKey(key uint16) bool {
	return key == metaChainCursor || key == metaChainLength ||
		(key >= metaChainLinks && key < metaChainLinks+maxChainLinks)
}

func chainFromMetadata(meta map[uint16]string) (*chain.Chain, error) {
	lengthStr, ok := meta[metaChainLength]
	if !ok {
		return nil, nil
	}

	length, err := strconv.Atoi(lengthStr)
	if err != nil || length < 0 || length > maxChainLinks {
		return nil, fmt.Errorf("%w: bad chain length %q", ErrProtocol, lengthStr)
	}

	cursor := 0
	if s, ok := meta[metaChainCursor]; ok {
		cursor, err = strconv.Atoi(s)
		if err != nil || cursor < 0 || cursor > length {
			return nil, fmt.Errorf("%w: bad chain cursor %q", ErrProtocol, s)
		}
	}

	var links []chain.Link
	for i := range length {
		s, ok := meta[uint16(metaChainLinks+i)]
		if !ok {
			return nil, fmt.Errorf("%w: missing chain link %d", ErrProtocol, i)
		}
		l, err := chain.ParseLink(s)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAddress, err)
		}
		links = append(links, l)
	}

	c := chain.NewAt(cursor, links)
	return &c, nil
}
