package socks6

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Option is a raw SOCKS6 option. Data excludes the 4-byte kind/length header
// and includes any padding.
type Option struct {
	Kind uint16
	Data []byte
}

// MetadataOption returns a metadata option carrying key=value.
func MetadataOption(key uint16, value string) Option {
	data := make([]byte, 4, 4+len(value)+3)
	binary.BigEndian.PutUint16(data[0:], key)
	binary.BigEndian.PutUint16(data[2:], uint16(len(value)))
	data = append(data, value...)
	return Option{Kind: OptionMetadata, Data: pad(data)}
}

func authMethodAdvertisement(initialDataLength uint16, methods ...byte) Option {
	data := binary.BigEndian.AppendUint16(nil, initialDataLength)
	data = append(data, methods...)
	return Option{Kind: OptionAuthMethodAdvertisement, Data: pad(data)}
}

// pad extends data so that the option, header included, is a multiple of 4
// bytes long.
func pad(data []byte) []byte {
	if n := (4 + len(data)) % 4; n != 0 {
		data = append(data, make([]byte, 4-n)...)
	}
	return data
}

func (o Option) appendTo(b []byte) []byte {
	padding := (4 - (4+len(o.Data))%4) % 4
	b = binary.BigEndian.AppendUint16(b, o.Kind)
	b = binary.BigEndian.AppendUint16(b, uint16(4+len(o.Data)+padding))
	b = append(b, o.Data...)
	return append(b, make([]byte, padding)...)
}

func (o Option) metadata() (key uint16, value string, err error) {
	if len(o.Data) < 4 {
		return 0, "", fmt.Errorf("%w: short metadata option", ErrProtocol)
	}
	key = binary.BigEndian.Uint16(o.Data[0:])
	n := int(binary.BigEndian.Uint16(o.Data[2:]))
	if n > len(o.Data)-4 {
		return 0, "", fmt.Errorf("%w: metadata value overruns option", ErrProtocol)
	}
	return key, string(o.Data[4 : 4+n]), nil
}

func (o Option) initialDataLength() (uint16, error) {
	if len(o.Data) < 2 {
		return 0, fmt.Errorf("%w: short auth method advertisement", ErrProtocol)
	}
	return binary.BigEndian.Uint16(o.Data), nil
}

// appendOptions appends OPTLEN followed by every option.
func appendOptions(b []byte, opts []Option) ([]byte, error) {
	var body []byte
	for _, o := range opts {
		body = o.appendTo(body)
	}
	if len(body) > math.MaxUint16 {
		return nil, fmt.Errorf("%w: options block too long (%d bytes)", ErrProtocol, len(body))
	}
	b = binary.BigEndian.AppendUint16(b, uint16(len(body)))
	return append(b, body...), nil
}

func readOptions(r io.Reader) ([]Option, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("read options length: %w", err)
	}
	total := int(binary.BigEndian.Uint16(hdr[:]))
	if total == 0 {
		return nil, nil
	}

	body := make([]byte, total)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read options: %w", err)
	}

	var opts []Option
	for len(body) > 0 {
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: truncated option header", ErrProtocol)
		}
		kind := binary.BigEndian.Uint16(body[0:])
		n := int(binary.BigEndian.Uint16(body[2:]))
		if n < 4 || n > len(body) {
			return nil, fmt.Errorf("%w: bad option length %d", ErrProtocol, n)
		}
		opts = append(opts, Option{Kind: kind, Data: append([]byte(nil), body[4:n]...)})
		body = body[n:]
	}
	return opts, nil
}
