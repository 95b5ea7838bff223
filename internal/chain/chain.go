// Package chain models the ordered list of SOCKS6 proxies a connection still
// has to traverse.
//
// A Chain is an immutable value. Consuming a hop never mutates the chain;
// Residual returns a new chain holding only the hops after the next one, so a
// downstream proxy never learns which hops were already traversed.
package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/die-net/socksx/internal/endpoint"
)

// ErrChainExhausted is returned by NextLink when no hops remain.
var ErrChainExhausted = errors.New("chain exhausted")

// Link is one proxy hop.
type Link endpoint.Endpoint

// ParseLink parses a "host:port" or "socks6://host:port" hop.
func ParseLink(s string) (Link, error) {
	e, err := endpoint.Parse(s)
	if err != nil {
		return Link{}, err
	}
	return Link(e), nil
}

// ParseLinks parses each of s with ParseLink.
func ParseLinks(s []string) ([]Link, error) {
	if len(s) == 0 {
		return nil, nil
	}
	links := make([]Link, 0, len(s))
	for _, v := range s {
		l, err := ParseLink(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("chain link: %w", err)
		}
		links = append(links, l)
	}
	return links, nil
}

// Endpoint returns the proxy address of the hop.
func (l Link) Endpoint() endpoint.Endpoint {
	return endpoint.Endpoint(l)
}

// String formats the link as "host:port".
func (l Link) String() string {
	return l.Endpoint().String()
}

// Chain is a sequence of hops and a cursor pointing at the next one.
// The zero value is an empty, exhausted chain.
type Chain struct {
	links  []Link
	cursor int
}

// New returns a chain positioned at its first link.
func New(links ...Link) Chain {
	return NewAt(0, links)
}

// NewAt returns a chain positioned at cursor. The cursor is clamped to
// [0, len(links)].
func NewAt(cursor int, links []Link) Chain {
	cursor = max(0, min(cursor, len(links)))
	var ls []Link
	if len(links) > 0 {
		ls = append([]Link(nil), links...)
	}
	return Chain{links: ls, cursor: cursor}
}

// Resolve merges the chain carried by a request with a locally configured
// chain. A configured chain replaces the requested one entirely; otherwise
// the requested chain is used unmodified. It returns nil if neither provides
// a chain.
func Resolve(requested *Chain, configured []Link) *Chain {
	if len(configured) > 0 {
		c := New(configured...)
		return &c
	}
	if requested == nil {
		return nil
	}
	c := *requested
	return &c
}

// HasNext reports whether a hop remains.
func (c Chain) HasNext() bool {
	return c.cursor < len(c.links)
}

// NextLink returns the hop at the cursor without advancing it.
func (c Chain) NextLink() (Link, error) {
	if !c.HasNext() {
		return Link{}, ErrChainExhausted
	}
	return c.links[c.cursor], nil
}

// Residual returns the chain to forward to the next hop: the links after
// the cursor, with the cursor reset to 0.
func (c Chain) Residual() Chain {
	if c.cursor+1 >= len(c.links) {
		return Chain{}
	}
	return New(c.links[c.cursor+1:]...)
}

// Links returns a copy of all links, including ones before the cursor.
func (c Chain) Links() []Link {
	return append([]Link(nil), c.links...)
}

// Cursor returns the index of the next hop.
func (c Chain) Cursor() int {
	return c.cursor
}

// Len returns the number of links.
func (c Chain) Len() int {
	return len(c.links)
}

// Equal reports whether c and o hold the same links and cursor.
func (c Chain) Equal(o Chain) bool {
	if c.cursor != o.cursor || len(c.links) != len(o.links) {
		return false
	}
	for i := range c.links {
		if c.links[i] != o.links[i] {
			return false
		}
	}
	return true
}

func (c Chain) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, l := range c.links {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if i == c.cursor {
			sb.WriteByte('>')
		}
		sb.WriteString(l.String())
	}
	sb.WriteByte(']')
	return sb.String()
}
