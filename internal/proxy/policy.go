package proxy

import (
	"fmt"
	"net"

	"github.com/yl2chen/cidranger"

	"github.com/die-net/socksx/internal/endpoint"
)

// Policy decides whether a destination may be connected to.
type Policy interface {
	Allow(dst endpoint.Endpoint) bool
}

// PolicyFunc adapts a function to Policy.
type PolicyFunc func(dst endpoint.Endpoint) bool

func (f PolicyFunc) Allow(dst endpoint.Endpoint) bool {
	return f(dst)
}

// AllowList allows destinations whose port is in a port set and whose
// address lies within a set of CIDR ranges. An empty set does not restrict.
// With CIDRs configured, only IP literal destinations can match.
type AllowList struct {
	ports  map[uint16]struct{}
	ranger cidranger.Ranger
}

// NewAllowList builds an AllowList from ports and CIDR strings such as
// "10.0.0.0/8" or "2001:db8::/32".
func NewAllowList(ports []uint16, cidrs []string) (*AllowList, error) {
	al := &AllowList{ranger: cidranger.NewPCTrieRanger()}

	if len(ports) > 0 {
		al.ports = make(map[uint16]struct{}, len(ports))
		for _, p := range ports {
			al.ports[p] = struct{}{}
		}
	}

	for _, s := range cidrs {
		_, n, err := net.ParseCIDR(s)
		if err != nil {
			return nil, fmt.Errorf("allow cidr %q: %w", s, err)
		}
		if err := al.ranger.Insert(cidranger.NewBasicRangerEntry(*n)); err != nil {
			return nil, fmt.Errorf("allow cidr %q: %w", s, err)
		}
	}

	return al, nil
}

func (al *AllowList) Allow(dst endpoint.Endpoint) bool {
	if al.ports != nil {
		if _, ok := al.ports[dst.Port]; !ok {
			return false
		}
	}

	if al.ranger.Len() > 0 {
		ip := net.ParseIP(dst.Host)
		if ip == nil {
			return false
		}
		if has, _ := al.ranger.Contains(ip); !has {
			return false
		}
	}

	return true
}
