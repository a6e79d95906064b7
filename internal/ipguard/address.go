// Package ipguard holds the address parsing and similarity rules used by the
// IP-diversity lockout policy.
package ipguard

import (
	"net/netip"
	"strings"
)

// Address is a validated login origin.
type Address struct {
	addr netip.Addr
}

// ParseAddress validates an IPv4 or IPv6 literal. Empty input, zoned
// addresses and anything that is not an IP literal are rejected.
// IPv4-mapped IPv6 addresses are reduced to their IPv4 form.
func ParseAddress(raw string) (Address, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Address{}, false
	}

	addr, err := netip.ParseAddr(raw)
	if err != nil || addr.Zone() != "" {
		return Address{}, false
	}

	return Address{addr: addr.Unmap()}, true
}

// String returns the canonical form stored in account history.
func (a Address) String() string {
	return a.addr.String()
}

// Segments splits the address into its grouping segments: four dotted
// octets for IPv4, eight fully expanded hextets for IPv6.
func (a Address) Segments() []string {
	if a.addr.Is4() {
		return strings.Split(a.addr.String(), ".")
	}
	return strings.Split(a.addr.StringExpanded(), ":")
}

// GroupKey is the leading segment used to bucket addresses into neighborhoods.
func (a Address) GroupKey() string {
	return a.Segments()[0]
}
