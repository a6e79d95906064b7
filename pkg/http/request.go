package http

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// IPConfig holds the CIDR ranges of proxies whose forwarding headers are trusted
type IPConfig struct {
	trusted []netip.Prefix
}

// NewIPConfig parses trustedProxies, skipping entries that are not valid CIDRs
func NewIPConfig(trustedProxies []string) *IPConfig {
	cfg := &IPConfig{trusted: make([]netip.Prefix, 0, len(trustedProxies))}
	for _, cidr := range trustedProxies {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		cfg.trusted = append(cfg.trusted, prefix.Masked())
	}
	return cfg
}

// ExtractClientIP returns the client address of the request.
//
// X-Forwarded-For and X-Real-IP are honored only when the direct peer is a
// trusted proxy. The result is empty when no valid address can be found, so
// callers never mistake a placeholder for an origin.
func ExtractClientIP(r *http.Request, config *IPConfig) string {
	remote, ok := remoteAddr(r)
	if !ok {
		return ""
	}

	if config == nil || !config.isTrusted(remote) {
		return remote.String()
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return config.forwardedClient(strings.Split(xff, ","), remote).String()
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap().String()
	}

	return remote.String()
}

// forwardedClient walks hops from the right, since each proxy appends its
// peer there. The first hop outside the trusted ranges is the client. Hops
// left of a malformed entry are client-supplied and are not consulted.
func (c *IPConfig) forwardedClient(hops []string, remote netip.Addr) netip.Addr {
	client := remote
	for i := len(hops) - 1; i >= 0; i-- {
		addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
		if err != nil {
			break
		}
		client = addr.Unmap()
		if !c.isTrusted(client) {
			break
		}
	}
	return client
}

// remoteAddr parses RemoteAddr with or without a port
func remoteAddr(r *http.Request) (netip.Addr, bool) {
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}

	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}

func (c *IPConfig) isTrusted(addr netip.Addr) bool {
	for _, prefix := range c.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
