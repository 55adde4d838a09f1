package analytics

import (
	"net"
	"net/http"
	"strconv"
	"strings"
)

// ProxyMatcher decides whether a remote address belongs to a trusted
// reverse proxy whose X-Forwarded-For is honored.
type ProxyMatcher struct {
	nets []*net.IPNet
}

// NewProxyMatcher parses proxy CIDRs (bare IPs are accepted as /32 or
// /128). Invalid entries are skipped.
func NewProxyMatcher(cidrs []string) *ProxyMatcher {
	m := &ProxyMatcher{}
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.Contains(c, "/") {
			if ip := net.ParseIP(c); ip != nil {
				bits := 32
				if ip.To4() == nil {
					bits = 128
				}
				c = ip.String() + "/" + strconv.Itoa(bits)
			}
		}
		if _, ipnet, err := net.ParseCIDR(c); err == nil {
			m.nets = append(m.nets, ipnet)
		}
	}
	return m
}

// IsTrusted reports whether ip falls in any configured proxy range.
func (m *ProxyMatcher) IsTrusted(ip net.IP) bool {
	if m == nil || ip == nil {
		return false
	}
	for _, n := range m.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP resolves the real client IP of r. X-Forwarded-For is walked
// right to left, skipping trusted proxies, and is only consulted at all
// when the direct peer is a trusted proxy.
func ClientIP(r *http.Request, trusted *ProxyMatcher) string {
	remote := remoteIP(r)
	if remote == nil {
		return ""
	}
	if !trusted.IsTrusted(remote) {
		return remote.String()
	}

	candidates := parseXForwardedFor(r.Header.Get("X-Forwarded-For"))
	if len(candidates) == 0 {
		return remote.String()
	}
	for i := len(candidates) - 1; i >= 0; i-- {
		if !trusted.IsTrusted(candidates[i]) {
			return candidates[i].String()
		}
	}
	return candidates[0].String()
}

func remoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return net.ParseIP(strings.Trim(host, "[]"))
}

func parseXForwardedFor(header string) []net.IP {
	if header == "" {
		return nil
	}
	var out []net.IP
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" || strings.EqualFold(part, "unknown") {
			continue
		}
		host := strings.Trim(part, "\"")
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if ip := net.ParseIP(strings.Trim(host, "[]")); ip != nil {
			out = append(out, ip)
		}
	}
	return out
}
