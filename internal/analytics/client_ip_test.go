package analytics

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestProxyMatcher(t *testing.T) {
	m := NewProxyMatcher([]string{"10.0.0.0/8", "192.168.1.5", " ", "garbage"})

	cases := []struct {
		ip      string
		trusted bool
	}{
		{"10.1.2.3", true},
		{"192.168.1.5", true},
		{"192.168.1.6", false},
		{"203.0.113.7", false},
	}
	for _, tc := range cases {
		if got := m.IsTrusted(net.ParseIP(tc.ip)); got != tc.trusted {
			t.Errorf("IsTrusted(%s) = %v, want %v", tc.ip, got, tc.trusted)
		}
	}

	var nilMatcher *ProxyMatcher
	if nilMatcher.IsTrusted(net.ParseIP("10.0.0.1")) {
		t.Error("nil matcher trusts addresses")
	}
}

func TestClientIP(t *testing.T) {
	trusted := NewProxyMatcher([]string{"10.0.0.0/8"})

	newReq := func(remote, xff string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = remote
		if xff != "" {
			r.Header.Set("X-Forwarded-For", xff)
		}
		return r
	}

	t.Run("DirectPeer", func(t *testing.T) {
		if got := ClientIP(newReq("203.0.113.7:4242", ""), trusted); got != "203.0.113.7" {
			t.Errorf("ClientIP = %q", got)
		}
	})

	t.Run("UntrustedPeerIgnoresHeader", func(t *testing.T) {
		// A direct, untrusted client can't spoof its address via XFF.
		if got := ClientIP(newReq("203.0.113.7:4242", "1.2.3.4"), trusted); got != "203.0.113.7" {
			t.Errorf("ClientIP = %q", got)
		}
	})

	t.Run("TrustedProxyChain", func(t *testing.T) {
		if got := ClientIP(newReq("10.0.0.1:4242", "198.51.100.9, 10.0.0.2"), trusted); got != "198.51.100.9" {
			t.Errorf("ClientIP = %q", got)
		}
	})

	t.Run("AllHopsTrusted", func(t *testing.T) {
		if got := ClientIP(newReq("10.0.0.1:4242", "10.0.0.3, 10.0.0.2"), trusted); got != "10.0.0.3" {
			t.Errorf("ClientIP = %q", got)
		}
	})

	t.Run("TrustedPeerNoHeader", func(t *testing.T) {
		if got := ClientIP(newReq("10.0.0.1:4242", ""), trusted); got != "10.0.0.1" {
			t.Errorf("ClientIP = %q", got)
		}
	})

	t.Run("IPv6", func(t *testing.T) {
		if got := ClientIP(newReq("[2001:db8::1]:4242", ""), trusted); got != "2001:db8::1" {
			t.Errorf("ClientIP = %q", got)
		}
	})
}
