package util

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
)

func TestClientIP(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{"10.0.0.0/8", "192.168.1.10", "fd00::/8"})
	if err != nil {
		t.Fatalf("new trusted proxies: %v", err)
	}

	cases := map[string]struct {
		remote    string
		forwarded string
		realIP    string
		trusted   *TrustedProxies
		want      string
	}{
		"untrusted peer ignores headers": {
			remote: "198.51.100.10:1234", forwarded: "203.0.113.5", realIP: "203.0.113.6",
			want: "198.51.100.10",
		},
		"trusted peer reads forwarded for": {
			remote: "10.0.0.20:1234", forwarded: "203.0.113.5", trusted: trusted,
			want: "203.0.113.5",
		},
		"first untrusted hop from the right": {
			remote: "10.0.0.20:1234", forwarded: "198.51.100.1, 203.0.113.5, 10.0.0.10", trusted: trusted,
			want: "203.0.113.5",
		},
		"real ip when forwarded is garbage": {
			remote: "192.168.1.10:80", forwarded: "nonsense", realIP: "203.0.113.7", trusted: trusted,
			want: "203.0.113.7",
		},
		"all hops trusted yields leftmost": {
			remote: "10.0.0.20:1234", forwarded: "10.0.0.5, 10.0.0.10", trusted: trusted,
			want: "10.0.0.5",
		},
		"ipv6 peer": {
			remote: "[fd00::1]:443", forwarded: "2001:db8::7", trusted: trusted,
			want: "2001:db8::7",
		},
		"mapped ipv4 peer is unmapped": {
			remote: "[::ffff:198.51.100.10]:1234",
			want:   "198.51.100.10",
		},
		"unparseable remote passes through": {
			remote: "pipe",
			want:   "pipe",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if tc.realIP != "" {
				req.Header.Set("X-Real-IP", tc.realIP)
			}
			if got := ClientIP(req, tc.trusted); got != tc.want {
				t.Fatalf("client ip = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewTrustedProxies(t *testing.T) {
	trusted, err := NewTrustedProxies([]string{" 10.1.2.3/8 ", "192.168.1.1", ""})
	if err != nil {
		t.Fatalf("expected valid entries, got err: %v", err)
	}
	if !trusted.Contains(netip.MustParseAddr("10.200.0.1")) {
		t.Fatalf("expected masked prefix to cover 10.200.0.1")
	}
	if trusted.Contains(netip.MustParseAddr("192.168.1.2")) {
		t.Fatalf("bare ip must only trust itself")
	}
	if none, err := NewTrustedProxies(nil); err != nil || none != nil {
		t.Fatalf("empty input should trust nothing, got %v %v", none, err)
	}
	for _, bad := range []string{"bad-cidr", "10.0.0.0/99"} {
		if _, err := NewTrustedProxies([]string{bad}); err == nil {
			t.Fatalf("expected parse error for %q", bad)
		}
	}
}
