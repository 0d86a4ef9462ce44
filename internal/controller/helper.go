package controller

import (
	"net"
	"net/http"
	"strings"
)

// clientIP prefers the first hop of X-Forwarded-For (set by the reverse
// proxy), falls back to the socket address, and strips the IPv6-mapped IPv4
// prefix. Observability only, never used for correctness.
func clientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.SplitN(fwd, ",", 2)[0])
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	}

	return strings.TrimPrefix(ip, "::ffff:")
}
