package common

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP returns the caller address used for rate limiting. chi's RealIP
// middleware has already rewritten RemoteAddr from proxy headers when the
// server sits behind one; the header fallback covers handlers mounted without it.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	if remote != "" {
		return remote
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	return strings.TrimSpace(r.Header.Get("X-Real-IP"))
}
