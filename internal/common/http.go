package common

import (
	"net/http"
	"net/netip"
	"strings"
)

// ClientIP returns the caller address used to key rate limits: the first
// valid address in X-Forwarded-For, then X-Real-IP, then the host part of
// RemoteAddr. Malformed header entries are skipped so they cannot mint fresh
// limiter keys.
func ClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	for _, part := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if ip, ok := parseIP(part); ok {
			return ip
		}
	}
	if ip, ok := parseIP(r.Header.Get("X-Real-IP")); ok {
		return ip
	}
	remote := strings.TrimSpace(r.RemoteAddr)
	if ap, err := netip.ParseAddrPort(remote); err == nil {
		return ap.Addr().Unmap().String()
	}
	if ip, ok := parseIP(remote); ok {
		return ip
	}
	return remote
}

func parseIP(s string) (string, bool) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return "", false
	}
	return addr.Unmap().String(), true
}
