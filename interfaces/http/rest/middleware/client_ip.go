package middleware

import (
	"net"
	"net/http"
	"strings"
)

// RealIP rewrites r.RemoteAddr to the client address. With trustedHops set to
// zero the TCP peer is the client and forwarding headers are ignored. Otherwise
// each trusted proxy is expected to append its peer to X-Forwarded-For, so the
// client is the entry trustedHops positions from the right; anything further
// left was supplied by the client.
func RealIP(trustedHops int) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := forwardedClient(r.Header.Values("X-Forwarded-For"), trustedHops); ip != "" {
				r.RemoteAddr = ip
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(headers []string, trustedHops int) string {
	if trustedHops <= 0 || len(headers) == 0 {
		return ""
	}

	var hops []string
	for _, h := range headers {
		for _, part := range strings.Split(h, ",") {
			if part = strings.TrimSpace(part); part != "" {
				hops = append(hops, part)
			}
		}
	}
	if len(hops) == 0 {
		return ""
	}

	idx := len(hops) - trustedHops
	if idx < 0 {
		idx = 0
	}
	if net.ParseIP(hops[idx]) == nil {
		return ""
	}
	return hops[idx]
}

// getClientIP returns the host part of r.RemoteAddr
func getClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
