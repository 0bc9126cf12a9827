package middleware

import (
	"net"
	"net/http"
	"strings"
)

// KeyFunc derives the rate limit token of a request.
type KeyFunc func(r *http.Request) string

// ClientIP returns the caller address. Forwarding headers are only honoured
// when trustForwarded is set, since any client can send them.
func ClientIP(r *http.Request, trustForwarded bool) string {
	if trustForwarded {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			return realIP
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return "unknown"
}

// ByIP keys requests as "ip:<address>".
func ByIP(trustForwarded bool) KeyFunc {
	return func(r *http.Request) string {
		return "ip:" + ClientIP(r, trustForwarded)
	}
}

// ByHeader keys requests as "user:<value>" when header is present and falls
// back otherwise.
func ByHeader(header string, fallback KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		if header != "" {
			if v := strings.TrimSpace(r.Header.Get(header)); v != "" {
				return "user:" + v
			}
		}
		return fallback(r)
	}
}

// Composite scopes another key to a route, e.g. "signin:ip:1.2.3.4".
func Composite(route string, fn KeyFunc) KeyFunc {
	return func(r *http.Request) string {
		return route + ":" + fn(r)
	}
}
