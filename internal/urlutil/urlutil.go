// Package urlutil builds absolute links to the server as the client reached it.
package urlutil

import (
	"net/http"
	"strings"
)

// Origin returns scheme://host for r. A reverse proxy's X-Forwarded-Proto and
// X-Forwarded-Host win over the connection's own values. Empty when no host is known.
func Origin(r *http.Request) string {
	if r == nil {
		return ""
	}
	host := firstForwarded(r.Header.Get("X-Forwarded-Host"))
	if host == "" {
		host = strings.TrimSpace(r.Host)
	}
	if host == "" {
		return ""
	}
	return requestScheme(r) + "://" + host
}

// Absolute resolves path against Origin(r). Paths that are already absolute
// URLs, and any path when the origin is unknown, are returned unchanged.
func Absolute(r *http.Request, path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	origin := Origin(r)
	if origin == "" {
		return path
	}
	if path == "" {
		return origin
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return origin + path
}

func requestScheme(r *http.Request) string {
	switch proto := firstForwarded(r.Header.Get("X-Forwarded-Proto")); proto {
	case "http", "https":
		return proto
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// firstForwarded takes the client-most entry of a comma separated forwarding header.
func firstForwarded(v string) string {
	if comma := strings.Index(v, ","); comma >= 0 {
		v = v[:comma]
	}
	return strings.TrimSpace(v)
}
