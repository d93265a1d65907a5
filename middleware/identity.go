package middleware

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is the identity used when a request carries no usable address.
const UnknownClient = "0.0.0.0"

// ClientIdentity describes the clientidentity operation and its observable behavior.
//
// ClientIdentity returns the first entry of X-Forwarded-For when present, otherwise the host
// part of RemoteAddr, otherwise [UnknownClient]. IPv6 brackets and ports are stripped.
// X-Forwarded-For is trusted as sent; deploy behind a proxy that overwrites it.
func ClientIdentity(r *http.Request) string {
	if r == nil {
		return UnknownClient
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := stripPort(strings.TrimSpace(first)); ip != "" {
			return ip
		}
	}

	if ip := stripPort(strings.TrimSpace(r.RemoteAddr)); ip != "" {
		return ip
	}
	return UnknownClient
}

// stripPort removes an optional port and IPv6 brackets from addr.
func stripPort(addr string) string {
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
}
