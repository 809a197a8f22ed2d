package auditry

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

// Loopback is the origin recorded outside of any request.
const Loopback = "127.0.0.1"

// ForwardedForHeader is the proxy header scanned for client addresses.
const ForwardedForHeader = "X-Forwarded-For"

// RequestInfo is the network context of the request that triggered a mutation.
type RequestInfo struct {
	ForwardedFor string // raw forwarding header value
	RemoteAddr   string // connection address, with or without port
}

// RequestInfoFrom captures origin info from r.
func RequestInfoFrom(r *http.Request) RequestInfo {
	return RequestInfo{
		ForwardedFor: r.Header.Get(ForwardedForHeader),
		RemoteAddr:   stripPort(r.RemoteAddr),
	}
}

// Middleware attaches RequestInfo to every request context so hooks running
// under that context record the caller's origin.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithRequest(r.Context(), RequestInfoFrom(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OriginResolver resolves the network origin for an audit entry.
type OriginResolver interface {
	ResolveOrigin(ctx context.Context) string
}

// ContextOriginResolver reads the RequestInfo attached with WithRequest.
type ContextOriginResolver struct{}

func (ContextOriginResolver) ResolveOrigin(ctx context.Context) string {
	info, ok := RequestFrom(ctx)
	if !ok {
		return Loopback
	}
	return ResolveOrigin(info)
}

var rePrivate = regexp.MustCompile(`(?i)^(10\.|172\.16\.|192\.168\.)`)

// ResolveOrigin picks the first forwarded address outside the private prefixes
// 10., 172.16. and 192.168., falling back to the connection address, then Loopback.
//
// This is a best-effort guess: forwarding headers are client-controlled and can be spoofed.
func ResolveOrigin(info RequestInfo) string {
	if info.ForwardedFor != "" {
		for _, candidate := range strings.Split(info.ForwardedFor, ", ") {
			if candidate != "" && !rePrivate.MatchString(candidate) {
				return candidate
			}
		}
	}
	if addr := stripPort(info.RemoteAddr); addr != "" {
		return addr
	}
	return Loopback
}

func stripPort(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
