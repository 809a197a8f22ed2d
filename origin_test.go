package auditry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mickamy/auditry"
)

func TestResolveOrigin(t *testing.T) {
	t.Parallel()

	tcs := []struct {
		name string
		info auditry.RequestInfo
		want string
	}{
		{name: "first public forwarded address", info: auditry.RequestInfo{ForwardedFor: "10.0.0.5, 8.8.8.8"}, want: "8.8.8.8"},
		{name: "first qualifying wins", info: auditry.RequestInfo{ForwardedFor: "203.0.113.1, 8.8.8.8"}, want: "203.0.113.1"},
		{name: "all private prefixes skipped", info: auditry.RequestInfo{ForwardedFor: "192.168.1.1, 172.16.0.3, 10.1.1.1, 1.1.1.1"}, want: "1.1.1.1"},
		{name: "172.17 is not filtered", info: auditry.RequestInfo{ForwardedFor: "172.17.0.1, 8.8.8.8"}, want: "172.17.0.1"},
		{name: "no qualifying falls back to connection", info: auditry.RequestInfo{ForwardedFor: "192.168.1.1", RemoteAddr: "203.0.113.9"}, want: "203.0.113.9"},
		{name: "connection address port stripped", info: auditry.RequestInfo{RemoteAddr: "203.0.113.9:54321"}, want: "203.0.113.9"},
		{name: "ipv6 connection address", info: auditry.RequestInfo{RemoteAddr: "[2001:db8::1]:443"}, want: "2001:db8::1"},
		{name: "separator is comma space", info: auditry.RequestInfo{ForwardedFor: "10.0.0.5,8.8.8.8", RemoteAddr: "203.0.113.9"}, want: "203.0.113.9"},
		{name: "nothing available", info: auditry.RequestInfo{}, want: "127.0.0.1"},
		{name: "private only without connection", info: auditry.RequestInfo{ForwardedFor: "10.0.0.1"}, want: "127.0.0.1"},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, auditry.ResolveOrigin(tc.info))
		})
	}
}

func TestContextOriginResolver(t *testing.T) {
	t.Parallel()

	var r auditry.ContextOriginResolver
	assert.Equal(t, auditry.Loopback, r.ResolveOrigin(context.Background()))

	ctx := auditry.WithRequest(context.Background(), auditry.RequestInfo{ForwardedFor: "10.0.0.5, 8.8.8.8"})
	assert.Equal(t, "8.8.8.8", r.ResolveOrigin(ctx))
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	var got string
	h := auditry.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auditry.ContextOriginResolver{}.ResolveOrigin(r.Context())
	}))

	req := httptest.NewRequest(http.MethodPost, "/invoices/42", nil)
	req.RemoteAddr = "198.51.100.7:40000"
	req.Header.Set("X-Forwarded-For", "192.168.0.10")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "198.51.100.7", got)
}
