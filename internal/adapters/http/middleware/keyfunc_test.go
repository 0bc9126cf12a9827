package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		trust      bool
		want       string
	}{
		{name: "remote addr", remoteAddr: "192.0.2.1:5555", want: "192.0.2.1"},
		{name: "ipv6 remote addr", remoteAddr: "[2001:db8::1]:443", want: "2001:db8::1"},
		{name: "remote addr without port", remoteAddr: "192.0.2.9", want: "192.0.2.9"},
		{name: "empty remote addr", remoteAddr: "", want: "unknown"},
		{
			name:       "forwarded ignored when untrusted",
			remoteAddr: "192.0.2.1:5555",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7"},
			want:       "192.0.2.1",
		},
		{
			name:       "first forwarded entry when trusted",
			remoteAddr: "192.0.2.1:5555",
			headers:    map[string]string{"X-Forwarded-For": " 203.0.113.7 , 10.0.0.1"},
			trust:      true,
			want:       "203.0.113.7",
		},
		{
			name:       "real ip when trusted",
			remoteAddr: "192.0.2.1:5555",
			headers:    map[string]string{"X-Real-IP": "198.51.100.4"},
			trust:      true,
			want:       "198.51.100.4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req, tt.trust))
		})
	}
}

func TestKeyFuncs(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"

	byIP := ByIP(false)
	assert.Equal(t, "ip:192.0.2.1", byIP(req))

	byUser := ByHeader("X-User-ID", byIP)
	assert.Equal(t, "ip:192.0.2.1", byUser(req))
	assert.Equal(t, "signin:ip:192.0.2.1", Composite("signin", byIP)(req))

	req.Header.Set("X-User-ID", " u-42 ")
	assert.Equal(t, "user:u-42", byUser(req))
	assert.Equal(t, "insights:user:u-42", Composite("insights", byUser)(req))

	assert.Equal(t, "ip:192.0.2.1", ByHeader("", byIP)(req))
}
