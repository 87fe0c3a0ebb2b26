package http

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractClientIP_UntrustedRemoteIgnoresHeaders(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:52110"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")
	req.Header.Set("X-Real-IP", "198.51.100.2")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "203.0.113.7", ip, "forwarding headers from an untrusted source are spoofable")
}

func TestExtractClientIP_TrustedProxyUsesForwardedFor(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.1.2.3:52110"
	req.Header.Set("X-Forwarded-For", "bogus, 198.51.100.1, 10.1.2.3")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "198.51.100.1", ip, "first valid entry in the chain wins")
}

func TestExtractClientIP_TrustedProxyFallsBackToRealIP(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.1.2.3:52110"
	req.Header.Set("X-Real-IP", "198.51.100.2")

	ip := ExtractClientIP(req, &IPConfig{TrustedProxies: []string{"10.0.0.0/8"}})
	assert.Equal(t, "198.51.100.2", ip)
}

func TestExtractClientIP_NilConfig(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7:52110"
	req.Header.Set("X-Forwarded-For", "198.51.100.1")

	assert.Equal(t, "203.0.113.7", ExtractClientIP(req, nil))
}

func TestExtractClientIP_NoPort(t *testing.T) {
	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "203.0.113.7"

	assert.Equal(t, "203.0.113.7", ExtractClientIP(req, nil))
}

func TestIsTrustedProxy_InvalidRangesSkipped(t *testing.T) {
	assert.False(t, isTrustedProxy("10.1.2.3", nil))
	assert.False(t, isTrustedProxy("10.1.2.3", []string{"not-a-cidr"}))
	assert.True(t, isTrustedProxy("10.1.2.3", []string{"not-a-cidr", "10.0.0.0/8"}))
	assert.False(t, isTrustedProxy("not-an-ip", []string{"10.0.0.0/8"}))
}
