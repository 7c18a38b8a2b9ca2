package utils

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIP(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain IPv4",
			input:    "1.2.3.4",
			expected: "1.2.3.4",
		},
		{
			name:     "IPv4-mapped IPv6",
			input:    "::ffff:192.168.1.1",
			expected: "192.168.1.1",
		},
		{
			name:     "upper case mapped prefix",
			input:    "::FFFF:10.0.0.7",
			expected: "10.0.0.7",
		},
		{
			name:     "forwarded-for list takes first entry",
			input:    " 5.6.7.8 , 10.0.0.1, 172.16.0.1",
			expected: "5.6.7.8",
		},
		{
			name:     "mapped address inside a list",
			input:    "::ffff:9.9.9.9, 1.1.1.1",
			expected: "9.9.9.9",
		},
		{
			name:     "IPv4 with port",
			input:    "1.2.3.4:5678",
			expected: "1.2.3.4",
		},
		{
			name:     "bracketed IPv6 with port",
			input:    "[2001:db8::1]:443",
			expected: "2001:db8::1",
		},
		{
			name:     "bracketed IPv6 without port",
			input:    "[2001:db8::1]",
			expected: "2001:db8::1",
		},
		{
			name:     "plain IPv6 is canonicalized",
			input:    "2001:DB8:0:0:0:0:0:1",
			expected: "2001:db8::1",
		},
		{
			name:     "malformed falls back to trimmed raw",
			input:    "  not-an-ip  ",
			expected: "not-an-ip",
		},
		{
			name:     "unknown token",
			input:    "unknown",
			expected: "",
		},
		{
			name:     "empty",
			input:    "",
			expected: "",
		},
		{
			name:     "only separators",
			input:    " , ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeIP(tt.input))
		})
	}
}

func TestNormalizeIP_Idempotent(t *testing.T) {
	inputs := []string{
		"1.2.3.4",
		"::ffff:1.2.3.4",
		"1.2.3.4, 5.6.7.8",
		"[::1]:80",
		"fe80::1%eth0",
		"garbage,,value",
		"  spaced  ",
		"[broken",
		"",
		"unknown, 1.2.3.4",
	}

	for _, in := range inputs {
		once := NormalizeIP(in)
		assert.Equal(t, once, NormalizeIP(once), "input %q", in)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		expected   string
	}{
		{
			name:       "cloudflare header wins",
			headers:    map[string]string{"CF-Connecting-IP": "8.8.8.8", "X-Forwarded-For": "1.1.1.1"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "8.8.8.8",
		},
		{
			name:       "forwarded-for first entry",
			headers:    map[string]string{"X-Forwarded-For": "::ffff:4.4.4.4, 10.0.0.1"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "4.4.4.4",
		},
		{
			name:       "unknown forwarded value falls through",
			headers:    map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "3.3.3.3"},
			remoteAddr: "10.0.0.1:1234",
			expected:   "3.3.3.3",
		},
		{
			name:       "remote addr fallback",
			remoteAddr: "[::ffff:7.7.7.7]:9000",
			expected:   "7.7.7.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/collect", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expected, ClientIP(r))
		})
	}
}

func TestPeerIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{"ipv4 with port", "203.0.113.7:5000", "203.0.113.7"},
		{"mapped ipv6", "[::ffff:7.7.7.7]:9000", "7.7.7.7"},
		{"bare address", "198.51.100.1", "198.51.100.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/collect", nil)
			r.RemoteAddr = tt.remoteAddr
			r.Header.Set("X-Forwarded-For", "1.1.1.1")
			assert.Equal(t, tt.expected, PeerIP(r))
		})
	}
}

func TestIsGoogleCrawlerIP(t *testing.T) {
	assert.True(t, IsGoogleCrawlerIP("66.249.66.1"))
	assert.True(t, IsGoogleCrawlerIP("216.239.32.10"))
	assert.False(t, IsGoogleCrawlerIP("8.8.8.8"))
	assert.False(t, IsGoogleCrawlerIP("166.249.1.1"))
}

func TestIsPublicIP(t *testing.T) {
	assert.True(t, IsPublicIP("8.8.8.8"))
	assert.True(t, IsPublicIP("::ffff:8.8.4.4"))
	assert.False(t, IsPublicIP("10.1.2.3"))
	assert.False(t, IsPublicIP("127.0.0.1"))
	assert.False(t, IsPublicIP("::1"))
	assert.False(t, IsPublicIP("garbage"))
}
