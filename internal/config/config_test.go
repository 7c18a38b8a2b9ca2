package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreFile, cfg.StoreBackend)
	assert.Equal(t, "visitors.json", cfg.VisitorsFile)
	assert.Equal(t, 60, cfg.MismatchConfidence)
	assert.Equal(t, 3*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 10*time.Second, cfg.NotifyTimeout)
	assert.Equal(t, 24*time.Hour, cfg.GeoCacheTTL)
	assert.True(t, cfg.SkipBots)
	assert.Equal(t, 60, cfg.RateLimitPerHour)
	assert.True(t, cfg.TrustProxyHeaders)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Empty(t, cfg.ChatIDs)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("CHAT_IDS", "123, -100456")
	t.Setenv("MISMATCH_CONFIDENCE", "70")
	t.Setenv("STORE_TIMEOUT", "5")
	t.Setenv("NOTIFY_TIMEOUT", "1500ms")
	t.Setenv("SKIP_BOTS", "false")
	t.Setenv("TRUST_PROXY_HEADERS", "false")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, []int64{123, -100456}, cfg.ChatIDs)
	assert.Equal(t, 70, cfg.MismatchConfidence)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.NotifyTimeout)
	assert.False(t, cfg.SkipBots)
	assert.False(t, cfg.TrustProxyHeaders)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad chat id", map[string]string{"CHAT_IDS": "abc"}},
		{"mismatch confidence too high", map[string]string{"MISMATCH_CONFIDENCE": "100"}},
		{"mismatch confidence negative", map[string]string{"MISMATCH_CONFIDENCE": "-1"}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "cassandra"}},
		{"postgres without url", map[string]string{"STORE_BACKEND": "postgres"}},
		{"mongo without uri", map[string]string{"STORE_BACKEND": "mongo"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestParseOrigins(t *testing.T) {
	assert.Equal(t, []string{}, parseOrigins(""))
	assert.Equal(t, []string{"a", "b"}, parseOrigins(" a ,, b "))
}
