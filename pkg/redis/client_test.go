package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return mr, client
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{
			name: "Invalid URL",
			url:  "invalid://url",
		},
		{
			name: "Empty URL",
			url:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.url, "test", nil)
			assert.Error(t, err)
			assert.Nil(t, client)
		})
	}
}

func TestNewClient_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client, err := NewClient("redis://"+addr, "test", nil)
	assert.Error(t, err)
	assert.Nil(t, client)
}

func TestClient_GetSet(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	_, err := client.Get(ctx, "missing")
	assert.ErrorIs(t, err, Nil)

	require.NoError(t, client.Set(ctx, "k", "v", time.Minute))
	val, err := client.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", val)

	mr.FastForward(2 * time.Minute)
	_, err = client.Get(ctx, "k")
	assert.ErrorIs(t, err, Nil)
}

func TestClient_Hash(t *testing.T) {
	_, client := setupTestRedis(t)
	ctx := context.Background()
	key := client.KeyBuilder.KeyVisitors()

	require.NoError(t, client.HSet(ctx, key, "abc123", `{"ip":"1.2.3.4"}`, "ip_9.9.9.9", `{}`))

	val, err := client.HGet(ctx, key, "abc123")
	require.NoError(t, err)
	assert.Equal(t, `{"ip":"1.2.3.4"}`, val)

	_, err = client.HGet(ctx, key, "nope")
	assert.ErrorIs(t, err, Nil)

	n, err := client.HLen(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	all, err := client.HGetAll(ctx, key)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestClient_IncrWithExpire(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()
	key := client.KeyBuilder.KeyRateLimit("1.2.3.4")

	for i := int64(1); i <= 3; i++ {
		v, err := client.IncrWithExpire(ctx, key, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}

	assert.Equal(t, time.Hour, mr.TTL(key))

	mr.FastForward(time.Hour + time.Second)
	v, err := client.IncrWithExpire(ctx, key, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestClient_Health(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	assert.NoError(t, client.Health(ctx))

	mr.SetError("server down")
	assert.Error(t, client.Health(ctx))
}

func TestPrefixForLog(t *testing.T) {
	assert.Equal(t, "short", prefixForLog("short"))
	long := "prod:recon:geo:2001:db8:0000:0000:0001"
	assert.Equal(t, long[:24]+"…", prefixForLog(long))
}
