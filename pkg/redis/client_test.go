package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/coursemarket-backend/pkg/config"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := NewFromClient(redis.NewClient(&redis.Options{Addr: srv.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestIncrWithTTLStartsWindowOnce(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	key := client.RateLimitKey("login:ip:10.0.0.1")

	count, err := client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, time.Minute, srv.TTL(key))

	srv.FastForward(30 * time.Second)
	count, err = client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, 30*time.Second, srv.TTL(key), "second increment must not extend the window")

	srv.FastForward(31 * time.Second)
	count, err = client.IncrWithTTL(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "window should reset after expiry")
}

func TestGetDelConsumesValue(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient(t)

	key := client.NonceKey("0xA24C85E70D1D40E3E5456FDC58643CCD81E2D70E")
	require.NoError(t, client.Set(ctx, key, "nonce-value", 5*time.Minute))

	got, err := client.GetDel(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "nonce-value", got)

	_, err = client.GetDel(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestDeleteIfEquals(t *testing.T) {
	ctx := context.Background()
	client, srv := newTestClient(t)
	require.NoError(t, srv.Set("cm:lock", "owner-a"))

	deleted, err := client.DeleteIfEquals(ctx, "cm:lock", "owner-b")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.True(t, srv.Exists("cm:lock"))

	deleted, err = client.DeleteIfEquals(ctx, "cm:lock", "owner-a")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, srv.Exists("cm:lock"))
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "cm:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "cm:rate_limit:scope", client.RateLimitKey(" scope "))
	assert.Equal(t, "cm:auth_nonce:0xabc", client.NonceKey("0xABC"))
	assert.Equal(t, "cm:idempotency:id", client.IdempotencyKey("", "id"))
}

func TestUninitializedClientFails(t *testing.T) {
	client := &Client{}
	_, err := client.Get(context.Background(), "k")
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestOptionsFromConfig(t *testing.T) {
	_, err := optionsFromConfig(config.RedisConfig{})
	require.Error(t, err)

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:pw@localhost:6380/3", PoolSize: 7, DB: 1})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, 3, opts.DB, "db from the url wins")
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "redis:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, opts.DB)
}
