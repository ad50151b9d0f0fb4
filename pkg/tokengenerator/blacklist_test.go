package tokengenerator

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisBlacklist(t *testing.T) (*RedisTokenBlacklist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisTokenBlacklist(client, ""), mr
}

func TestRedisBlacklistRevoke(t *testing.T) {
	ctx := context.Background()
	blacklist, mr := setupRedisBlacklist(t)

	revoked, err := blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, blacklist.Revoke(ctx, "jti-1", time.Hour))

	revoked, err = blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Entries expire with the token's remaining lifetime.
	mr.FastForward(2 * time.Hour)
	revoked, err = blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisBlacklistExpiredTokenNoop(t *testing.T) {
	ctx := context.Background()
	blacklist, mr := setupRedisBlacklist(t)

	// A token past its expiry needs no registration.
	require.NoError(t, blacklist.Revoke(ctx, "jti-old", -time.Minute))
	assert.Empty(t, mr.Keys())
}

func TestRedisBlacklistEmptyJti(t *testing.T) {
	ctx := context.Background()
	blacklist, _ := setupRedisBlacklist(t)

	assert.Error(t, blacklist.Revoke(ctx, "  ", time.Hour))
	_, err := blacklist.IsRevoked(ctx, "")
	assert.Error(t, err)
}

func TestInMemoryBlacklist(t *testing.T) {
	ctx := context.Background()
	blacklist := NewInMemoryTokenBlacklist()

	revoked, err := blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, blacklist.Revoke(ctx, "jti-1", time.Hour))
	revoked, err = blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	// Expired entries read as not revoked and are dropped lazily.
	require.NoError(t, blacklist.Revoke(ctx, "jti-2", time.Nanosecond))
	time.Sleep(10 * time.Millisecond)
	revoked, err = blacklist.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	assert.Error(t, blacklist.Revoke(ctx, "", time.Hour))
}

func TestNoopBlacklist(t *testing.T) {
	ctx := context.Background()
	blacklist := NoopTokenBlacklist{}

	require.NoError(t, blacklist.Revoke(ctx, "jti-1", time.Hour))
	revoked, err := blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "client-discard mode never reports revocation")
}
