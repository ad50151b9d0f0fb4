package tokengenerator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	red "github.com/redis/go-redis/v9"
)

const defaultBlacklistPrefix = "rolegate:blacklist"

// TokenBlacklist is the revocation registry for refresh tokens. Logout
// registers the presented token's jti here; the refresh flow rejects
// blacklisted tokens. Access tokens are never retroactively revoked.
type TokenBlacklist interface {
	// Revoke registers a jti for the remaining lifetime of its token.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether the jti has been revoked.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisTokenBlacklist stores revoked jtis in Redis with a TTL matching the
// token expiration window.
type RedisTokenBlacklist struct {
	client *red.Client
	prefix string
}

// NewRedisTokenBlacklist wires a Redis client into a token blacklist.
func NewRedisTokenBlacklist(client *red.Client, keyPrefix string) *RedisTokenBlacklist {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultBlacklistPrefix
	}
	return &RedisTokenBlacklist{client: client, prefix: prefix}
}

// Revoke stores the jti until the token would have expired anyway.
func (b *RedisTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	key, err := b.key(jti)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		// Token already expired; nothing to register.
		return nil
	}
	if err := b.client.Set(ctx, key, "revoked", ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked jti: %w", err)
	}
	return nil
}

// IsRevoked reports whether the jti has been revoked.
func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	key, err := b.key(jti)
	if err != nil {
		return false, err
	}
	if _, err := b.client.Get(ctx, key).Result(); err != nil {
		if errors.Is(err, red.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis get revoked jti: %w", err)
	}
	return true, nil
}

func (b *RedisTokenBlacklist) key(jti string) (string, error) {
	trimmed := strings.TrimSpace(jti)
	if trimmed == "" {
		return "", errors.New("jti must not be empty")
	}
	return fmt.Sprintf("%s:%s", b.prefix, trimmed), nil
}

// InMemoryTokenBlacklist implements TokenBlacklist with an in-process map.
// Used by tests and single-node deployments without Redis.
type InMemoryTokenBlacklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewInMemoryTokenBlacklist creates a new in-memory token blacklist.
func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{entries: make(map[string]time.Time)}
}

// Revoke registers the jti until its expiry.
func (b *InMemoryTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return errors.New("jti must not be empty")
	}
	if ttl <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[jti] = time.Now().Add(ttl)
	return nil
}

// IsRevoked reports whether the jti is registered and not yet expired.
func (b *InMemoryTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	b.mu.RLock()
	expiry, ok := b.entries[jti]
	b.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if time.Now().After(expiry) {
		b.mu.Lock()
		delete(b.entries, jti)
		b.mu.Unlock()
		return false, nil
	}
	return true, nil
}

// NoopTokenBlacklist is the client-discard fallback mode: logout succeeds
// without server-side revocation and no refresh token is ever reported revoked.
type NoopTokenBlacklist struct{}

// Revoke does nothing.
func (NoopTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	return nil
}

// IsRevoked always reports false.
func (NoopTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	return false, nil
}

var (
	_ TokenBlacklist = (*RedisTokenBlacklist)(nil)
	_ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
	_ TokenBlacklist = NoopTokenBlacklist{}
)
