package credstore

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TokenSource fetches a fresh bearer token from a carrier. Implementations
// live inside the adapters; the cache only schedules when they run.
type TokenSource func(ctx context.Context) (token string, expiresAt time.Time, err error)

// CacheBackend stores tokens with expiry.
type CacheBackend interface {
	Get(ctx context.Context, key string) (token string, expiresAt time.Time, ok bool, err error)
	Set(ctx context.Context, key string, token string, expiresAt time.Time) error
	Delete(ctx context.Context, key string) error
}

// TokenCache caches short-lived carrier bearer tokens keyed by
// (tenant, courier account). Concurrent refreshes for the same key are
// coalesced so N racing requests on an expired token issue one
// authentication call.
type TokenCache struct {
	backend CacheBackend
	group   singleflight.Group
	skew    time.Duration
}

// NewTokenCache creates a token cache over the given backend. Tokens are
// treated as expired skew before their actual expiry so in-flight carrier
// calls do not run off the end of a token's lifetime.
func NewTokenCache(backend CacheBackend, skew time.Duration) *TokenCache {
	if skew <= 0 {
		skew = 30 * time.Second
	}
	return &TokenCache{backend: backend, skew: skew}
}

// Token returns a valid cached token for key, refreshing via fetch when the
// cached one is missing or near expiry.
func (c *TokenCache) Token(ctx context.Context, key string, fetch TokenSource) (string, error) {
	if tok, exp, ok, err := c.backend.Get(ctx, key); err == nil && ok && time.Until(exp) > c.skew {
		return tok, nil
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		// Re-check under the flight: a racing caller may have refreshed.
		if tok, exp, ok, err := c.backend.Get(ctx, key); err == nil && ok && time.Until(exp) > c.skew {
			return tok, nil
		}
		tok, exp, err := fetch(ctx)
		if err != nil {
			return "", err
		}
		if err := c.backend.Set(ctx, key, tok, exp); err != nil {
			return "", err
		}
		return tok, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token for key, forcing the next call to refresh.
func (c *TokenCache) Invalidate(ctx context.Context, key string) error {
	return c.backend.Delete(ctx, key)
}

// ExpiryFromJWT extracts the expiry claim from a carrier-issued JWT without
// verifying its signature; the carrier signed it and we only use the claim
// to schedule refresh. Falls back to now+fallback when the token is not a
// JWT or carries no expiry.
func ExpiryFromJWT(token string, fallback time.Duration) time.Time {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return time.Now().Add(fallback)
}

// MemoryBackend is an in-process CacheBackend.
type MemoryBackend struct {
	mu     sync.RWMutex
	tokens map[string]memoryToken
}

type memoryToken struct {
	token     string
	expiresAt time.Time
}

// NewMemoryBackend creates an empty in-process token backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{tokens: make(map[string]memoryToken)}
}

func (b *MemoryBackend) Get(ctx context.Context, key string) (string, time.Time, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tokens[key]
	if !ok || time.Now().After(t.expiresAt) {
		return "", time.Time{}, false, nil
	}
	return t.token, t.expiresAt, true, nil
}

func (b *MemoryBackend) Set(ctx context.Context, key, token string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens[key] = memoryToken{token: token, expiresAt: expiresAt}
	return nil
}

func (b *MemoryBackend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.tokens, key)
	return nil
}

// RedisBackend stores tokens in Redis so cached tokens survive restarts and
// are shared across instances.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend creates a Redis-backed token backend.
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "courier:token:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, time.Time, bool, error) {
	full := b.prefix + key
	pipe := b.client.Pipeline()
	getCmd := pipe.Get(ctx, full)
	ttlCmd := pipe.TTL(ctx, full)
	if _, err := pipe.Exec(ctx); err != nil {
		if err == redis.Nil {
			return "", time.Time{}, false, nil
		}
		return "", time.Time{}, false, err
	}
	ttl := ttlCmd.Val()
	if ttl <= 0 {
		return "", time.Time{}, false, nil
	}
	return getCmd.Val(), time.Now().Add(ttl), true, nil
}

func (b *RedisBackend) Set(ctx context.Context, key, token string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.client.Set(ctx, b.prefix+key, token, ttl).Err()
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	return b.client.Del(ctx, b.prefix+key).Err()
}
