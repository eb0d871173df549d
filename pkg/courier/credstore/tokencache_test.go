package credstore_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipstack/courier/pkg/courier/credstore"
)

func TestTokenCache_CachesToken(t *testing.T) {
	cache := credstore.NewTokenCache(credstore.NewMemoryBackend(), time.Second)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, time.Time, error) {
		atomic.AddInt32(&calls, 1)
		return "token-1", time.Now().Add(time.Hour), nil
	}

	for i := 0; i < 5; i++ {
		tok, err := cache.Token(ctx, "acct-1", fetch)
		require.NoError(t, err)
		assert.Equal(t, "token-1", tok)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "cached token should be reused")
}

func TestTokenCache_CoalescesConcurrentRefreshes(t *testing.T) {
	cache := credstore.NewTokenCache(credstore.NewMemoryBackend(), time.Second)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, time.Time, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond) // keep racers in the same flight
		return "token-1", time.Now().Add(time.Hour), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := cache.Token(ctx, "acct-1", fetch)
			assert.NoError(t, err)
			assert.Equal(t, "token-1", tok)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls),
		"racing callers must share one authentication call")
}

func TestTokenCache_RefreshesNearExpiry(t *testing.T) {
	cache := credstore.NewTokenCache(credstore.NewMemoryBackend(), time.Minute)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, time.Time, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			// Expires inside the skew window, so the next call refreshes.
			return "stale", time.Now().Add(10 * time.Second), nil
		}
		return "fresh", time.Now().Add(time.Hour), nil
	}

	tok, err := cache.Token(ctx, "acct-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, "stale", tok)

	tok, err = cache.Token(ctx, "acct-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestTokenCache_FetchErrorPropagates(t *testing.T) {
	cache := credstore.NewTokenCache(credstore.NewMemoryBackend(), time.Second)

	fetchErr := errors.New("login failed")
	_, err := cache.Token(context.Background(), "acct-1", func(ctx context.Context) (string, time.Time, error) {
		return "", time.Time{}, fetchErr
	})
	assert.ErrorIs(t, err, fetchErr)
}

func TestTokenCache_Invalidate(t *testing.T) {
	cache := credstore.NewTokenCache(credstore.NewMemoryBackend(), time.Second)
	ctx := context.Background()

	var calls int32
	fetch := func(ctx context.Context) (string, time.Time, error) {
		atomic.AddInt32(&calls, 1)
		return "token", time.Now().Add(time.Hour), nil
	}

	_, err := cache.Token(ctx, "acct-1", fetch)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "acct-1"))

	_, err = cache.Token(ctx, "acct-1", fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestExpiryFromJWT(t *testing.T) {
	exp := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	got := credstore.ExpiryFromJWT(signed, time.Minute)
	assert.WithinDuration(t, exp, got, time.Second)
}

func TestExpiryFromJWT_Fallback(t *testing.T) {
	got := credstore.ExpiryFromJWT("not-a-jwt", 30*time.Minute)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), got, 5*time.Second)
}

func TestAccountStore_Resolve(t *testing.T) {
	store := credstore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, &credstore.Account{
		ID:       "acct-1",
		TenantID: "tenant-1",
		Active:   true,
	}))

	creds, account, err := credstore.Resolve(ctx, store, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, "tenant-1:acct-1", creds.CacheKey)
	assert.Equal(t, "tenant-1", account.TenantID)

	_, _, err = credstore.Resolve(ctx, store, "missing")
	assert.ErrorIs(t, err, credstore.ErrAccountNotFound)
}
