package meeting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, "account_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "acc-1", r.URL.Query().Get("account_id"))

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "client-1", user)
		assert.Equal(t, "secret-1", pass)

		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "tok-abc",
			"expires_in":   3600,
		})
	}))
}

func TestTokenCachedInRedis(t *testing.T) {
	var calls int
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	source := NewTokenSource("acc-1", "client-1", "secret-1", rdb, nil).WithBaseURL(srv.URL)

	tok, err := source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)
	assert.Equal(t, 1, calls)

	// Second call hits the cache, not the OAuth endpoint.
	tok, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-abc", tok)
	assert.Equal(t, 1, calls)

	// TTL is the expiry minus the refresh margin.
	ttl := mr.TTL(tokenCacheKey)
	assert.Greater(t, ttl.Seconds(), 3000.0)
	assert.LessOrEqual(t, ttl.Seconds(), 3540.0)
}

func TestTokenRefetchAfterExpiry(t *testing.T) {
	var calls int
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	source := NewTokenSource("acc-1", "client-1", "secret-1", rdb, nil).WithBaseURL(srv.URL)

	_, err := source.Token(context.Background())
	require.NoError(t, err)

	mr.FastForward(time.Hour)

	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTokenWithoutRedisUsesLocalCache(t *testing.T) {
	var calls int
	srv := newTokenServer(t, &calls)
	defer srv.Close()

	source := NewTokenSource("acc-1", "client-1", "secret-1", nil, nil).WithBaseURL(srv.URL)

	_, err := source.Token(context.Background())
	require.NoError(t, err)
	_, err = source.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestTokenErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"reason":"invalid client"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	source := NewTokenSource("acc-1", "client-1", "bad", nil, nil).WithBaseURL(srv.URL)
	_, err := source.Token(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
}
