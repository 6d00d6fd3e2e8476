package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/gareon/go-identity"
)

func setupRedisCache(t *testing.T, keyPrefix string) (*Redis, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisWithClient(client, keyPrefix), mr
}

func TestRedis_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	cache, _ := setupRedisCache(t, "")

	t.Run("miss is nil nil", func(t *testing.T) {
		value, err := cache.Get(ctx, "absent")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("roundtrip", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "grant:abc", []byte(`{"key":"abc"}`), time.Hour))

		value, err := cache.Get(ctx, "grant:abc")
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"key":"abc"}`), value)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "grant:gone", []byte("x"), time.Hour))
		require.NoError(t, cache.Delete(ctx, "grant:gone"))

		value, err := cache.Get(ctx, "grant:gone")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("delete absent key is not an error", func(t *testing.T) {
		assert.NoError(t, cache.Delete(ctx, "never-existed"))
	})
}

func TestRedis_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupRedisCache(t, "identity:")

	require.NoError(t, cache.Set(ctx, "grant:abc", []byte("x"), 0))

	assert.True(t, mr.Exists("identity:grant:abc"))
	assert.False(t, mr.Exists("grant:abc"))
}

func TestRedis_TTL(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupRedisCache(t, "")

	t.Run("entry expires after the ttl", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "short-lived", []byte("x"), time.Minute))

		mr.FastForward(2 * time.Minute)

		value, err := cache.Get(ctx, "short-lived")
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("zero ttl never expires", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "durable", []byte("x"), 0))

		mr.FastForward(24 * time.Hour)

		value, err := cache.Get(ctx, "durable")
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), value)
	})
}

func TestNewRedis(t *testing.T) {
	t.Run("requires an address", func(t *testing.T) {
		_, err := NewRedis(context.Background(), Config{})
		assert.Error(t, err)
	})

	t.Run("connects and pings", func(t *testing.T) {
		mr := miniredis.RunT(t)

		cache, err := NewRedis(context.Background(), Config{Addr: mr.Addr()})
		require.NoError(t, err)
		defer cache.Close()

		assert.NoError(t, cache.Ping(context.Background()))
	})

	t.Run("unreachable backend fails fast", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
		defer cancel()

		_, err := NewRedis(ctx, Config{Addr: "127.0.0.1:1", DialTimeout: 100 * time.Millisecond})
		assert.Error(t, err)
	})
}

func TestRedis_BacksPersistedGrantStore(t *testing.T) {
	ctx := context.Background()
	cache, mr := setupRedisCache(t, "identity:")

	store := identity.NewPersistedGrantStore(cache)

	grant := &identity.PersistedGrant{
		Key:          "handle-1",
		Type:         identity.GrantTypeRefreshToken,
		SubjectID:    "42",
		ClientID:     "game-client",
		CreationTime: time.Now(),
		Expiration:   time.Now().Add(time.Hour),
	}

	require.NoError(t, store.Store(ctx, grant))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "42", got.SubjectID)

	// redis eviction makes the grant disappear like a lazy expiry would
	mr.FastForward(2 * time.Hour)

	got, err = store.Get(ctx, "handle-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
