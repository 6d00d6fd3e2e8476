package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identity "github.com/gareon/go-identity"
)

func makeGrant(key, subject, client string, expiration time.Time) *identity.PersistedGrant {
	return &identity.PersistedGrant{
		Key:          key,
		Type:         identity.GrantTypeRefreshToken,
		SubjectID:    subject,
		ClientID:     client,
		CreationTime: expiration.Add(-time.Hour),
		Expiration:   expiration,
		Data:         []byte(`[{"type":"role","value":"player"}]`),
	}
}

func TestPersistedGrantStore_StoreAndGet(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	store := identity.NewPersistedGrantStore(cache)

	grant := makeGrant("handle-1", "42", "game-client", time.Now().Add(time.Hour))
	require.NoError(t, store.Store(ctx, grant))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, grant.Key, got.Key)
	assert.Equal(t, grant.SubjectID, got.SubjectID)
	assert.Equal(t, grant.ClientID, got.ClientID)
	assert.Equal(t, grant.Data, got.Data)
	assert.True(t, grant.Expiration.Equal(got.Expiration))
}

func TestPersistedGrantStore_GetMiss(t *testing.T) {
	store := identity.NewPersistedGrantStore(newMemCache())

	got, err := store.Get(context.Background(), "no-such-handle")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestPersistedGrantStore_LazyExpiry(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()

	base := time.Now()
	clock := base
	store := identity.NewPersistedGrantStore(cache).
		WithClock(func() time.Time { return clock })

	grant := makeGrant("handle-1", "42", "game-client", base.Add(time.Minute))
	require.NoError(t, store.Store(ctx, grant))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	// the cache still physically holds the record, the read path
	// decides validity
	clock = base.Add(2 * time.Minute)
	require.True(t, cache.contains("grant:handle-1"))

	got, err = store.Get(ctx, "handle-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// expired read evicts the record and prunes the index
	assert.False(t, cache.contains("grant:handle-1"))
	assert.False(t, cache.contains("grant-idx:42:game-client"))
}

func TestPersistedGrantStore_ExpiredAtWriteTime(t *testing.T) {
	ctx := context.Background()
	store := identity.NewPersistedGrantStore(newMemCache())

	grant := makeGrant("handle-1", "42", "game-client", time.Now().Add(-time.Hour))
	require.NoError(t, store.Store(ctx, grant))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPersistedGrantStore_UpsertOverwrites(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	store := identity.NewPersistedGrantStore(cache)

	first := makeGrant("handle-1", "42", "game-client", time.Now().Add(time.Hour))
	second := makeGrant("handle-1", "42", "game-client", time.Now().Add(2*time.Hour))
	second.Data = []byte(`[{"type":"role","value":"gm"}]`)

	require.NoError(t, store.Store(ctx, first))
	require.NoError(t, store.Store(ctx, second))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.Data, got.Data)

	// the index holds the key once, so RemoveAll leaves nothing behind
	require.NoError(t, store.RemoveAll(ctx, "42", "game-client"))
	assert.False(t, cache.contains("grant:handle-1"))
}

func TestPersistedGrantStore_UndecodableRecord(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	store := identity.NewPersistedGrantStore(cache)

	require.NoError(t, cache.Set(ctx, "grant:handle-1", []byte("{not json"), 0))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, cache.contains("grant:handle-1"))
}

func TestPersistedGrantStore_Remove(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	store := identity.NewPersistedGrantStore(cache)

	grant := makeGrant("handle-1", "42", "game-client", time.Now().Add(time.Hour))
	require.NoError(t, store.Store(ctx, grant))

	require.NoError(t, store.Remove(ctx, "handle-1"))

	got, err := store.Get(ctx, "handle-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// removal pruned the index entry as well
	assert.False(t, cache.contains("grant-idx:42:game-client"))

	// removing an absent key is a successful no-op
	assert.NoError(t, store.Remove(ctx, "handle-1"))
}

func TestPersistedGrantStore_Remove_UndecodableRecordStillPrunesIndex(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	store := identity.NewPersistedGrantStore(cache)

	grant := makeGrant("handle-1", "42", "game-client", time.Now().Add(time.Hour))
	require.NoError(t, store.Store(ctx, grant))
	require.True(t, cache.contains("grant-idx:42:game-client"))

	// corrupt the record: subject and client still decode, the
	// expiration after them does not
	corrupt := []byte(`{"key":"handle-1","subject_id":"42","client_id":"game-client","expiration":"not-a-time"}`)
	require.NoError(t, cache.Set(ctx, "grant:handle-1", corrupt, 0))

	require.NoError(t, store.Remove(ctx, "handle-1"))

	assert.False(t, cache.contains("grant:handle-1"))
	assert.False(t, cache.contains("grant-idx:42:game-client"))
}

func TestPersistedGrantStore_RemoveAll(t *testing.T) {
	ctx := context.Background()
	cache := newMemCache()
	store := identity.NewPersistedGrantStore(cache)

	expires := time.Now().Add(time.Hour)
	require.NoError(t, store.Store(ctx, makeGrant("h1", "42", "game-client", expires)))
	require.NoError(t, store.Store(ctx, makeGrant("h2", "42", "game-client", expires)))
	require.NoError(t, store.Store(ctx, makeGrant("h3", "42", "other-client", expires)))
	require.NoError(t, store.Store(ctx, makeGrant("h4", "77", "game-client", expires)))

	require.NoError(t, store.RemoveAll(ctx, "42", "game-client"))

	for _, key := range []string{"h1", "h2"} {
		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, got, "grant %s should be gone", key)
	}

	for _, key := range []string{"h3", "h4"} {
		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, got, "grant %s should survive", key)
	}

	// no recorded grants for the pair is a successful no-op
	assert.NoError(t, store.RemoveAll(ctx, "42", "game-client"))
}

func TestPersistedGrantStore_CacheFailure(t *testing.T) {
	ctx := context.Background()
	cache := failingCache{err: errors.New("connection refused")}
	store := identity.NewPersistedGrantStore(cache)

	_, err := store.Get(ctx, "handle-1")
	assert.True(t, identity.IsStoreUnavailable(err))

	err = store.Store(ctx, makeGrant("handle-1", "42", "c", time.Now().Add(time.Hour)))
	assert.True(t, identity.IsStoreUnavailable(err))

	err = store.Remove(ctx, "handle-1")
	assert.True(t, identity.IsStoreUnavailable(err))

	err = store.RemoveAll(ctx, "42", "c")
	assert.True(t, identity.IsStoreUnavailable(err))
}
