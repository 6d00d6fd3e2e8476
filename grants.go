package identity

import (
	"context"
	"encoding/json"
	"slices"
	"time"
)

const (
	grantKeyPrefix = "grant:"
	indexKeyPrefix = "grant-idx:"

	// Entries whose expiration already passed are still written with a
	// short physical TTL; the read path, not the cache, decides
	// validity.
	minGrantTTL = time.Minute
)

// PersistedGrantStore adapts a GrantCache to the grant store contract
// the protocol layer expects. Because the cache contract has no scan,
// the store keeps its own secondary index (subject+client -> keys) in
// the cache, updated alongside every Store and Remove.
type PersistedGrantStore struct {
	cache  GrantCache
	logger Logger
	now    func() time.Time
}

// NewPersistedGrantStore creates a grant store over the given cache.
func NewPersistedGrantStore(cache GrantCache) *PersistedGrantStore {
	return &PersistedGrantStore{
		cache:  cache,
		logger: defLogger{},
		now:    time.Now,
	}
}

func (s *PersistedGrantStore) WithLogger(logger Logger) *PersistedGrantStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithClock overrides the time source, mostly for tests.
func (s *PersistedGrantStore) WithClock(now func() time.Time) *PersistedGrantStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Get returns the grant stored under key, or (nil, nil) when the cache
// has no entry or the stored expiration has already passed. The lazy
// expiry check is the source of truth; cache eviction is best effort.
func (s *PersistedGrantStore) Get(ctx context.Context, key string) (*PersistedGrant, error) {
	raw, err := s.cache.Get(ctx, grantKeyPrefix+key)
	if err != nil {
		return nil, WrapStoreError(err, "failed to read persisted grant")
	}

	if raw == nil {
		return nil, nil
	}

	grant := &PersistedGrant{}
	if err := json.Unmarshal(raw, grant); err != nil {
		s.logger.Error("discarding undecodable grant record %q: %v", key, err)
		if err := s.cache.Delete(ctx, grantKeyPrefix+key); err != nil {
			s.logger.Error("failed to drop undecodable grant record %q: %v", key, err)
		}
		return nil, nil
	}

	if grant.Expired(s.now()) {
		s.evictExpired(ctx, grant)
		return nil, nil
	}

	return grant, nil
}

// Store upserts the grant, overwriting any record at the same key, and
// adds the key to the subject+client index.
func (s *PersistedGrantStore) Store(ctx context.Context, grant *PersistedGrant) error {
	raw, err := json.Marshal(grant)
	if err != nil {
		return err
	}

	ttl := grant.Expiration.Sub(s.now())
	if ttl < minGrantTTL {
		ttl = minGrantTTL
	}

	if err := s.cache.Set(ctx, grantKeyPrefix+grant.Key, raw, ttl); err != nil {
		return WrapStoreError(err, "failed to write persisted grant")
	}

	return s.indexAdd(ctx, grant.SubjectID, grant.ClientID, grant.Key)
}

// Remove deletes the grant under key. Removing an absent key is a
// successful no-op.
func (s *PersistedGrantStore) Remove(ctx context.Context, key string) error {
	raw, err := s.cache.Get(ctx, grantKeyPrefix+key)
	if err != nil {
		return WrapStoreError(err, "failed to read persisted grant for removal")
	}

	if raw == nil {
		return nil
	}

	if err := s.cache.Delete(ctx, grantKeyPrefix+key); err != nil {
		return WrapStoreError(err, "failed to delete persisted grant")
	}

	// Prune the index best effort even when the record is undecodable,
	// using whatever fields did decode; otherwise dead keys accrete.
	grant := &PersistedGrant{}
	if err := json.Unmarshal(raw, grant); err != nil {
		s.logger.Error("removed undecodable grant record %q: %v", key, err)
	}

	if grant.SubjectID == "" && grant.ClientID == "" {
		return nil
	}

	return s.indexRemove(ctx, grant.SubjectID, grant.ClientID, key)
}

// RemoveAll deletes every grant recorded for the subject and client,
// the logout-all-sessions path. A Store racing this call may leave its
// freshly written grant intact; no stronger atomicity is promised.
func (s *PersistedGrantStore) RemoveAll(ctx context.Context, subjectID, clientID string) error {
	keys, err := s.indexLoad(ctx, subjectID, clientID)
	if err != nil {
		return err
	}

	for _, key := range keys {
		if err := s.cache.Delete(ctx, grantKeyPrefix+key); err != nil {
			return WrapStoreError(err, "failed to delete persisted grant")
		}
	}

	if err := s.cache.Delete(ctx, indexKey(subjectID, clientID)); err != nil {
		return WrapStoreError(err, "failed to delete grant index")
	}

	return nil
}

func (s *PersistedGrantStore) evictExpired(ctx context.Context, grant *PersistedGrant) {
	if err := s.cache.Delete(ctx, grantKeyPrefix+grant.Key); err != nil {
		s.logger.Error("failed to evict expired grant %q: %v", grant.Key, err)
		return
	}
	if err := s.indexRemove(ctx, grant.SubjectID, grant.ClientID, grant.Key); err != nil {
		s.logger.Error("failed to prune index for expired grant %q: %v", grant.Key, err)
	}
}

func indexKey(subjectID, clientID string) string {
	return indexKeyPrefix + subjectID + ":" + clientID
}

func (s *PersistedGrantStore) indexLoad(ctx context.Context, subjectID, clientID string) ([]string, error) {
	raw, err := s.cache.Get(ctx, indexKey(subjectID, clientID))
	if err != nil {
		return nil, WrapStoreError(err, "failed to read grant index")
	}

	if raw == nil {
		return nil, nil
	}

	var keys []string
	if err := json.Unmarshal(raw, &keys); err != nil {
		s.logger.Error("resetting undecodable grant index for %s/%s: %v", subjectID, clientID, err)
		return nil, nil
	}

	return keys, nil
}

func (s *PersistedGrantStore) indexSave(ctx context.Context, subjectID, clientID string, keys []string) error {
	idx := indexKey(subjectID, clientID)

	if len(keys) == 0 {
		if err := s.cache.Delete(ctx, idx); err != nil {
			return WrapStoreError(err, "failed to delete grant index")
		}
		return nil
	}

	raw, err := json.Marshal(keys)
	if err != nil {
		return err
	}

	if err := s.cache.Set(ctx, idx, raw, 0); err != nil {
		return WrapStoreError(err, "failed to write grant index")
	}

	return nil
}

func (s *PersistedGrantStore) indexAdd(ctx context.Context, subjectID, clientID, key string) error {
	keys, err := s.indexLoad(ctx, subjectID, clientID)
	if err != nil {
		return err
	}

	if slices.Contains(keys, key) {
		return nil
	}

	return s.indexSave(ctx, subjectID, clientID, append(keys, key))
}

func (s *PersistedGrantStore) indexRemove(ctx context.Context, subjectID, clientID, key string) error {
	keys, err := s.indexLoad(ctx, subjectID, clientID)
	if err != nil {
		return err
	}

	filtered := slices.DeleteFunc(keys, func(k string) bool { return k == key })

	return s.indexSave(ctx, subjectID, clientID, filtered)
}
