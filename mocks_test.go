package identity_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	identity "github.com/gareon/go-identity"
)

// MockUserStore implements identity.UserStore
type MockUserStore struct {
	mock.Mock
}

func (m *MockUserStore) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) FindByUsernameOrEmail(ctx context.Context, identifier string) (*identity.User, error) {
	args := m.Called(ctx, identifier)
	user, _ := args.Get(0).(*identity.User)
	return user, args.Error(1)
}

func (m *MockUserStore) Add(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserStore) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// memCache is an in-process GrantCache that keeps entries past their
// ttl, the way a cache that has not evicted yet would. That makes it a
// good stand-in for exercising the lazy expiry check.
type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{entries: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	value, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return value, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *memCache) contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// failingCache reports a backend outage on every call.
type failingCache struct {
	err error
}

func (c failingCache) Get(context.Context, string) ([]byte, error) {
	return nil, c.err
}

func (c failingCache) Set(context.Context, string, []byte, time.Duration) error {
	return c.err
}

func (c failingCache) Delete(context.Context, string) error {
	return c.err
}

// testConfig implements identity.Config
type testConfig struct {
	signingKey      string
	issuer          string
	audience        []string
	tokenExpiration int
	refreshDuration int
}

func newTestConfig() testConfig {
	return testConfig{
		signingKey:      "test-signing-key-0123456789",
		issuer:          "https://identity.test",
		audience:        []string{"user-service"},
		tokenExpiration: 1,
		refreshDuration: 24,
	}
}

func (c testConfig) GetSigningKey() string        { return c.signingKey }
func (c testConfig) GetIssuer() string            { return c.issuer }
func (c testConfig) GetAudience() []string        { return c.audience }
func (c testConfig) GetTokenExpiration() int      { return c.tokenExpiration }
func (c testConfig) GetRefreshTokenDuration() int { return c.refreshDuration }
