// Package cache provides the redis-backed GrantCache used to share
// persisted grants across service instances.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gareon/go-identity"
)

// Default timeouts for redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Config holds redis connection options.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	// KeyPrefix namespaces every key, e.g. "identity:".
	KeyPrefix string

	// Timeouts default to Dial=5s, Read=3s, Write=3s.
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Redis implements identity.GrantCache on a redis backend so granted
// tokens survive restarts and are visible to every instance.
type Redis struct {
	client    redis.UniversalClient
	keyPrefix string
}

var _ identity.GrantCache = (*Redis)(nil)

// NewRedis connects to redis and verifies the connection before
// returning the cache.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &Redis{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewRedisWithClient wraps a pre-configured client. Useful for testing
// with miniredis.
func NewRedisWithClient(client redis.UniversalClient, keyPrefix string) *Redis {
	return &Redis{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Close closes the underlying client.
func (c *Redis) Close() error {
	return c.client.Close()
}

// Ping checks connectivity (health check).
func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get returns the value stored under key, or (nil, nil) on a miss.
func (c *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return data, nil
}

// Set stores the value under key. A zero ttl stores it without
// expiration.
func (c *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.keyPrefix+key, value, ttl).Err()
}

// Delete removes the key. Deleting an absent key is not an error.
func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.keyPrefix+key).Err()
}
