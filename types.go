package identity

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Hasher produces and verifies one-way password hashes
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// UserStore is the account persistence contract consumed by the core.
// Lookups return (nil, nil) when no record matches; a non-nil error
// always means the store itself failed, never a plain miss. Add stages
// an insert that becomes durable on Commit.
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByUsernameOrEmail(ctx context.Context, identifier string) (*User, error)
	Add(ctx context.Context, user *User) error
	Commit(ctx context.Context) error
}

// GrantCache is the distributed key-value store backing persisted
// grants. Get returns (nil, nil) on a miss. A zero ttl stores the entry
// without expiration; the cache's own eviction is best effort and never
// the source of truth for grant validity.
type GrantCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Config holds token issuance options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetTokenExpiration() int
	GetRefreshTokenDuration() int
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] IDENTITY "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] IDENTITY "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] IDENTITY "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
