// Package repository provides the bun-backed UserStore.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/gareon/go-identity"
	"github.com/uptrace/bun"
)

// Users is a UserStore over a bun database. Add stages inserts in
// memory; Commit flushes every staged record inside one transaction,
// the unit-of-work the registration path relies on: a cancelled or
// failed commit leaves no partial writes behind.
type Users struct {
	db *bun.DB

	mu      sync.Mutex
	pending []*identity.User
}

var _ identity.UserStore = (*Users)(nil)

// NewUsers creates a user store over the given database.
func NewUsers(db *bun.DB) *Users {
	return &Users{db: db}
}

// FindByID looks up an account by its numeric identifier. A miss is
// (nil, nil).
func (r *Users) FindByID(ctx context.Context, id int64) (*identity.User, error) {
	user := &identity.User{}

	err := r.db.NewSelect().
		Model(user).
		Where("usr.id = ?", id).
		Scan(ctx)

	return scanned(user, err)
}

// FindByUsername looks up an account by username, case-insensitively.
func (r *Users) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	user := &identity.User{}

	err := r.db.NewSelect().
		Model(user).
		Where("lower(usr.username) = lower(?)", username).
		Scan(ctx)

	return scanned(user, err)
}

// FindByUsernameOrEmail matches either field case-insensitively. The
// username query runs first so a username match always wins over an
// email match on a different record.
func (r *Users) FindByUsernameOrEmail(ctx context.Context, identifier string) (*identity.User, error) {
	user, err := r.FindByUsername(ctx, identifier)
	if user != nil || err != nil {
		return user, err
	}

	user = &identity.User{}

	err = r.db.NewSelect().
		Model(user).
		Where("lower(usr.email) = lower(?)", identifier).
		Scan(ctx)

	return scanned(user, err)
}

// Add stages an insert for the next Commit.
func (r *Users) Add(_ context.Context, user *identity.User) error {
	if user == nil || user.Username == "" {
		return errors.New("user requires a username")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, user)
	return nil
}

// Commit flushes all staged inserts in one transaction. On failure the
// staged records remain pending so the caller can retry or discard.
func (r *Users) Commit(ctx context.Context) error {
	r.mu.Lock()
	batch := r.pending
	r.pending = nil
	r.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	err := r.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, user := range batch {
			if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.mu.Lock()
		r.pending = append(batch, r.pending...)
		r.mu.Unlock()
		return err
	}

	return nil
}

// RunInTx runs f inside a transaction unless the context is already
// done.
func (r *Users) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return r.db.RunInTx(ctx, opts, f)
	}
}

func scanned(user *identity.User, err error) (*identity.User, error) {
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return user, nil
}
