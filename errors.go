package identity

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds is shared by the unknown-user and
	// wrong-password branches so callers cannot enumerate accounts.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeStoreUnavailable marks a collaborator failure.
	TextCodeStoreUnavailable = "STORE_UNAVAILABLE"
	// TextCodeEmptyPassword flags an empty plaintext handed to the hasher.
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeGrantNotFound marks a missing or expired persisted grant.
	TextCodeGrantNotFound = "GRANT_NOT_FOUND"
)

// ErrInvalidCredentials is returned for both an unknown identifier and a
// password mismatch.
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = goerrors.New("value must not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword)

// ErrGrantNotFound is returned when a refresh operation references a
// grant that is absent or already expired.
var ErrGrantNotFound = goerrors.New("persisted grant not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeGrantNotFound)

// WrapStoreError marks a UserStore or GrantCache failure so it stays
// distinguishable from a miss or a credential mismatch all the way up.
func WrapStoreError(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithTextCode(TextCodeStoreUnavailable)
}

// IsStoreUnavailable reports whether err originated in a failed
// collaborator call rather than an absence or mismatch.
func IsStoreUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == TextCodeStoreUnavailable
	}
	return false
}
