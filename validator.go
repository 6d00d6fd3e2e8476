package identity

import (
	"context"
)

// GrantError is the outward rejection code of a validation attempt.
type GrantError string

// GrantErrorInvalidGrant is the only rejection code. Unknown users and
// wrong passwords share it on purpose: handing out distinct codes would
// let a caller enumerate accounts.
const GrantErrorInvalidGrant GrantError = "invalid_grant"

// GrantValidationResult is the outcome of a credential validation.
// Err is empty on acceptance; SubjectID and Claims are only meaningful
// when Accepted reports true.
type GrantValidationResult struct {
	SubjectID int64
	Claims    []Claim
	Err       GrantError
}

// Accepted reports whether the validation succeeded.
func (r GrantValidationResult) Accepted() bool {
	return r.Err == ""
}

func rejected() GrantValidationResult {
	return GrantValidationResult{Err: GrantErrorInvalidGrant}
}

// CredentialValidator implements the resource owner password grant
// decision: look up the account, verify the password, allocate claims.
// It keeps no state between calls and is safe for concurrent use.
type CredentialValidator struct {
	users  UserStore
	hasher Hasher
	logger Logger
}

// NewCredentialValidator creates a validator over the given store.
func NewCredentialValidator(users UserStore, hasher Hasher) *CredentialValidator {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &CredentialValidator{
		users:  users,
		hasher: hasher,
		logger: defLogger{},
	}
}

func (v *CredentialValidator) WithLogger(logger Logger) *CredentialValidator {
	if logger != nil {
		v.logger = logger
	}
	return v
}

// Validate decides a single authentication attempt. A store failure
// comes back as a non-nil error and never as a rejection, so callers
// can tell an outage apart from bad credentials.
func (v *CredentialValidator) Validate(ctx context.Context, usernameOrEmail, password string) (GrantValidationResult, error) {
	user, err := v.users.FindByUsernameOrEmail(ctx, usernameOrEmail)
	if err != nil {
		return GrantValidationResult{}, WrapStoreError(err, "failed to look up user during validation")
	}

	if user == nil || !user.CanAuthenticate() {
		return rejected(), nil
	}

	if !v.hasher.Verify(password, user.PasswordHash) {
		v.logger.Debug("password mismatch for subject %d", user.ID)
		return rejected(), nil
	}

	return GrantValidationResult{
		SubjectID: user.ID,
		Claims:    BuildClaims(user),
	}, nil
}
