package identity

import (
	"context"
)

// ProfileEnricher re-derives the canonical claim set for a subject that
// already holds a token, so a profile edit shows up the next time a
// resource server asks for the subject's claims.
type ProfileEnricher struct {
	users  UserStore
	logger Logger
}

// NewProfileEnricher creates an enricher over the given store.
func NewProfileEnricher(users UserStore) *ProfileEnricher {
	return &ProfileEnricher{
		users:  users,
		logger: defLogger{},
	}
}

func (e *ProfileEnricher) WithLogger(logger Logger) *ProfileEnricher {
	if logger != nil {
		e.logger = logger
	}
	return e
}

// Enrich rebuilds the claim set from current user state. When the
// subject claim is missing or non-numeric, or the user no longer
// exists, the caller-supplied claims come back unchanged; enrichment
// degrades, it never fails. A rebuilt set replaces the input wholesale
// so stale claims cannot leak through after a profile edit.
func (e *ProfileEnricher) Enrich(ctx context.Context, existing []Claim) []Claim {
	subjectID, ok := SubjectID(existing)
	if !ok {
		return existing
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		e.logger.Error("profile enrichment lookup failed for subject %d: %v", subjectID, err)
		return existing
	}

	if user == nil {
		return existing
	}

	return BuildClaims(user)
}
