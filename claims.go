package identity

import (
	"sort"
	"strconv"
)

// Claim types follow the JWT claim vocabulary the issued tokens use.
const (
	ClaimTypeSubject           = "sub"
	ClaimTypePreferredUsername = "preferred_username"
	ClaimTypeRole              = "role"
	ClaimTypeName              = "name"
)

// Claim is a typed attribute attached to an issued token.
type Claim struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// BuildClaims maps a user record to the claim set issued in a token.
// It always emits the preferred username and the default role, and the
// display name only when present. The result is a fresh slice sorted by
// (type, value) so repeated calls are deterministic.
func BuildClaims(user *User) []Claim {
	claims := []Claim{
		{Type: ClaimTypePreferredUsername, Value: user.Username},
		{Type: ClaimTypeRole, Value: RoleDefault},
	}

	if user.DisplayName != "" {
		claims = append(claims, Claim{Type: ClaimTypeName, Value: user.DisplayName})
	}

	sortClaims(claims)

	return claims
}

func sortClaims(claims []Claim) {
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].Type != claims[j].Type {
			return claims[i].Type < claims[j].Type
		}
		return claims[i].Value < claims[j].Value
	})
}

// FindClaim returns the first claim of the given type.
func FindClaim(claims []Claim, claimType string) (Claim, bool) {
	for _, c := range claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

func dropClaim(claims []Claim, claimType string) []Claim {
	kept := make([]Claim, 0, len(claims))
	for _, c := range claims {
		if c.Type != claimType {
			kept = append(kept, c)
		}
	}
	return kept
}

// SubjectID extracts the numeric subject identifier from a claim set.
func SubjectID(claims []Claim) (int64, bool) {
	sub, ok := FindClaim(claims, ClaimTypeSubject)
	if !ok {
		return 0, false
	}

	id, err := strconv.ParseInt(sub.Value, 10, 64)
	if err != nil {
		return 0, false
	}

	return id, true
}
