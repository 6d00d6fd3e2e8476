package identity

import (
	"time"

	"github.com/uptrace/bun"
)

// RoleDefault is the single role assigned to every authenticated account.
const RoleDefault = "player"

// User is the account model
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            int64      `bun:"id,pk,autoincrement" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,unique,nullzero" json:"email,omitempty"`
	DisplayName   string     `bun:"display_name" json:"display_name,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"password_hash,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// CanAuthenticate reports whether the record is complete enough to be
// used for credential validation.
func (u *User) CanAuthenticate() bool {
	return u != nil && u.Username != "" && u.PasswordHash != ""
}

// GrantType is the kind of persisted token artifact
type GrantType = string

const (
	// GrantTypeRefreshToken marks a refresh token grant
	GrantTypeRefreshToken GrantType = "refresh_token"
	// GrantTypeAuthorizationCode marks an authorization code grant
	GrantTypeAuthorizationCode GrantType = "authorization_code"
	// GrantTypeReferenceToken marks a reference access token grant
	GrantTypeReferenceToken GrantType = "reference_token"
)

// PersistedGrant is a durable record of an issued token artifact. The
// Data payload is opaque to this package; its structure belongs to the
// protocol layer that issued it.
type PersistedGrant struct {
	Key          string    `json:"key"`
	Type         GrantType `json:"type"`
	SubjectID    string    `json:"subject_id"`
	ClientID     string    `json:"client_id"`
	CreationTime time.Time `json:"creation_time"`
	Expiration   time.Time `json:"expiration"`
	Data         []byte    `json:"data,omitempty"`
}

// Expired reports whether the grant's absolute expiration has passed.
// Read paths must treat expired records as absent even when the backing
// cache still physically holds them.
func (g *PersistedGrant) Expired(now time.Time) bool {
	return !g.Expiration.After(now)
}
