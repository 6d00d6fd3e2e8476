package identity

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenPair is the outcome of a successful issuance: a signed access
// token plus the opaque refresh token persisted as a grant.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// TokenService signs access tokens for accepted grant validations and
// manages the refresh token lifecycle through the persisted grant
// store.
type TokenService struct {
	signingKey      []byte
	tokenExpiration int
	refreshDuration int
	issuer          string
	audience        jwt.ClaimStrings
	grants          *PersistedGrantStore
	enricher        *ProfileEnricher
	logger          Logger
	now             func() time.Time
}

// NewTokenService creates a TokenService from the given config.
func NewTokenService(cfg Config, grants *PersistedGrantStore, enricher *ProfileEnricher) *TokenService {
	return &TokenService{
		signingKey:      []byte(cfg.GetSigningKey()),
		tokenExpiration: cfg.GetTokenExpiration(),
		refreshDuration: cfg.GetRefreshTokenDuration(),
		issuer:          cfg.GetIssuer(),
		audience:        cfg.GetAudience(),
		grants:          grants,
		enricher:        enricher,
		logger:          defLogger{},
		now:             time.Now,
	}
}

func (ts *TokenService) WithLogger(logger Logger) *TokenService {
	if logger != nil {
		ts.logger = logger
	}
	return ts
}

// WithClock overrides the time source, mostly for tests.
func (ts *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		ts.now = now
	}
	return ts
}

// Issue signs an access token carrying the accepted claims and mints a
// refresh token grant for the subject and client.
func (ts *TokenService) Issue(ctx context.Context, result GrantValidationResult, clientID string) (TokenPair, error) {
	if !result.Accepted() {
		return TokenPair{}, goerrors.New("cannot issue tokens for a rejected validation", goerrors.CategoryBadInput)
	}

	now := ts.now()
	subject := strconv.FormatInt(result.SubjectID, 10)
	expiresAt := now.Add(time.Duration(ts.tokenExpiration) * time.Hour)

	accessToken, err := ts.signClaims(subject, result.Claims, now, expiresAt)
	if err != nil {
		return TokenPair{}, err
	}

	handle := uuid.NewString()
	payload, err := json.Marshal(result.Claims)
	if err != nil {
		return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode grant payload")
	}

	grant := &PersistedGrant{
		Key:          handle,
		Type:         GrantTypeRefreshToken,
		SubjectID:    subject,
		ClientID:     clientID,
		CreationTime: now,
		Expiration:   now.Add(time.Duration(ts.refreshDuration) * time.Hour),
		Data:         payload,
	}

	if err := ts.grants.Store(ctx, grant); err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: handle,
		ExpiresAt:    expiresAt,
	}, nil
}

// Refresh exchanges a refresh token for a new pair. Claims are rebuilt
// from current user state through the profile enricher, the old grant
// is rotated out, and a fresh grant takes its place.
func (ts *TokenService) Refresh(ctx context.Context, refreshToken, clientID string) (TokenPair, error) {
	grant, err := ts.grants.Get(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	if grant == nil || grant.Type != GrantTypeRefreshToken || grant.ClientID != clientID {
		return TokenPair{}, ErrGrantNotFound
	}

	subjectID, err := strconv.ParseInt(grant.SubjectID, 10, 64)
	if err != nil {
		ts.logger.Error("grant %q carries non-numeric subject %q", grant.Key, grant.SubjectID)
		return TokenPair{}, ErrGrantNotFound
	}

	var claims []Claim
	if len(grant.Data) > 0 {
		if err := json.Unmarshal(grant.Data, &claims); err != nil {
			return TokenPair{}, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode grant payload")
		}
	}

	claims = ts.enricher.Enrich(ctx, append(claims, Claim{Type: ClaimTypeSubject, Value: grant.SubjectID}))
	claims = dropClaim(claims, ClaimTypeSubject)

	if err := ts.grants.Remove(ctx, refreshToken); err != nil {
		return TokenPair{}, err
	}

	return ts.Issue(ctx, GrantValidationResult{SubjectID: subjectID, Claims: claims}, clientID)
}

// Revoke removes every grant issued to the subject for the client, the
// logout-all-sessions path.
func (ts *TokenService) Revoke(ctx context.Context, subjectID int64, clientID string) error {
	return ts.grants.RemoveAll(ctx, strconv.FormatInt(subjectID, 10), clientID)
}

// Validate parses a signed access token and returns its claim set.
func (ts *TokenService) Validate(tokenString string) ([]Claim, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, jwt.MapClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token validation encountered unexpected signing method %v", t.Header["alg"])
			return nil, goerrors.New("unexpected signing method", goerrors.CategoryAuth)
		}
		return ts.signingKey, nil
	}, parserOptions...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryAuth, "invalid access token")
	}

	mapClaims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, goerrors.New("unable to decode token claims", goerrors.CategoryAuth)
	}

	return claimsFromMap(mapClaims), nil
}

func (ts *TokenService) signClaims(subject string, claims []Claim, now, expiresAt time.Time) (string, error) {
	mapClaims := jwt.MapClaims{
		"sub": subject,
		"iat": jwt.NewNumericDate(now),
		"exp": jwt.NewNumericDate(expiresAt),
		"jti": uuid.NewString(),
	}
	if ts.issuer != "" {
		mapClaims["iss"] = ts.issuer
	}
	if len(ts.audience) > 0 {
		mapClaims["aud"] = ts.audience
	}
	for _, c := range claims {
		mapClaims[c.Type] = c.Value
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, mapClaims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign access token")
	}

	return signed, nil
}

func claimsFromMap(mapClaims jwt.MapClaims) []Claim {
	claims := make([]Claim, 0, len(mapClaims))
	for claimType, value := range mapClaims {
		if s, ok := value.(string); ok {
			claims = append(claims, Claim{Type: claimType, Value: s})
		}
	}
	sortClaims(claims)
	return claims
}
