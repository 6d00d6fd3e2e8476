package identity

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// AuthenticateMessage is the inbound password grant command.
type AuthenticateMessage struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
	ClientID   string `json:"client_id"`
}

func (m AuthenticateMessage) Type() string { return "user.authenticate" }

// Validate only checks presence; length and shape rules would leak
// hints about stored credentials.
func (m AuthenticateMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Identifier, validation.Required),
		validation.Field(&m.Password, validation.Required),
		validation.Field(&m.ClientID, validation.Required),
	)
}

// AuthenticateHandler validates credentials and issues a token pair.
type AuthenticateHandler struct {
	validator *CredentialValidator
	tokens    *TokenService
	logger    Logger
}

// NewAuthenticateHandler creates the login handler.
func NewAuthenticateHandler(validator *CredentialValidator, tokens *TokenService) *AuthenticateHandler {
	return &AuthenticateHandler{
		validator: validator,
		tokens:    tokens,
		logger:    defLogger{},
	}
}

func (h *AuthenticateHandler) WithLogger(logger Logger) *AuthenticateHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *AuthenticateHandler) Execute(ctx context.Context, msg AuthenticateMessage) (TokenPair, error) {
	select {
	case <-ctx.Done():
		return TokenPair{}, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during authentication",
		)
	default:
	}

	result, err := h.validator.Validate(ctx, msg.Identifier, msg.Password)
	if err != nil {
		return TokenPair{}, err
	}

	if !result.Accepted() {
		h.logger.Debug("authentication rejected for identifier %q", msg.Identifier)
		return TokenPair{}, ErrInvalidCredentials
	}

	return h.tokens.Issue(ctx, result, msg.ClientID)
}
