package identity

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// RegisterUserMessage is the inbound registration command. The DTO
// layer maps its request body straight onto this shape.
type RegisterUserMessage struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (m RegisterUserMessage) Type() string { return "user.register" }

// Validate carries the command's validation rules; the bus's
// validation decorator runs them before the handler sees the message.
func (m RegisterUserMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Username, validation.Required, validation.Length(3, 64)),
		validation.Field(&m.Name, validation.Length(0, 200)),
		validation.Field(&m.Email, validation.Length(6, 100), is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(5, 100)),
	)
}

// RegisterUserHandler hashes the password and persists the new account.
type RegisterUserHandler struct {
	users  UserStore
	hasher Hasher
}

// NewRegisterUserHandler creates the registration handler.
func NewRegisterUserHandler(users UserStore, hasher Hasher) *RegisterUserHandler {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	return &RegisterUserHandler{
		users:  users,
		hasher: hasher,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, msg RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, msg)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, msg RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	hash, err := h.hasher.Hash(msg.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	user := &User{
		Username:     msg.Username,
		DisplayName:  msg.Name,
		Email:        msg.Email,
		PasswordHash: hash,
	}

	if err := h.users.Add(ctx, user); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
	}

	if err := h.users.Commit(ctx); err != nil {
		return WrapStoreError(err, "failed to commit user registration")
	}

	return nil
}
