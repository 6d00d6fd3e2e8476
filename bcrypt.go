package identity

import (
	"golang.org/x/crypto/bcrypt"
)

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost())
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// BcryptHasher implements Hasher on bcrypt. Every Hash call salts, so
// two hashes of the same plaintext differ while both still verify.
type BcryptHasher struct{}

var _ Hasher = (*BcryptHasher)(nil)

func (BcryptHasher) Hash(plaintext string) (string, error) {
	return HashPassword(plaintext)
}

// Verify never returns an error: a malformed hash is simply a mismatch.
// bcrypt compares in constant time relative to the mismatch position.
func (BcryptHasher) Verify(plaintext, hash string) bool {
	return ComparePasswordAndHash(plaintext, hash) == nil
}
