package sessions

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptAuthenticator is the delegated credential-hashing collaborator.
type BcryptAuthenticator struct{}

var _ PasswordAuthenticator = BcryptAuthenticator{}

// HashPassword will generate a password hash
func (BcryptAuthenticator) HashPassword(password string) (string, error) {
	return HashPassword(password)
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (BcryptAuthenticator) ComparePasswordAndHash(password, hash string) error {
	return ComparePasswordAndHash(password, hash)
}

// HashPassword will generate a password hash
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	h, err := bcrypt.GenerateFromPassword([]byte(password), 14)
	return string(h), err
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func ComparePasswordAndHash(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return err
	}
	return nil
}
