package sessions

import (
	"context"

	"github.com/goliatone/go-errors"
)

// Auther validates password credentials against the identity store and mints
// tokens at the user's current version.
type Auther struct {
	store     IdentityStore
	tokens    TokenService
	passwords PasswordAuthenticator
	logger    Logger
}

// NewAuthenticator returns a new Auther
func NewAuthenticator(store IdentityStore, tokens TokenService) *Auther {
	return &Auther{
		store:     store,
		tokens:    tokens,
		passwords: BcryptAuthenticator{},
		logger:    defLogger{},
	}
}

func (a *Auther) WithLogger(logger Logger) *Auther {
	if logger != nil {
		a.logger = logger
	}
	return a
}

// WithPasswordAuthenticator swaps the credential-hashing collaborator.
func (a *Auther) WithPasswordAuthenticator(p PasswordAuthenticator) *Auther {
	if p != nil {
		a.passwords = p
	}
	return a
}

// Login verifies an email/password pair and returns a token minted at the
// user's current version. Unknown email and wrong password produce the same
// ErrInvalidCredentials.
func (a *Auther) Login(ctx context.Context, email, password string) (string, error) {
	user, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.logger.Debug("Login unknown email")
			return "", ErrInvalidCredentials
		}
		a.logger.Error("Login user lookup failed: %v", err)
		return "", err
	}

	if err := a.passwords.ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		a.logger.Debug("Login password mismatch for user %s", user.ID)
		return "", ErrInvalidCredentials
	}

	token, err := a.tokens.Mint(user.ID, user.Version)
	if err != nil {
		a.logger.Error("Login token mint failed: %v", err)
		return "", err
	}

	return token, nil
}
