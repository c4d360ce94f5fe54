package sessions

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds session issuance options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
}

// TokenService mints and verifies version-stamped session tokens.
// It is pure computation over the signing key; version freshness against the
// identity store is the caller's job (see Verifier).
type TokenService interface {
	Mint(userID uuid.UUID, version int64) (string, error)
	Verify(raw string) (*SessionClaims, error)
}

// SaveOutcome is the explicit result variant for IdentityStore.Save.
type SaveOutcome int

const (
	// SaveOK means the record was persisted at the expected version.
	SaveOK SaveOutcome = iota
	// SaveConflict means the stored version moved since it was read.
	// Callers must fail the operation, never retry with stale data.
	SaveConflict
	// SaveInvalid means the record failed validation before any write.
	SaveInvalid
)

// SaveResult reports the outcome of an optimistic-concurrency save.
type SaveResult struct {
	Outcome SaveOutcome
	User    *User
	Errors  []string
}

// IdentityStore is the durable record of users and their external logins.
// Implementations own per-record atomicity: every version bump plus field
// change is a single atomic write guarded by the expected version.
type IdentityStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)

	// Create persists a new user with a hashed credential. Hashing is
	// delegated to the store's PasswordAuthenticator collaborator.
	Create(ctx context.Context, user *User, password string) (*User, error)

	// CreateExternal persists a new user together with an external login
	// link in one transaction. A failure leaves neither behind.
	CreateExternal(ctx context.Context, user *User, provider, providerKey string) (*User, error)

	// Save persists user guarded by expectedVersion. The error channel is
	// for infrastructure failures only; business outcomes come back in the
	// SaveResult variant.
	Save(ctx context.Context, user *User, expectedVersion int64) (SaveResult, error)

	// Delete removes the user and all external login links atomically.
	Delete(ctx context.Context, user *User) error

	// LinkExternal associates (provider, providerKey) with the user and
	// returns the user at its current version. A fresh link is a
	// security-relevant mutation and bumps Version by 1; linking an
	// already-linked pair to the same user is a no-op and does not touch
	// Version.
	LinkExternal(ctx context.Context, userID uuid.UUID, provider, providerKey string) (*User, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SESSIONS "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SESSIONS "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SESSIONS "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
