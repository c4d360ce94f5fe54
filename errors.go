package sessions

import "github.com/goliatone/go-errors"

const (
	TextCodeInvalidCredentials = "session_invalid_credentials"
	TextCodeDuplicateEmail     = "session_duplicate_email"
	TextCodePasswordMismatch   = "session_password_mismatch"
	TextCodeSaveConflict       = "session_save_conflict"
	TextCodeUserNotFound       = "session_user_not_found"
	TextCodeTokenExpired       = "session_token_expired"
	TextCodeTokenMalformed     = "session_token_malformed"
	TextCodeUnauthenticated    = "session_unauthenticated"
)

// ErrInvalidCredentials is returned when an identifier/password pair does not
// match a stored credential. Deliberately silent about which part failed.
var ErrInvalidCredentials = errors.New("invalid credentials", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrDuplicateEmail is returned when the normalized email is already registered.
var ErrDuplicateEmail = errors.New("email already registered", errors.CategoryValidation).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(errors.CodeConflict)

// ErrPasswordMismatch is returned when password and confirmation differ.
var ErrPasswordMismatch = errors.New("passwords do not match", errors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(errors.CodeBadRequest)

// ErrSaveConflict is returned when an optimistic-concurrency save lost to a
// concurrent write. Surfaced, never retried.
var ErrSaveConflict = errors.New("record was modified concurrently", errors.CategoryConflict).
	WithTextCode(TextCodeSaveConflict).
	WithCode(errors.CodeConflict)

// ErrUserNotFound is returned when no user matches the given identifier.
var ErrUserNotFound = errors.New("user not found", errors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenExpired is returned when a token's expiry claim is in the past.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed covers signature mismatches and undecodable tokens.
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnauthenticated is the uniform failure for the verification gate.
// Malformed, expired, signature-mismatched, deleted-user and stale-version
// outcomes all fold into it so callers cannot tell which one occurred.
var ErrUnauthenticated = errors.New("unauthenticated", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(errors.CodeUnauthorized)

// ErrExternalLoginTaken is returned when a (provider, key) pair is already
// linked to a different user. Each pair maps to at most one user.
var ErrExternalLoginTaken = errors.New("external identity linked to another user", errors.CategoryConflict).
	WithTextCode("session_external_login_taken").
	WithCode(errors.CodeConflict)

// ErrNoEmptyString is the error for empty password input
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryBadInput).
	WithCode(errors.CodeBadRequest)

// ErrMismatchedHashAndPassword is the bcrypt mismatch error
var ErrMismatchedHashAndPassword = errors.New("hashed password mismatch", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)
