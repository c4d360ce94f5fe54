package external

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "external_provider_not_found"
	TextCodeInvalidState      = "external_invalid_state"
	TextCodeStateExpired      = "external_state_expired"
	TextCodeRemoteAuth        = "external_remote_auth_failed"
	TextCodeMissingEmailClaim = "external_missing_email_claim"
	TextCodeLinkPersistence   = "external_link_persistence_failed"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("external provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrRemoteAuth covers every failure on the provider's side of the handshake:
// the provider reported an error on callback, the code exchange failed, or
// the profile fetch failed.
var ErrRemoteAuth = errors.New("remote authentication failed", errors.CategoryAuth).
	WithTextCode(TextCodeRemoteAuth).
	WithCode(errors.CodeBadRequest)

// ErrMissingEmailClaim is returned when the provider profile carries no email.
// Without an email there is nothing to match or create a user by.
var ErrMissingEmailClaim = errors.New("provider profile has no email", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingEmailClaim).
	WithCode(errors.CodeBadRequest)

// ErrLinkPersistence is returned when recording the external login link fails
// for a user that already exists.
var ErrLinkPersistence = errors.New("could not persist external login", errors.CategoryInternal).
	WithTextCode(TextCodeLinkPersistence).
	WithCode(errors.CodeInternal)
