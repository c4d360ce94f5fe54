package sessions

import (
	"context"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// Router locals keys populated by Protected.
const (
	// SessionContextKey holds the verified *SessionClaims.
	SessionContextKey = "session"
	// UserContextKey holds the verified *User.
	UserContextKey = "user"
)

// Verifier is the cross-request authentication gate: token signature and
// expiry offline, then one identity store round-trip to confirm the embedded
// version is still the user's current version.
type Verifier struct {
	tokens TokenService
	store  IdentityStore
	logger Logger
}

// NewVerifier creates a Verifier.
func NewVerifier(tokens TokenService, store IdentityStore, logger Logger) *Verifier {
	if logger == nil {
		logger = defLogger{}
	}
	return &Verifier{
		tokens: tokens,
		store:  store,
		logger: logger,
	}
}

// Authenticate establishes the identity behind a raw token. Every failure
// mode folds into ErrUnauthenticated; the cause is logged, never surfaced,
// so callers cannot distinguish malformed from expired from revoked.
func (v *Verifier) Authenticate(ctx context.Context, raw string) (*User, *SessionClaims, error) {
	claims, err := v.tokens.Verify(raw)
	if err != nil {
		v.logger.Debug("Authenticate token rejected: %v", err)
		return nil, nil, ErrUnauthenticated
	}

	uid, err := claims.UserUUID()
	if err != nil {
		v.logger.Debug("Authenticate claims carry invalid user id: %v", err)
		return nil, nil, ErrUnauthenticated
	}

	user, err := v.store.FindByID(ctx, uid)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			v.logger.Error("Authenticate user lookup failed: %v", err)
		}
		return nil, nil, ErrUnauthenticated
	}

	if user.Version != claims.Version {
		v.logger.Debug(
			"Authenticate stale session version for user %s: token %d, current %d",
			user.ID, claims.Version, user.Version,
		)
		return nil, nil, ErrUnauthenticated
	}

	return user, claims, nil
}

// Protected builds a middleware that requires an authenticated identity. On
// success the user and claims are stored in the router locals; otherwise
// errorHandler decides the response (anonymous callers included).
func Protected(v *Verifier, transport CookieTransport, errorHandler func(router.Context, error) error) router.MiddlewareFunc {
	if errorHandler == nil {
		errorHandler = defaultAuthErrorHandler
	}

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			raw, ok := transport.Extract(c)
			if !ok {
				return errorHandler(c, ErrUnauthenticated)
			}

			user, claims, err := v.Authenticate(c.Context(), raw)
			if err != nil {
				return errorHandler(c, err)
			}

			c.Locals(UserContextKey, user)
			c.Locals(SessionContextKey, claims)

			return next(c)
		}
	}
}

// UserFromContext retrieves the authenticated user set by Protected.
func UserFromContext(c router.Context) (*User, bool) {
	user, ok := c.Locals(UserContextKey).(*User)
	return user, ok && user != nil
}

// SessionFromContext retrieves the verified claims set by Protected.
func SessionFromContext(c router.Context) (*SessionClaims, bool) {
	claims, ok := c.Locals(SessionContextKey).(*SessionClaims)
	return claims, ok && claims != nil
}

func defaultAuthErrorHandler(c router.Context, err error) error {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = ErrUnauthenticated
	}

	return c.JSON(router.StatusUnauthorized, map[string]string{
		"error": richErr.Message,
	})
}
