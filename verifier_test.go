package sessions_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-sessions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestVerifierAuthenticateFreshToken(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	user := sessions.NewUser("alice@example.com")
	user.Version = 4

	token, err := svc.Mint(user.ID, 4)
	require.NoError(t, err)

	store.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	verifier := sessions.NewVerifier(svc, store, nil)

	got, claims, err := verifier.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, int64(4), claims.Version)
}

func TestVerifierAuthenticateStaleVersion(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	user := sessions.NewUser("alice@example.com")
	token, err := svc.Mint(user.ID, 4)
	require.NoError(t, err)

	// the live record moved on
	user.Version = 5
	store.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	verifier := sessions.NewVerifier(svc, store, nil)

	_, _, err = verifier.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrUnauthenticated))
}

func TestVerifierAuthenticateDeletedUser(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	userID := uuid.New()
	token, err := svc.Mint(userID, 0)
	require.NoError(t, err)

	store.On("FindByID", mock.Anything, userID).Return(nil, sessions.ErrUserNotFound)

	verifier := sessions.NewVerifier(svc, store, nil)

	_, _, err = verifier.Authenticate(context.Background(), token)
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrUnauthenticated))
}

func TestVerifierAuthenticateMalformedToken(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	verifier := sessions.NewVerifier(svc, store, nil)

	_, _, err := verifier.Authenticate(context.Background(), "garbage")
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrUnauthenticated))

	store.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestProtectedMiddlewarePopulatesLocals(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	user := sessions.NewUser("alice@example.com")
	token, err := svc.Mint(user.ID, 0)
	require.NoError(t, err)

	store.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	verifier := sessions.NewVerifier(svc, store, nil)
	middleware := sessions.Protected(verifier, sessions.NewCookieTransport(), nil)

	ctx := router.NewMockContext()
	ctx.CookiesM["token"] = token
	ctx.On("Context").Return(context.Background())
	ctx.On("Locals", sessions.UserContextKey, mock.Anything).Return(nil)
	ctx.On("Locals", sessions.SessionContextKey, mock.Anything).Return(nil)

	nextCalled := false
	handler := middleware(func(c router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.True(t, nextCalled)
	ctx.AssertCalled(t, "Locals", sessions.UserContextKey, user)
}

func TestProtectedMiddlewareRejectsMissingCookie(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	verifier := sessions.NewVerifier(svc, store, nil)
	middleware := sessions.Protected(verifier, sessions.NewCookieTransport(), nil)

	ctx := router.NewMockContext()

	var status int
	ctx.On("JSON", router.StatusUnauthorized, mock.Anything).Run(func(args mock.Arguments) {
		status = args.Int(0)
	}).Return(nil)

	nextCalled := false
	handler := middleware(func(c router.Context) error {
		nextCalled = true
		return nil
	})

	require.NoError(t, handler(ctx))
	assert.False(t, nextCalled)
	assert.Equal(t, router.StatusUnauthorized, status)
}

func TestProtectedMiddlewareCustomErrorHandler(t *testing.T) {
	svc := newTestTokenService()
	store := new(MockIdentityStore)

	verifier := sessions.NewVerifier(svc, store, nil)

	var handled error
	middleware := sessions.Protected(verifier, sessions.NewCookieTransport(), func(c router.Context, err error) error {
		handled = err
		return nil
	})

	ctx := router.NewMockContext()
	ctx.CookiesM["token"] = "garbage"
	ctx.On("Context").Return(context.Background())

	handler := middleware(func(c router.Context) error { return nil })

	require.NoError(t, handler(ctx))
	assert.True(t, goerrors.Is(handled, sessions.ErrUnauthenticated))
}
