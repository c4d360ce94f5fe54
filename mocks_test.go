package sessions_test

import (
	"context"
	"database/sql"

	"github.com/goliatone/go-sessions"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockIdentityStore implements sessions.IdentityStore
type MockIdentityStore struct {
	mock.Mock
}

func (m *MockIdentityStore) FindByID(ctx context.Context, id uuid.UUID) (*sessions.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*sessions.User)
	return user, args.Error(1)
}

func (m *MockIdentityStore) FindByEmail(ctx context.Context, email string) (*sessions.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*sessions.User)
	return user, args.Error(1)
}

// Create echoes the input user when the configured return is nil so tests can
// assert on what the handler produced without wiring dynamic returns.
func (m *MockIdentityStore) Create(ctx context.Context, user *sessions.User, password string) (*sessions.User, error) {
	args := m.Called(ctx, user, password)
	created, _ := args.Get(0).(*sessions.User)
	if created == nil && args.Error(1) == nil {
		created = user
	}
	return created, args.Error(1)
}

func (m *MockIdentityStore) CreateExternal(ctx context.Context, user *sessions.User, provider, providerKey string) (*sessions.User, error) {
	args := m.Called(ctx, user, provider, providerKey)
	created, _ := args.Get(0).(*sessions.User)
	if created == nil && args.Error(1) == nil {
		created = user
	}
	return created, args.Error(1)
}

func (m *MockIdentityStore) Save(ctx context.Context, user *sessions.User, expectedVersion int64) (sessions.SaveResult, error) {
	args := m.Called(ctx, user, expectedVersion)
	result, _ := args.Get(0).(sessions.SaveResult)
	return result, args.Error(1)
}

func (m *MockIdentityStore) Delete(ctx context.Context, user *sessions.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockIdentityStore) LinkExternal(ctx context.Context, userID uuid.UUID, provider, providerKey string) (*sessions.User, error) {
	args := m.Called(ctx, userID, provider, providerKey)
	user, _ := args.Get(0).(*sessions.User)
	return user, args.Error(1)
}

// stubRepoManager wraps a store in the RepositoryManager interface for
// handler tests that never touch the transaction layer.
type stubRepoManager struct {
	users sessions.IdentityStore
}

func (s stubRepoManager) Validate() error { return nil }
func (s stubRepoManager) MustValidate()   {}
func (s stubRepoManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	return f(ctx, bun.Tx{})
}
func (s stubRepoManager) Users() sessions.IdentityStore { return s.users }

// testConfig implements sessions.Config
type testConfig struct {
	signingKey      string
	tokenExpiration int
	issuer          string
	audience        []string
}

func (c testConfig) GetSigningKey() string   { return c.signingKey }
func (c testConfig) GetTokenExpiration() int { return c.tokenExpiration }
func (c testConfig) GetIssuer() string       { return c.issuer }
func (c testConfig) GetAudience() []string   { return c.audience }

func newTestConfig() testConfig {
	return testConfig{
		signingKey:      "test-signing-key",
		tokenExpiration: 720,
		issuer:          "test-issuer",
		audience:        []string{"test-audience"},
	}
}

func newTestTokenService() sessions.TokenService {
	return sessions.NewTokenServiceFromConfig(newTestConfig(), nil)
}
