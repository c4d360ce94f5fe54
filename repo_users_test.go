package sessions_test

import (
	"context"
	"database/sql"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    email TEXT NOT NULL,
    normalized_email TEXT NOT NULL UNIQUE,
    password_hash TEXT,
    version INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP NULL
);`
	sqliteCreateExternalLogins = `CREATE TABLE external_logins (
    id TEXT NOT NULL PRIMARY KEY,
    user_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    provider_key TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users (id) ON DELETE CASCADE,
    CONSTRAINT uq_external_logins_provider_key UNIQUE (provider, provider_key)
);`
)

func setupUsersRepo(t *testing.T) (sessions.IdentityStore, *bun.DB, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())

	_, err = bunDB.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	_, err = bunDB.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = bunDB.Exec(sqliteCreateExternalLogins)
	require.NoError(t, err)

	cleanup := func() {
		_ = bunDB.Close()
		_ = db.Close()
	}

	repo := sessions.NewUsersRepository(bunDB,
		sessions.WithUsersPasswordAuthenticator(stubPasswords{}),
	)

	return repo, bunDB, cleanup
}

func TestUsersRepoCreateAndFind(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	created, err := repo.Create(ctx, sessions.NewUser("Alice@Example.com"), "secret")
	require.NoError(t, err)
	assert.Equal(t, sessions.VersionInitial, created.Version)
	assert.Equal(t, "hashed:secret", created.PasswordHash)

	byID, err := repo.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byID.ID)

	// lookup is case-insensitive through normalization
	byEmail, err := repo.FindByEmail(ctx, "alice@EXAMPLE.com")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)
}

func TestUsersRepoFindUnknown(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.FindByEmail(ctx, "nobody@example.com")
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrUserNotFound))
}

func TestUsersRepoRejectsDuplicateEmail(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	_, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)

	_, err = repo.Create(ctx, sessions.NewUser("ALICE@example.COM"), "secret")
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrDuplicateEmail))
}

func TestUsersRepoSaveGuardedByVersion(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	user, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)

	expected := user.Version
	user.SetEmail("bob@example.com")
	user.Version++

	result, err := repo.Save(ctx, user, expected)
	require.NoError(t, err)
	require.Equal(t, sessions.SaveOK, result.Outcome)

	reloaded, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), reloaded.Version)
	assert.Equal(t, "bob@example.com", reloaded.Email)

	// a second writer holding the old version loses
	stale := *reloaded
	stale.SetEmail("eve@example.com")
	stale.Version = expected + 1

	result, err = repo.Save(ctx, &stale, expected)
	require.NoError(t, err)
	assert.Equal(t, sessions.SaveConflict, result.Outcome)

	// the conflict left no trace
	reloaded, err = repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", reloaded.Email)
}

func TestUsersRepoSaveInvalidRecord(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	user, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)

	user.Email = ""
	user.NormalizedEmail = ""

	result, err := repo.Save(ctx, user, user.Version)
	require.NoError(t, err)
	assert.Equal(t, sessions.SaveInvalid, result.Outcome)
	assert.NotEmpty(t, result.Errors)
}

func TestUsersRepoSaveUnknownUser(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	ghost := sessions.NewUser("ghost@example.com")
	_, err := repo.Save(ctx, ghost, 0)
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrUserNotFound))
}

func TestUsersRepoLinkExternalBumpsVersionOnce(t *testing.T) {
	repo, db, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	user, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)
	require.Equal(t, int64(0), user.Version)

	linked, err := repo.LinkExternal(ctx, user.ID, "google", "remote-123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), linked.Version)

	// re-linking the same pair is a no-op: no extra row, no version bump
	linked, err = repo.LinkExternal(ctx, user.ID, "google", "remote-123")
	require.NoError(t, err)
	assert.Equal(t, int64(1), linked.Version)

	count, err := db.NewSelect().
		Model((*sessions.ExternalLogin)(nil)).
		Where("user_id = ?", user.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUsersRepoLinkExternalRejectsTakenPair(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	alice, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)
	bob, err := repo.Create(ctx, sessions.NewUser("bob@example.com"), "secret")
	require.NoError(t, err)

	_, err = repo.LinkExternal(ctx, alice.ID, "google", "remote-123")
	require.NoError(t, err)

	_, err = repo.LinkExternal(ctx, bob.ID, "google", "remote-123")
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrExternalLoginTaken))
}

func TestUsersRepoCreateExternal(t *testing.T) {
	repo, db, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	user, err := repo.CreateExternal(ctx, sessions.NewUser("alice@example.com"), "google", "remote-123")
	require.NoError(t, err)
	assert.Equal(t, sessions.VersionInitial, user.Version)

	count, err := db.NewSelect().
		Model((*sessions.ExternalLogin)(nil)).
		Where("user_id = ?", user.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUsersRepoDeleteRemovesLinks(t *testing.T) {
	repo, db, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	user, err := repo.CreateExternal(ctx, sessions.NewUser("alice@example.com"), "google", "remote-123")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, user))

	_, err = repo.FindByID(ctx, user.ID)
	require.Error(t, err)
	assert.True(t, goerrors.Is(err, sessions.ErrUserNotFound))

	count, err := db.NewSelect().
		Model((*sessions.ExternalLogin)(nil)).
		Where("user_id = ?", user.ID).
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestUsersRepoDeleteFreesEmailForRegistration(t *testing.T) {
	repo, _, cleanup := setupUsersRepo(t)
	defer cleanup()

	ctx := context.Background()

	first, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, first))

	// the address is free again: same email, brand new account
	second, err := repo.Create(ctx, sessions.NewUser("alice@example.com"), "secret")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, sessions.VersionInitial, second.Version)
}
