package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SaveUserSQL guards the write with the version the caller read. Zero rows
// affected means the record moved underneath us.
var SaveUserSQL = `UPDATE "users" AS "usr"
SET
	"email" = ?,
	"normalized_email" = ?,
	"password_hash" = ?,
	"version" = ?,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."id" = ?
AND "usr"."version" = ?;`

// BumpUserVersionSQL increments the counter in place; the database does the
// read-modify-write so concurrent bumps cannot lose updates.
var BumpUserVersionSQL = `UPDATE "users" AS "usr"
SET
	"version" = "usr"."version" + 1,
	"updated_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."id" = ?;`

type users struct {
	db     *bun.DB
	hasher PasswordAuthenticator
	logger Logger
}

var _ IdentityStore = (*users)(nil)

type UsersOption func(*users)

// NewUsersRepository creates the bun-backed IdentityStore.
func NewUsersRepository(db *bun.DB, opts ...UsersOption) IdentityStore {
	repo := &users{
		db:     db,
		hasher: BcryptAuthenticator{},
		logger: defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo
}

// WithUsersPasswordAuthenticator swaps the credential-hashing collaborator.
func WithUsersPasswordAuthenticator(p PasswordAuthenticator) UsersOption {
	return func(u *users) {
		if p != nil {
			u.hasher = p
		}
	}
}

// WithUsersLogger sets the repository logger.
func WithUsersLogger(logger Logger) UsersOption {
	return func(u *users) {
		if logger != nil {
			u.logger = logger
		}
	}
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.findByIDTx(ctx, a.db, id)
}

func (a *users) findByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) FindByEmail(ctx context.Context, email string) (*User, error) {
	return a.findByEmailTx(ctx, a.db, email)
}

func (a *users) findByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.normalized_email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if isNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) Create(ctx context.Context, user *User, password string) (*User, error) {
	hash, err := a.hasher.HashPassword(password)
	if err != nil {
		return nil, err
	}

	err = a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		prepareUserDefaults(user)
		user.PasswordHash = hash

		if err := a.ensureEmailAvailableTx(ctx, tx, user.NormalizedEmail); err != nil {
			return err
		}

		_, err := tx.NewInsert().Model(user).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (a *users) CreateExternal(ctx context.Context, user *User, provider, providerKey string) (*User, error) {
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		prepareUserDefaults(user)

		if err := a.ensureEmailAvailableTx(ctx, tx, user.NormalizedEmail); err != nil {
			return err
		}

		if _, err := tx.NewInsert().Model(user).Exec(ctx); err != nil {
			return err
		}

		link := &ExternalLogin{
			ID:          uuid.New(),
			UserID:      user.ID,
			Provider:    provider,
			ProviderKey: providerKey,
		}
		_, err := tx.NewInsert().Model(link).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

func (a *users) Save(ctx context.Context, user *User, expectedVersion int64) (SaveResult, error) {
	if issues := validateUserForSave(user); len(issues) > 0 {
		return SaveResult{Outcome: SaveInvalid, Errors: issues}, nil
	}

	res, err := a.db.NewRaw(
		SaveUserSQL,
		user.Email,
		user.NormalizedEmail,
		user.PasswordHash,
		user.Version,
		time.Now(),
		user.ID,
		expectedVersion,
	).Exec(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return SaveResult{}, err
	}

	if rows == 0 {
		if _, err := a.FindByID(ctx, user.ID); err != nil {
			if goerrors.Is(err, ErrUserNotFound) {
				return SaveResult{}, ErrUserNotFound
			}
			return SaveResult{}, err
		}
		a.logger.Info("Save for user %s lost race at expected version %d", user.ID, expectedVersion)
		return SaveResult{Outcome: SaveConflict}, nil
	}

	return SaveResult{Outcome: SaveOK, User: user}, nil
}

func (a *users) Delete(ctx context.Context, user *User) error {
	if user == nil || user.ID == uuid.Nil {
		return ErrUserNotFound
	}

	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().
			Model((*ExternalLogin)(nil)).
			Where("user_id = ?", user.ID).
			Exec(ctx); err != nil {
			return err
		}

		// Hard delete. A soft-deleted row would keep the unique
		// normalized_email occupied and lock the address out of
		// registration forever.
		res, err := tx.NewDelete().
			Model((*User)(nil)).
			Where("id = ?", user.ID).
			ForceDelete().
			Exec(ctx)
		if err != nil {
			return err
		}

		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUserNotFound
		}

		return nil
	})
}

func (a *users) LinkExternal(ctx context.Context, userID uuid.UUID, provider, providerKey string) (*User, error) {
	var linked *User

	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		existing := &ExternalLogin{}
		err := tx.NewSelect().
			Model(existing).
			Where("?TableAlias.provider = ?", provider).
			Where("?TableAlias.provider_key = ?", providerKey).
			Limit(1).
			Scan(ctx)

		switch {
		case err == nil:
			if existing.UserID != userID {
				return ErrExternalLoginTaken
			}
			// already linked to this user: no-op, no version bump
			linked, err = a.findByIDTx(ctx, tx, userID)
			return err
		case !isNoRows(err):
			return err
		}

		link := &ExternalLogin{
			ID:          uuid.New(),
			UserID:      userID,
			Provider:    provider,
			ProviderKey: providerKey,
		}
		if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
			return err
		}

		res, err := tx.NewRaw(BumpUserVersionSQL, time.Now(), userID).Exec(ctx)
		if err != nil {
			return err
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrUserNotFound
		}

		linked, err = a.findByIDTx(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return linked, nil
}

func (a *users) ensureEmailAvailableTx(ctx context.Context, tx bun.IDB, normalizedEmail string) error {
	exists, err := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.normalized_email = ?", normalizedEmail).
		Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrDuplicateEmail
	}
	return nil
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	if record.NormalizedEmail == "" {
		record.NormalizedEmail = NormalizeEmail(record.Email)
	}
}

func validateUserForSave(record *User) []string {
	var issues []string
	if record == nil {
		return []string{"user is required"}
	}
	if record.ID == uuid.Nil {
		issues = append(issues, "user id is required")
	}
	if record.Email == "" {
		issues = append(issues, "email is required")
	}
	if record.NormalizedEmail != NormalizeEmail(record.Email) {
		issues = append(issues, "normalized email out of sync")
	}
	if record.Version < 0 {
		issues = append(issues, "version must not be negative")
	}
	return issues
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
