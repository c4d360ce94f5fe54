package sessions

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type ChangeEmailMessage struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
}

func (e ChangeEmailMessage) Type() string { return "user.change_email" }

// ChangeEmailHandler rewrites the user's email and bumps Version by exactly
// one, so every token minted before the change goes stale. The write is
// guarded by the version the user was read at; a concurrent bump surfaces as
// ErrSaveConflict and is never retried.
type ChangeEmailHandler struct {
	repo RepositoryManager
}

func NewChangeEmailHandler(repo RepositoryManager) *ChangeEmailHandler {
	return &ChangeEmailHandler{repo: repo}
}

func (h *ChangeEmailHandler) Execute(ctx context.Context, event ChangeEmailMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during email change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangeEmailHandler) execute(ctx context.Context, event ChangeEmailMessage) (*User, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().FindByID(ctx, event.UserID)
	if err != nil {
		return nil, err
	}

	if NormalizeEmail(event.Email) == user.NormalizedEmail {
		return user, nil
	}

	if taken, err := h.emailTaken(ctx, event.Email, user.ID); err != nil {
		return nil, err
	} else if taken {
		return nil, ErrDuplicateEmail
	}

	expected := user.Version
	user.SetEmail(event.Email)
	user.Version++

	result, err := h.repo.Users().Save(ctx, user, expected)
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case SaveOK:
		return result.User, nil
	case SaveConflict:
		return nil, ErrSaveConflict
	default:
		return nil, goerrors.New(
			"email change rejected: "+strings.Join(result.Errors, "; "),
			goerrors.CategoryValidation,
		).WithCode(goerrors.CodeBadRequest)
	}
}

func (h *ChangeEmailHandler) emailTaken(ctx context.Context, email string, self uuid.UUID) (bool, error) {
	other, err := h.repo.Users().FindByEmail(ctx, email)
	if err != nil {
		if goerrors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return other.ID != self, nil
}
