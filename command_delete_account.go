package sessions

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

type DeleteAccountMessage struct {
	UserID uuid.UUID `json:"user_id"`
}

func (e DeleteAccountMessage) Type() string { return "user.delete" }

// DeleteAccountHandler removes the account and its external login links.
// Once the row is gone every outstanding token fails verification at the
// lookup step, so no separate revocation write is needed.
type DeleteAccountHandler struct {
	repo RepositoryManager
}

func NewDeleteAccountHandler(repo RepositoryManager) *DeleteAccountHandler {
	return &DeleteAccountHandler{repo: repo}
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().FindByID(ctx, event.UserID)
	if err != nil {
		return err
	}

	return h.repo.Users().Delete(ctx, user)
}
