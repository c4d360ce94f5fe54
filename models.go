package sessions

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// VersionInitial is the version counter assigned to newly created users.
const VersionInitial int64 = 0

// User is the user model
type User struct {
	bun.BaseModel   `bun:"table:users,alias:usr"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email           string     `bun:"email,notnull" json:"email,omitempty"`
	NormalizedEmail string     `bun:"normalized_email,notnull,unique" json:"normalized_email,omitempty"`
	PasswordHash    string     `bun:"password_hash" json:"password_hash,omitempty"`
	Version         int64      `bun:"version,notnull,default:0" json:"version"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt       *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt       *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// SetEmail updates both email columns. It does not bump Version; that is the
// orchestrator's single, explicit +1 per mutation event.
func (u *User) SetEmail(email string) *User {
	u.Email = email
	u.NormalizedEmail = NormalizeEmail(email)
	return u
}

// ExternalLogin links a third-party provider identity to a user.
// A (provider, provider_key) pair maps to at most one user.
type ExternalLogin struct {
	bun.BaseModel `bun:"table:external_logins,alias:extl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	Provider      string     `bun:"provider,notnull" json:"provider,omitempty"`
	ProviderKey   string     `bun:"provider_key,notnull" json:"provider_key,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// NormalizeEmail produces the case-insensitive comparison form used for
// uniqueness checks and lookups.
func NormalizeEmail(email string) string {
	return strings.ToUpper(strings.TrimSpace(email))
}

// NewUser builds an unsaved user at the initial version.
func NewUser(email string) *User {
	u := &User{
		ID:      uuid.New(),
		Version: VersionInitial,
	}
	return u.SetEmail(email)
}
