package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleGuest is an guest role (ie. view)
	RoleGuest UserRole = "guest"
	// RoleMember us a member (i.e. view, edit)
	RoleMember UserRole = "member"
	// RoleAdmin is an admin role (i.e. view, edit, create)
	RoleAdmin UserRole = "admin"
	// RoleOwner is an admin role (i.e. view, edit, create, delete)
	RoleOwner UserRole = "owner"
)

// User is the user model
type User struct {
	bun.BaseModel      `bun:"table:users,alias:usr"`
	ID                 uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role               UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName          string     `bun:"first_name" json:"first_name,omitempty"`
	LastName           string     `bun:"last_name" json:"last_name,omitempty"`
	Username           string     `bun:"username,notnull,unique" json:"username,omitempty"`
	ProfilePicture     string     `bun:"profile_picture" json:"profile_picture,omitempty"`
	Email              string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash       string     `bun:"password_hash" json:"-"`
	ActivationToken    *string    `bun:"activation_token,nullzero" json:"-"`
	PasswordResetToken *string    `bun:"password_reset_token,nullzero" json:"-"`
	Inactive           bool       `bun:"is_inactive,notnull" json:"is_inactive,omitempty"`
	LoginAttempts      int        `bun:"login_attempts" json:"login_attempts,omitempty"`
	LoginAttemptAt     *time.Time `bun:"login_attempt_at" json:"login_attempt_at,omitempty"`
	LoggedInAt         *time.Time `bun:"loggedin_at" json:"loggedin_at,omitempty"`
	CreatedAt          *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt          *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt          *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Activated reports whether the account went through email activation.
// Invariant: an activated user never carries an activation token.
func (u *User) Activated() bool {
	return !u.Inactive
}

// Token is a database backed session credential. The string itself is the
// bearer secret; LastUsedAt drives the sliding expiration window.
type Token struct {
	bun.BaseModel `bun:"table:user_tokens,alias:tok"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	LastUsedAt    time.Time  `bun:"last_used_at,notnull" json:"last_used_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// ExpiredAt reports whether the token fell outside the sliding window at the
// given instant. An expired row is dead even if the sweeper has not removed
// it yet.
func (t *Token) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(t.LastUsedAt) > ttl
}
