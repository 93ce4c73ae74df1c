package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// UserRole is the user's role
type UserRole = string

const (
	// RoleUser is a regular portal user with standard access
	RoleUser UserRole = "USER"
	// RoleAdmin is a system administrator with full access
	RoleAdmin UserRole = "ADMIN"
)

// User is the identity model
type User struct {
	bun.BaseModel     `bun:"table:users,alias:usr"`
	ID                uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Role              UserRole   `bun:"user_role,notnull" json:"user_role,omitempty"`
	FirstName         string     `bun:"first_name,notnull" json:"first_name,omitempty"`
	LastName          string     `bun:"last_name,notnull" json:"last_name,omitempty"`
	Email             string     `bun:"email,notnull,unique" json:"email,omitempty"`
	Phone             string     `bun:"phone_number" json:"phone_number,omitempty"`
	PasswordHash      string     `bun:"password_hash" json:"-"`
	EmailVerified     bool       `bun:"is_email_verified" json:"is_email_verified,omitempty"`
	Active            bool       `bun:"is_active" json:"is_active,omitempty"`
	VerificationToken string     `bun:"email_verification_token,nullzero" json:"-"`
	ResetToken        string     `bun:"password_reset_token,nullzero" json:"-"`
	ResetTokenExpiry  *time.Time `bun:"password_reset_token_expiry,nullzero" json:"-"`
	CreatedAt         *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt         *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// RefreshToken is a long-lived, single-use session record. Once Revoked is
// set no transition ever clears it; rotation replaces the record instead.
type RefreshToken struct {
	bun.BaseModel `bun:"table:refresh_tokens,alias:rft"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string     `bun:"token,notnull,unique" json:"token,omitempty"`
	UserID        uuid.UUID  `bun:"user_id,notnull,type:uuid" json:"user_id,omitempty"`
	User          *User      `bun:"rel:belongs-to,join:user_id=id" json:"user,omitempty"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Revoked       bool       `bun:"is_revoked" json:"is_revoked,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsValid reports whether the record can still be exchanged.
func (r *RefreshToken) IsValid(now time.Time) bool {
	return !r.Revoked && now.Before(r.ExpiresAt)
}

// UserInfo is the public projection returned by auth responses. It never
// carries the password hash or any internal token.
type UserInfo struct {
	ID        string   `json:"id"`
	Email     string   `json:"email"`
	FirstName string   `json:"first_name"`
	LastName  string   `json:"last_name"`
	Role      UserRole `json:"role"`
}

// Info builds the public projection for a user.
func (u *User) Info() *UserInfo {
	return &UserInfo{
		ID:        u.ID.String(),
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
	}
}

// TokenPair is the issued credential set for one login session.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	User         *UserInfo `json:"user,omitempty"`
}

// NormalizeEmail lowercases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
