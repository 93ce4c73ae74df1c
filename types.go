package auth

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the attributes of an authenticated principal
type Identity interface {
	ID() string
	Email() string
	Role() string
}

// TokenService creates and validates the two token kinds: self-contained
// signed access tokens and opaque refresh tokens.
type TokenService interface {
	Generate(identity Identity) (string, error)
	SignClaims(claims *JWTClaims) (string, error)
	Validate(tokenString string) (AuthClaims, error)
	IssueRefreshToken() (string, error)
}

// TokenValidator validates raw access tokens. The gateway filter only needs
// this subset of TokenService.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// PasswordAuthenticator authenticates passwords
type PasswordAuthenticator interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

// SessionStore persists user identities and refresh-token records.
// ConsumeRefreshToken is the rotation primitive: it atomically revokes a
// valid record and returns it, so two concurrent refresh calls presenting
// the same token can never both succeed. RotateRefreshToken and
// CreateUserWithRefreshToken are the multi-write operations: each commits
// all of its writes or none of them, so a failed rotation never leaves the
// presented token revoked without a replacement, and a failed registration
// never leaves a user row without its session record.
type SessionStore interface {
	CreateUser(ctx context.Context, user *User) (*User, error)
	CreateUserWithRefreshToken(ctx context.Context, user *User, record *RefreshToken) (*User, error)
	SaveUser(ctx context.Context, user *User) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	FindUserByVerificationToken(ctx context.Context, token string) (*User, error)
	FindUserByResetToken(ctx context.Context, token string) (*User, error)

	SaveRefreshToken(ctx context.Context, record *RefreshToken) (*RefreshToken, error)
	FindRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	ConsumeRefreshToken(ctx context.Context, token string) (*RefreshToken, error)
	RotateRefreshToken(ctx context.Context, presented string, replacement *RefreshToken) (*RefreshToken, error)
	RevokeAllRefreshTokens(ctx context.Context, userID string) error
	DeleteExpiredRefreshTokens(ctx context.Context) (int, error)
}

// EventPublisher delivers domain events to the notification collaborator.
// Publishing is best effort: failures are logged by the caller, never
// propagated, never retried here.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event UserRegisteredEvent) error
	PublishPasswordReset(ctx context.Context, event PasswordResetEvent) error
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenExpiration() time.Duration
	GetRefreshTokenExpiration() time.Duration
	GetResetTokenExpiration() time.Duration
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
