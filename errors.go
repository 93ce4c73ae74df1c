package auth

import (
	"github.com/goliatone/go-errors"
)

// Machine-readable text codes surfaced to API clients.
const (
	TextCodeEmailTaken          = "EMAIL_TAKEN"
	TextCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	TextCodeAccountDeactivated  = "ACCOUNT_DEACTIVATED"
	TextCodeInvalidRefreshToken = "INVALID_REFRESH_TOKEN"
	TextCodeInvalidToken        = "INVALID_TOKEN"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
)

// ErrEmailRegistered is returned when registration finds the email taken.
var ErrEmailRegistered = errors.New("email already registered", errors.CategoryConflict).
	WithCode(errors.CodeConflict).
	WithTextCode(TextCodeEmailTaken)

// ErrInvalidCredentials covers both unknown email and password mismatch so
// the response cannot be used to enumerate accounts.
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidCredentials)

// ErrAccountDeactivated is returned when credentials match a disabled account.
var ErrAccountDeactivated = errors.New("account is deactivated", errors.CategoryAuthz).
	WithCode(errors.CodeForbidden).
	WithTextCode(TextCodeAccountDeactivated)

// ErrInvalidRefreshToken covers missing, revoked, and expired refresh tokens
// uniformly. The sub-cause is logged, never returned.
var ErrInvalidRefreshToken = errors.New("invalid refresh token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidRefreshToken)

// ErrInvalidVerificationToken is returned by VerifyEmail for unknown tokens.
var ErrInvalidVerificationToken = errors.New("invalid verification token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

// ErrInvalidResetToken is returned by ResetPassword for unknown tokens.
var ErrInvalidResetToken = errors.New("invalid reset token", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

// ErrResetTokenExpired is returned when the reset token is past its window.
var ErrResetTokenExpired = errors.New("reset token has expired", errors.CategoryValidation).
	WithCode(errors.CodeBadRequest).
	WithTextCode(TextCodeResetTokenExpired)

// ErrTokenExpired marks access tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeTokenExpired)

// ErrTokenMalformed covers bad signatures and undecodable structures. It is
// deliberately indistinguishable from other validation failures at the edge.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized).
	WithTextCode(TextCodeInvalidToken)

// ErrNoEmptyString rejects empty passwords before hashing.
var ErrNoEmptyString = errors.New("value must not be empty", errors.CategoryBadInput)

// ErrMismatchedHashAndPassword is the internal bcrypt mismatch marker.
var ErrMismatchedHashAndPassword = errors.New("mismatched password", errors.CategoryAuth).
	WithCode(errors.CodeUnauthorized)

// TextCode returns the rich error text code when present, "" otherwise.
func TextCode(err error) string {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode
	}
	return ""
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return TextCode(err) == TextCodeTokenExpired
}

// IsAuthError reports whether the error belongs to the auth category.
func IsAuthError(err error) bool {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.Category == errors.CategoryAuth
	}
	return false
}
