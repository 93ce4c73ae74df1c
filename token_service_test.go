package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/thebuilders/go-portal-auth"
)

type testIdentity struct {
	id    string
	email string
	role  string
}

func (t testIdentity) ID() string    { return t.id }
func (t testIdentity) Email() string { return t.email }
func (t testIdentity) Role() string  { return t.role }

func newTestTokenService() auth.TokenService {
	return auth.NewTokenService(
		[]byte("test-signing-key"),
		15*time.Minute,
		"test-issuer",
		[]string{"test:audience"},
		nil,
	)
}

func TestTokenServiceGenerateAndValidate(t *testing.T) {
	ts := newTestTokenService()

	identity := testIdentity{
		id:    "7f1a1c7e-8c3c-4e8e-9f5a-2f2f3a4b5c6d",
		email: "claims@example.com",
		role:  auth.RoleUser,
	}

	tokenString, err := ts.Generate(identity)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := ts.Validate(tokenString)
	require.NoError(t, err)

	assert.Equal(t, identity.id, claims.Subject())
	assert.Equal(t, identity.id, claims.UserID())
	assert.Equal(t, auth.RoleUser, claims.Role())
	assert.True(t, claims.HasRole(auth.RoleUser))
	assert.True(t, claims.IsAtLeast(auth.RoleUser))
	assert.False(t, claims.IsAtLeast(auth.RoleAdmin))
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), claims.Expires(), 5*time.Second)
}

func TestTokenServiceValidateFailures(t *testing.T) {
	ts := newTestTokenService()

	t.Run("expired token", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		claims := &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "user-1",
				Audience:  jwt.ClaimStrings{"test:audience"},
				IssuedAt:  jwt.NewNumericDate(past.Add(-time.Minute)),
				ExpiresAt: jwt.NewNumericDate(past),
			},
			UID:      "user-1",
			UserRole: auth.RoleUser,
		}

		tokenString, err := ts.SignClaims(claims)
		require.NoError(t, err)

		_, err = ts.Validate(tokenString)
		assert.ErrorIs(t, err, auth.ErrTokenExpired)
		assert.True(t, auth.IsTokenExpiredError(err))
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := auth.NewTokenService([]byte("different-key"), time.Hour, "test-issuer", []string{"test:audience"}, nil)
		tokenString, err := other.Generate(testIdentity{id: "user-1", role: auth.RoleUser})
		require.NoError(t, err)

		_, err = ts.Validate(tokenString)
		require.Error(t, err)
		assert.Equal(t, auth.TextCodeInvalidToken, auth.TextCode(err))
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := auth.NewTokenService([]byte("test-signing-key"), time.Hour, "someone-else", []string{"test:audience"}, nil)
		tokenString, err := other.Generate(testIdentity{id: "user-1", role: auth.RoleUser})
		require.NoError(t, err)

		_, err = ts.Validate(tokenString)
		assert.Error(t, err)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := ts.Validate("not-a-jwt")
		require.Error(t, err)
		assert.Equal(t, auth.TextCodeInvalidToken, auth.TextCode(err))
	})

	t.Run("unsigned token is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &auth.JWTClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Subject:   "user-1",
				Audience:  jwt.ClaimStrings{"test:audience"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = ts.Validate(tokenString)
		assert.Error(t, err)
	})
}

func TestIssueRefreshToken(t *testing.T) {
	ts := newTestTokenService()

	seen := map[string]bool{}
	for i := 0; i < 32; i++ {
		token, err := ts.IssueRefreshToken()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(token), 43)
		assert.False(t, seen[token], "refresh tokens must not repeat")
		seen[token] = true
	}
}
