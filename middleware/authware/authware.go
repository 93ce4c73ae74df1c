// Package authware is the gateway-edge authentication filter. It runs
// before routing and before the identity-keyed rate limiter: public paths
// pass through, everything else must carry a valid bearer token, and on
// success the filter becomes the sole writer of the trusted identity
// headers.
package authware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Trusted headers injected for downstream services. They must never be
// honored when arriving directly from an external client at another
// ingress.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

// Rejection reasons, short and machine readable.
const (
	ReasonMissingHeader = "missing header"
	ReasonInvalidFormat = "invalid format"
	ReasonInvalidToken  = "invalid or expired token"
)

// AuthClaims mirrors the claims surface of the auth package without
// importing it.
type AuthClaims interface {
	Subject() string
	UserID() string
	Role() string
}

// TokenValidator mirrors TokenService.Validate from the auth package.
type TokenValidator interface {
	Validate(tokenString string) (AuthClaims, error)
}

// Logger is the minimal logging surface the filter needs.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type Config struct {
	// PublicPrefixes pass through unauthenticated (prefix match).
	PublicPrefixes []string
	// Validator is required.
	Validator TokenValidator
	// OnReject is invoked for every rejection with the reason string.
	OnReject func(c *fiber.Ctx, reason string)
	Logger   Logger
}

type noopLogger struct{}

func (noopLogger) Info(format string, args ...any)  {}
func (noopLogger) Error(format string, args ...any) {}

// New builds the filter middleware.
func New(cfg Config) fiber.Handler {
	if cfg.Validator == nil {
		panic("AUTH: authware configuration: Validator is required.")
	}
	if cfg.Logger == nil {
		cfg.Logger = noopLogger{}
	}

	return func(c *fiber.Ctx) error {
		// The filter owns the trusted headers on every path, public ones
		// included. Otherwise a client could spoof identities toward the
		// limiter and downstream services on unauthenticated routes.
		c.Request().Header.Del(HeaderUserID)
		c.Request().Header.Del(HeaderUserRole)

		if isPublicPath(c.Path(), cfg.PublicPrefixes) {
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return reject(c, cfg, ReasonMissingHeader)
		}

		token, ok := bearerToken(header)
		if !ok {
			return reject(c, cfg, ReasonInvalidFormat)
		}

		claims, err := cfg.Validator.Validate(token)
		if err != nil {
			return reject(c, cfg, ReasonInvalidToken)
		}

		c.Request().Header.Set(HeaderUserID, claims.UserID())
		c.Request().Header.Set(HeaderUserRole, claims.Role())

		return c.Next()
	}
}

func isPublicPath(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func bearerToken(header string) (string, bool) {
	// the scheme must be followed by a literal space; "Bearerabc" is a
	// format error, not a bad token
	const scheme = "Bearer "
	if len(header) <= len(scheme) || !strings.EqualFold(header[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(header[len(scheme):])
	if token == "" {
		return "", false
	}
	return token, true
}

func reject(c *fiber.Ctx, cfg Config, reason string) error {
	cfg.Logger.Error("authentication rejected: %s %s: %s", c.Method(), c.Path(), reason)
	if cfg.OnReject != nil {
		cfg.OnReject(c, reason)
	}
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": reason,
	})
}
