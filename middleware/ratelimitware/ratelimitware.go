// Package ratelimitware turns a ratelimit.Limiter into a gateway pipeline
// stage. It runs after the authentication filter so buckets key off the
// resolved identity when one exists.
package ratelimitware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/thebuilders/go-portal-auth/middleware/authware"
	"github.com/thebuilders/go-portal-auth/ratelimit"
)

// KeyResolver maps a request to its bucket key.
type KeyResolver func(c *fiber.Ctx) string

// UserKeyResolver prefers the trusted identity header, falls back to the
// client address, and resolves unattributable traffic to a shared
// "unknown" bucket.
func UserKeyResolver(c *fiber.Ctx) string {
	if userID := c.Get(authware.HeaderUserID); userID != "" {
		return userID
	}
	return IPKeyResolver(c)
}

// IPKeyResolver keys buckets by client network address.
func IPKeyResolver(c *fiber.Ctx) string {
	if ip := c.IP(); ip != "" {
		return ip
	}
	return "unknown"
}

// Logger is the minimal logging surface the middleware needs.
type Logger interface {
	Info(format string, args ...any)
}

type Config struct {
	// Limiter is required.
	Limiter *ratelimit.Limiter
	// KeyResolver defaults to UserKeyResolver.
	KeyResolver KeyResolver
	Logger      Logger
}

// New builds the rate-limit middleware. Denied requests get 429.
func New(cfg Config) fiber.Handler {
	if cfg.Limiter == nil {
		panic("AUTH: ratelimitware configuration: Limiter is required.")
	}
	if cfg.KeyResolver == nil {
		cfg.KeyResolver = UserKeyResolver
	}

	return func(c *fiber.Ctx) error {
		key := cfg.KeyResolver(c)
		if !cfg.Limiter.Allow(key) {
			if cfg.Logger != nil {
				cfg.Logger.Info("rate limit exceeded for key %s on %s", key, c.Path())
			}
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "too many requests",
			})
		}
		return c.Next()
	}
}
