// Package gateway assembles the edge request pipeline: the authentication
// filter runs first, then an identity-keyed rate limiter with a strict tier
// bound to the auth endpoints, then the auth routes themselves.
package gateway

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	auth "github.com/thebuilders/go-portal-auth"
	"github.com/thebuilders/go-portal-auth/middleware/authware"
	"github.com/thebuilders/go-portal-auth/middleware/ratelimitware"
	"github.com/thebuilders/go-portal-auth/ratelimit"
)

// AuthPathPrefix is the mount point for the auth endpoints and the prefix
// the strict rate-limit tier is bound to.
const AuthPathPrefix = "/api/v1/auth"

// DefaultPublicPrefixes lists the paths that pass the authentication filter
// without a token. Everything under the auth prefix is public by design:
// those endpoints exist to mint credentials, not to require them.
func DefaultPublicPrefixes() []string {
	return []string{
		AuthPathPrefix,
		"/health",
		"/swagger-ui",
		"/v3/api-docs",
	}
}

type Config struct {
	// Auther is required. Its TokenService backs the edge filter so the
	// gateway validates exactly what the orchestrator issues.
	Auther *auth.Auther
	// PublicPrefixes defaults to DefaultPublicPrefixes().
	PublicPrefixes []string
	// StrictLimiter guards the auth endpoints. Defaults to
	// ratelimit.StrictConfig (5 req/s, burst 10).
	StrictLimiter *ratelimit.Limiter
	// DefaultLimiter guards everything else. Defaults to
	// ratelimit.DefaultConfig (20 req/s, burst 40).
	DefaultLimiter *ratelimit.Limiter
	// OnReject is forwarded to the authentication filter.
	OnReject func(c *fiber.Ctx, reason string)
	Logger   auth.Logger
}

// validatorAdapter bridges the auth package's claims type to the filter's
// local interface.
type validatorAdapter struct {
	tokens auth.TokenValidator
}

func (v validatorAdapter) Validate(tokenString string) (authware.AuthClaims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// New builds the gateway fiber app. Middleware order is load bearing: the
// filter resolves identity before the limiter keys buckets off of it.
func New(cfg Config) *fiber.App {
	if cfg.Auther == nil {
		panic("AUTH: gateway configuration: Auther is required.")
	}

	if cfg.PublicPrefixes == nil {
		cfg.PublicPrefixes = DefaultPublicPrefixes()
	}
	if cfg.StrictLimiter == nil {
		cfg.StrictLimiter = ratelimit.New(ratelimit.StrictConfig())
	}
	if cfg.DefaultLimiter == nil {
		cfg.DefaultLimiter = ratelimit.New(ratelimit.DefaultConfig())
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(authware.New(authware.Config{
		PublicPrefixes: cfg.PublicPrefixes,
		Validator:      validatorAdapter{tokens: cfg.Auther.TokenService()},
		OnReject:       cfg.OnReject,
		Logger:         cfg.Logger,
	}))

	strict := ratelimitware.New(ratelimitware.Config{
		Limiter: cfg.StrictLimiter,
		Logger:  cfg.Logger,
	})
	lenient := ratelimitware.New(ratelimitware.Config{
		Limiter: cfg.DefaultLimiter,
		Logger:  cfg.Logger,
	})

	app.Use(func(c *fiber.Ctx) error {
		if strings.HasPrefix(c.Path(), AuthPathPrefix) {
			return strict(c)
		}
		return lenient(c)
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "UP"})
	})

	controllerOpts := []auth.AuthControllerOption{}
	if cfg.Logger != nil {
		controllerOpts = append(controllerOpts, auth.WithControllerLogger(cfg.Logger))
	}
	controller := auth.NewAuthController(cfg.Auther, controllerOpts...)
	auth.RegisterAuthRoutes(app.Group(AuthPathPrefix), controller)

	return app
}
