package ratelimitware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebuilders/go-portal-auth/middleware/authware"
	"github.com/thebuilders/go-portal-auth/middleware/ratelimitware"
	"github.com/thebuilders/go-portal-auth/ratelimit"
)

func newTestApp(cfg ratelimitware.Config) *fiber.App {
	app := fiber.New()
	app.Use(ratelimitware.New(cfg))
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRateLimitMiddleware(t *testing.T) {
	current := time.Unix(1_700_000_000, 0)
	limiter := ratelimit.New(ratelimit.StrictConfig(), ratelimit.WithClock(func() time.Time {
		return current
	}))

	app := newTestApp(ratelimitware.Config{Limiter: limiter})

	t.Run("burst is admitted then throttled", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			assert.Equal(t, http.StatusOK, status(t, app, req), "request %d", i+1)
		}

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusTooManyRequests, status(t, app, req))
	})

	t.Run("refill admits more traffic", func(t *testing.T) {
		current = current.Add(time.Second)

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			assert.Equal(t, http.StatusOK, status(t, app, req), "request %d", i+1)
		}

		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		assert.Equal(t, http.StatusTooManyRequests, status(t, app, req))
	})
}

func TestUserKeyResolverPrefersIdentityHeader(t *testing.T) {
	limiter := ratelimit.New(ratelimit.StrictConfig())
	app := newTestApp(ratelimitware.Config{Limiter: limiter})

	// exhaust one identity's bucket
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set(authware.HeaderUserID, "user-a")
		require.Equal(t, http.StatusOK, status(t, app, req))
	}

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(authware.HeaderUserID, "user-a")
	assert.Equal(t, http.StatusTooManyRequests, status(t, app, req))

	// same source address, different identity: separate bucket
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(authware.HeaderUserID, "user-b")
	assert.Equal(t, http.StatusOK, status(t, app, req))
}
