package authware_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebuilders/go-portal-auth/middleware/authware"
)

type staticClaims struct {
	subject string
	role    string
}

func (c staticClaims) Subject() string { return c.subject }
func (c staticClaims) UserID() string  { return c.subject }
func (c staticClaims) Role() string    { return c.role }

type staticValidator struct {
	accept map[string]staticClaims
	err    error
}

func (v staticValidator) Validate(tokenString string) (authware.AuthClaims, error) {
	if v.err != nil {
		return nil, v.err
	}
	claims, ok := v.accept[tokenString]
	if !ok {
		return nil, assertableError("unknown token")
	}
	return claims, nil
}

type assertableError string

func (e assertableError) Error() string { return string(e) }

func newTestApp(cfg authware.Config) *fiber.App {
	app := fiber.New()
	app.Use(authware.New(cfg))

	echo := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"user_id":   c.Get(authware.HeaderUserID),
			"user_role": c.Get(authware.HeaderUserRole),
		})
	}
	app.Get("/api/v1/jobs", echo)
	app.Post("/api/v1/auth/login", echo)
	app.Get("/health", echo)

	return app
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	payload := map[string]any{}
	if len(body) > 0 {
		require.NoError(t, json.Unmarshal(body, &payload))
	}
	return resp, payload
}

func validatorWith(token string, claims staticClaims) staticValidator {
	return staticValidator{accept: map[string]staticClaims{token: claims}}
}

func TestFilterPublicPaths(t *testing.T) {
	app := newTestApp(authware.Config{
		PublicPrefixes: []string{"/api/v1/auth", "/health"},
		Validator:      staticValidator{},
	})

	t.Run("public prefix passes without a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		resp, _ := doRequest(t, app, req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("health passes without a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		resp, _ := doRequest(t, app, req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("spoofed identity headers are stripped on public paths", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		req.Header.Set(authware.HeaderUserID, "spoofed")
		req.Header.Set(authware.HeaderUserRole, "ADMIN")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, payload["user_id"])
		assert.Empty(t, payload["user_role"])
	})
}

func TestFilterRejections(t *testing.T) {
	var rejections []string
	app := newTestApp(authware.Config{
		Validator: staticValidator{},
		OnReject: func(c *fiber.Ctx, reason string) {
			rejections = append(rejections, reason)
		},
	})

	t.Run("missing authorization header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, false, payload["success"])
		assert.Equal(t, authware.ReasonMissingHeader, payload["message"])
	})

	t.Run("non bearer scheme", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Basic dXNlcjpwYXNz")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, authware.ReasonInvalidFormat, payload["message"])
	})

	t.Run("bearer scheme without a space", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearerabcdef")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, authware.ReasonInvalidFormat, payload["message"])
	})

	t.Run("bearer with empty token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer ")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, authware.ReasonInvalidFormat, payload["message"])
	})

	t.Run("token that fails validation", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer bad-token")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, authware.ReasonInvalidToken, payload["message"])
	})

	t.Run("every rejection reached the observer", func(t *testing.T) {
		assert.Equal(t, []string{
			authware.ReasonMissingHeader,
			authware.ReasonInvalidFormat,
			authware.ReasonInvalidFormat,
			authware.ReasonInvalidFormat,
			authware.ReasonInvalidToken,
		}, rejections)
	})
}

func TestFilterInjectsTrustedHeaders(t *testing.T) {
	app := newTestApp(authware.Config{
		Validator: validatorWith("good-token", staticClaims{subject: "user-42", role: "USER"}),
	})

	t.Run("valid token injects identity headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "user-42", payload["user_id"])
		assert.Equal(t, "USER", payload["user_role"])
	})

	t.Run("bearer scheme is case insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "bearer good-token")
		resp, _ := doRequest(t, app, req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("client supplied identity headers are overwritten", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer good-token")
		req.Header.Set(authware.HeaderUserID, "spoofed-admin")
		req.Header.Set(authware.HeaderUserRole, "ADMIN")
		resp, payload := doRequest(t, app, req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "user-42", payload["user_id"])
		assert.Equal(t, "USER", payload["user_role"])
	})
}
