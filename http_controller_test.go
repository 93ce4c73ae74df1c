package auth_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/thebuilders/go-portal-auth"
)

func newControllerApp(t *testing.T) (*fiber.App, *auth.MemoryStore) {
	t.Helper()

	store := auth.NewMemoryStore()
	auther := newTestAuther(store)

	app := fiber.New()
	controller := auth.NewAuthController(auther)
	auth.RegisterAuthRoutes(app.Group("/api/v1/auth"), controller)

	return app, store
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)

	return execute(t, app, req)
}

func execute(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()

	resp, err := app.Test(req, int(5*time.Second/time.Millisecond))
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func registerPayload(email string) map[string]any {
	return map[string]any{
		"first_name": "Api",
		"last_name":  "User",
		"email":      email,
		"password":   "password123",
	}
}

func TestRegisterEndpoint(t *testing.T) {
	t.Run("valid payload returns 201 with tokens", func(t *testing.T) {
		app, _ := newControllerApp(t)

		resp, body := postJSON(t, app, "/api/v1/auth/register", registerPayload("api@example.com"))

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, true, body["success"])

		data, ok := body["data"].(map[string]any)
		require.True(t, ok)
		assert.NotEmpty(t, data["access_token"])
		assert.NotEmpty(t, data["refresh_token"])
		assert.Equal(t, "Bearer", data["token_type"])
	})

	t.Run("password hash never leaks in the response", func(t *testing.T) {
		app, _ := newControllerApp(t)

		resp, body := postJSON(t, app, "/api/v1/auth/register", registerPayload("leak@example.com"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		data := body["data"].(map[string]any)
		user, ok := data["user"].(map[string]any)
		require.True(t, ok)
		_, leaked := user["password_hash"]
		assert.False(t, leaked)
	})

	t.Run("short password is a validation error", func(t *testing.T) {
		app, _ := newControllerApp(t)

		payload := registerPayload("short@example.com")
		payload["password"] = "short"

		resp, body := postJSON(t, app, "/api/v1/auth/register", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, false, body["success"])
	})

	t.Run("malformed email is a validation error", func(t *testing.T) {
		app, _ := newControllerApp(t)

		payload := registerPayload("not-an-email")
		resp, _ := postJSON(t, app, "/api/v1/auth/register", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("invalid phone is a validation error", func(t *testing.T) {
		app, _ := newControllerApp(t)

		payload := registerPayload("phone@example.com")
		payload["phone"] = "not-a-phone"
		resp, _ := postJSON(t, app, "/api/v1/auth/register", payload)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("duplicate email returns 409", func(t *testing.T) {
		app, _ := newControllerApp(t)

		resp, _ := postJSON(t, app, "/api/v1/auth/register", registerPayload("twice@example.com"))
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		resp, body := postJSON(t, app, "/api/v1/auth/register", registerPayload("twice@example.com"))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, false, body["success"])
	})

	t.Run("requested admin role is ignored", func(t *testing.T) {
		app, _ := newControllerApp(t)

		payload := registerPayload("sneaky@example.com")
		payload["role"] = "ADMIN"

		resp, body := postJSON(t, app, "/api/v1/auth/register", payload)
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		data := body["data"].(map[string]any)
		user := data["user"].(map[string]any)
		assert.Equal(t, "USER", user["role"])
	})
}

func TestLoginEndpoint(t *testing.T) {
	app, store := newControllerApp(t)
	resp, _ := postJSON(t, app, "/api/v1/auth/register", registerPayload("web@example.com"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("valid credentials return 200", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/login", map[string]any{
			"email":    "web@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
	})

	t.Run("wrong password returns 401 with the uniform message", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/login", map[string]any{
			"email":    "web@example.com",
			"password": "wrong-password",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid email or password", body["message"])
	})

	t.Run("unknown email returns the identical response", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/login", map[string]any{
			"email":    "ghost@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "invalid email or password", body["message"])
	})

	t.Run("deactivated account returns 403", func(t *testing.T) {
		user, err := store.FindUserByEmail(context.Background(), "web@example.com")
		require.NoError(t, err)
		user.Active = false
		_, err = store.SaveUser(context.Background(), user)
		require.NoError(t, err)

		resp, _ := postJSON(t, app, "/api/v1/auth/login", map[string]any{
			"email":    "web@example.com",
			"password": "password123",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestRefreshAndLogoutEndpoints(t *testing.T) {
	app, _ := newControllerApp(t)
	_, body := postJSON(t, app, "/api/v1/auth/register", registerPayload("session@example.com"))
	data := body["data"].(map[string]any)
	refreshToken := data["refresh_token"].(string)

	t.Run("refresh rotates the pair", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/refresh", map[string]any{
			"refresh_token": refreshToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		next := body["data"].(map[string]any)
		assert.NotEqual(t, refreshToken, next["refresh_token"])

		// the consumed token is now unusable
		resp, _ = postJSON(t, app, "/api/v1/auth/refresh", map[string]any{
			"refresh_token": refreshToken,
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		refreshToken = next["refresh_token"].(string)
	})

	t.Run("missing refresh token is a validation error", func(t *testing.T) {
		resp, _ := postJSON(t, app, "/api/v1/auth/refresh", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("logout succeeds and repeats succeed", func(t *testing.T) {
		resp, _ := postJSON(t, app, "/api/v1/auth/logout", map[string]any{
			"refresh_token": refreshToken,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = postJSON(t, app, "/api/v1/auth/logout", map[string]any{
			"refresh_token": refreshToken,
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestVerifyEmailEndpoint(t *testing.T) {
	app, store := newControllerApp(t)
	_, _ = postJSON(t, app, "/api/v1/auth/register", registerPayload("inbox@example.com"))

	user, err := store.FindUserByEmail(context.Background(), "inbox@example.com")
	require.NoError(t, err)

	t.Run("valid token verifies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token="+user.VerificationToken, nil)
		resp, body := execute(t, app, req)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
	})

	t.Run("missing token is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email", nil)
		resp, _ := execute(t, app, req)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("reused token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email?token="+user.VerificationToken, nil)
		resp, _ := execute(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestPasswordResetEndpoints(t *testing.T) {
	app, store := newControllerApp(t)
	_, _ = postJSON(t, app, "/api/v1/auth/register", registerPayload("recover@example.com"))

	t.Run("forgot password succeeds for unknown emails", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/v1/auth/forgot-password", map[string]any{
			"email": "ghost@example.com",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, true, body["success"])
	})

	t.Run("forgot password succeeds for known emails with the same body", func(t *testing.T) {
		respKnown, bodyKnown := postJSON(t, app, "/api/v1/auth/forgot-password", map[string]any{
			"email": "recover@example.com",
		})
		respUnknown, bodyUnknown := postJSON(t, app, "/api/v1/auth/forgot-password", map[string]any{
			"email": "missing@example.com",
		})

		assert.Equal(t, http.StatusOK, respKnown.StatusCode)
		assert.Equal(t, respKnown.StatusCode, respUnknown.StatusCode)
		assert.Equal(t, bodyKnown["message"], bodyUnknown["message"])
	})

	t.Run("reset password with the stored token", func(t *testing.T) {
		user, err := store.FindUserByEmail(context.Background(), "recover@example.com")
		require.NoError(t, err)
		require.NotEmpty(t, user.ResetToken)

		resp, _ := postJSON(t, app, "/api/v1/auth/reset-password", map[string]any{
			"token":        user.ResetToken,
			"new_password": "renewed-pass-1",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = postJSON(t, app, "/api/v1/auth/login", map[string]any{
			"email":    "recover@example.com",
			"password": "renewed-pass-1",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("reset with an unknown token returns 401", func(t *testing.T) {
		resp, _ := postJSON(t, app, "/api/v1/auth/reset-password", map[string]any{
			"token":        "bogus",
			"new_password": "whatever-pass",
		})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}
