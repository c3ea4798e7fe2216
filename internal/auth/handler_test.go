package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/Kyz7/authserver/internal/auth"
	"github.com/Kyz7/authserver/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)

	t.Run("Success - Register new user", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "john@example.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/register", body, "")
		require.NoError(t, err)
		assert.Equal(t, 201, resp.Code)

		access := testutils.ResponseCookie(resp, auth.AccessCookie)
		refresh := testutils.ResponseCookie(resp, auth.RefreshCookie)
		require.NotNil(t, access)
		require.NotNil(t, refresh)
		assert.True(t, access.HttpOnly)
		assert.NotEmpty(t, access.Value)
		assert.NotEqual(t, access.Value, refresh.Value)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.True(t, result.Success)
		assert.Equal(t, "Registration successful", result.Message)

		data := result.Data.(map[string]interface{})
		assert.NotZero(t, data["id"])
		assert.Nil(t, data["password"])
	})

	t.Run("Error - Missing required fields", func(t *testing.T) {
		body := map[string]interface{}{
			"email": "test@example.com",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/register", body, "")
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Code)

		testutils.AssertError(t, resp, "VALIDATION_ERROR")
	})

	t.Run("Error - Password too long", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "long@example.com",
			"password": strings.Repeat("p", 80),
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/register", body, "")
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		require.NotNil(t, result.Error)
		assert.Equal(t, "VALIDATION_ERROR", result.Error.Code)
		assert.Contains(t, result.Error.Details, "password")
	})

	t.Run("Error - Duplicate email", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "john@example.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/register", body, "")
		require.NoError(t, err)
		assert.Equal(t, 409, resp.Code)

		testutils.AssertError(t, resp, "CONFLICT")
	})
}

func TestLoginHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)
	u := testutils.CreateTestUser(t, env.DB, "test@example.com", "password123")

	t.Run("Success - Valid credentials", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "test@example.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/login", body, "")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		assert.NotNil(t, testutils.ResponseCookie(resp, auth.AccessCookie))
		assert.NotNil(t, testutils.ResponseCookie(resp, auth.RefreshCookie))

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		require.NotNil(t, result.Data, "Expected data in response but got nil")
		data := result.Data.(map[string]interface{})
		assert.Equal(t, float64(u.ID), data["id"])
		assert.Equal(t, float64(900), data["expires_in"])
	})

	t.Run("Error - Invalid credentials", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "test@example.com",
			"password": "wrongpassword",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/login", body, "")
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		assert.Nil(t, testutils.ResponseCookie(resp, auth.AccessCookie))

		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Unknown email looks the same", func(t *testing.T) {
		body := map[string]interface{}{
			"email":    "nobody@example.com",
			"password": "password123",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/login", body, "")
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Code)

		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		require.NotNil(t, result.Error)
		assert.Equal(t, "Invalid credentials", result.Error.Message)
	})

	t.Run("Error - Missing fields", func(t *testing.T) {
		body := map[string]interface{}{
			"email": "test@example.com",
		}

		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/login", body, "")
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})
}

func TestRefreshHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)

	resp, err := testutils.MakeRequest(env.App, "POST", "/auth/register", map[string]interface{}{
		"email":    "a@x.com",
		"password": "pw1",
	}, "")
	require.NoError(t, err)
	refresh := testutils.ResponseCookie(resp, auth.RefreshCookie)
	require.NotNil(t, refresh)

	t.Run("Success - New access cookie", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/refresh", nil, "",
			&http.Cookie{Name: auth.RefreshCookie, Value: refresh.Value})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		assert.NotNil(t, testutils.ResponseCookie(resp, auth.AccessCookie))
		assert.Nil(t, testutils.ResponseCookie(resp, auth.RefreshCookie), "refresh token is not rotated")
	})

	t.Run("Error - Missing refresh cookie", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/refresh", nil, "")
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Garbage refresh cookie", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/refresh", nil, "",
			&http.Cookie{Name: auth.RefreshCookie, Value: "not-a-token"})
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
	})
}

func TestLogoutHandler(t *testing.T) {
	env := testutils.SetupTestApp(t)

	resp, err := testutils.MakeRequest(env.App, "POST", "/auth/logout", nil, "")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Code)

	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie} {
		c := testutils.ResponseCookie(resp, name)
		if assert.NotNil(t, c, name) {
			assert.Empty(t, c.Value)
			assert.True(t, c.Expires.Before(time.Now()), "cookie %s must be expired", name)
		}
	}
}

func TestPasswordResetHandlers(t *testing.T) {
	env := testutils.SetupTestApp(t)
	testutils.CreateTestUser(t, env.DB, "a@x.com", "pw1")

	t.Run("Success - Forgot password for unknown email", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/forgot-password",
			map[string]interface{}{"email": "ghost@x.com"}, "")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
		assert.Empty(t, env.Mail.Messages())
	})

	resp, err := testutils.MakeRequest(env.App, "POST", "/auth/forgot-password",
		map[string]interface{}{"email": "a@x.com"}, "")
	require.NoError(t, err)
	require.Equal(t, 200, resp.Code)
	email, tok := env.Mail.LastResetLink(t, "a@x.com")

	validateURL := func(email, tok string) string {
		q := url.Values{}
		if email != "" {
			q.Set("email", email)
		}
		if tok != "" {
			q.Set("token", tok)
		}
		return "/auth/reset-password?" + q.Encode()
	}

	t.Run("Error - Validate without params", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", validateURL(email, ""), nil, "")
		require.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		testutils.AssertError(t, resp, "FORBIDDEN")
	})

	t.Run("Success - Validate is repeatable", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			resp, err := testutils.MakeRequest(env.App, "GET", validateURL(email, tok), nil, "")
			require.NoError(t, err)
			assert.Equal(t, 200, resp.Code)

			var result testutils.StandardResponse
			testutils.ParseResponse(t, resp, &result)
			assert.Equal(t, true, result.Data.(map[string]interface{})["valid"])
		}
	})

	t.Run("Error - Reset with missing password", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/reset-password",
			map[string]interface{}{"email": email, "token": tok}, "")
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
	})

	t.Run("Error - Reset with too long password", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/reset-password",
			map[string]interface{}{"email": email, "token": tok, "password": strings.Repeat("p", 80)}, "")
		require.NoError(t, err)
		assert.Equal(t, 400, resp.Code)
		testutils.AssertError(t, resp, "VALIDATION_ERROR")
	})

	t.Run("Success - Reset then login with new password", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/reset-password",
			map[string]interface{}{"email": email, "token": tok, "password": "pw2"}, "")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)

		resp, err = testutils.MakeRequest(env.App, "POST", "/auth/login",
			map[string]interface{}{"email": "a@x.com", "password": "pw2"}, "")
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - Token cannot be reused", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "POST", "/auth/reset-password",
			map[string]interface{}{"email": email, "token": tok, "password": "pw3"}, "")
		require.NoError(t, err)
		assert.Equal(t, 403, resp.Code)
		testutils.AssertError(t, resp, "FORBIDDEN")

		resp, err = testutils.MakeRequest(env.App, "GET", validateURL(email, tok), nil, "")
		require.NoError(t, err)
		var result testutils.StandardResponse
		testutils.ParseResponse(t, resp, &result)
		assert.Equal(t, false, result.Data.(map[string]interface{})["valid"])
	})
}

func TestJWTProtected(t *testing.T) {
	env := testutils.SetupTestApp(t)

	resp, err := testutils.MakeRequest(env.App, "POST", "/auth/register", map[string]interface{}{
		"email":    "a@x.com",
		"password": "pw1",
	}, "")
	require.NoError(t, err)
	access := testutils.ResponseCookie(resp, auth.AccessCookie)
	require.NotNil(t, access)

	t.Run("Success - Cookie", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/users/me", nil, "",
			&http.Cookie{Name: auth.AccessCookie, Value: access.Value})
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Success - Bearer header", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/users/me", nil, access.Value)
		require.NoError(t, err)
		assert.Equal(t, 200, resp.Code)
	})

	t.Run("Error - No token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/users/me", nil, "")
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "UNAUTHORIZED")
	})

	t.Run("Error - Invalid token", func(t *testing.T) {
		resp, err := testutils.MakeRequest(env.App, "GET", "/users/me", nil, "invalid_token")
		require.NoError(t, err)
		assert.Equal(t, 401, resp.Code)
		testutils.AssertError(t, resp, "INVALID_TOKEN")
	})

	t.Run("Error - Malformed authorization header", func(t *testing.T) {
		for _, header := range []string{"Token " + access.Value, "Bearer", "Bearer " + access.Value + " extra"} {
			req := httptest.NewRequest("GET", "/users/me", nil)
			req.Header.Set("Authorization", header)
			resp, err := env.App.Test(req, -1)
			require.NoError(t, err)

			var body testutils.StandardResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			resp.Body.Close()
			assert.Equal(t, 401, resp.StatusCode, header)
			if assert.NotNil(t, body.Error, header) {
				assert.Equal(t, "INVALID_TOKEN_FORMAT", body.Error.Code, header)
			}
		}
	})
}
