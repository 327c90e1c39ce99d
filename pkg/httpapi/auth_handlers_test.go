package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MattMyers204453/smashrank-api/pkg/auth"
)

func TestRegisterEndpoint(t *testing.T) {
	api := newTestAPI(t)

	t.Run("creates account", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "mang0", "password": "password123",
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var result auth.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "mang0", result.Username)
		assert.NotEmpty(t, result.UserID)
		assert.NotEmpty(t, result.AccessToken)
		assert.NotEmpty(t, result.RefreshToken)
	})

	t.Run("duplicate username", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "mang0", "password": "password456",
		})
		require.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "Username is already taken.", decodeErrorBody(t, rec))
	})

	t.Run("short password", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
			"username": "zain", "password": "12345",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Password must be at least 6 characters.", decodeErrorBody(t, rec))
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := api.doRaw(t, http.MethodPost, "/api/auth/register", "", "{not json")
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body.", decodeErrorBody(t, rec))
	})
}

func TestLoginEndpoint(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "mang0")

	t.Run("correct password", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "mang0", "password": "password123",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var result auth.Result
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, "mang0", result.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
			"username": "mang0", "password": "wrong-password",
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid username or password.", decodeErrorBody(t, rec))
	})
}

func TestRefreshEndpoint(t *testing.T) {
	api := newTestAPI(t)
	creds := api.register(t, "mang0")

	rec := api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": creds.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated auth.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, creds.RefreshToken, rotated.RefreshToken)

	// A spent refresh token cannot be replayed.
	rec = api.do(t, http.MethodPost, "/api/auth/refresh", "", map[string]string{
		"refreshToken": creds.RefreshToken,
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token is expired or revoked.", decodeErrorBody(t, rec))
}

func TestDevLoginEndpoint(t *testing.T) {
	api := newTestAPI(t)

	t.Run("creates player on first sight", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/dev/auth/login?username=hbox", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var player playerDTO
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &player))
		assert.Equal(t, "hbox", player.Username)
		assert.Equal(t, 1200, player.Elo)
		assert.NotZero(t, player.ID)
	})

	t.Run("returns the same player next time", func(t *testing.T) {
		first := api.do(t, http.MethodPost, "/api/dev/auth/login?username=hbox", "", nil)
		second := api.do(t, http.MethodPost, "/api/dev/auth/login?username=hbox", "", nil)
		require.Equal(t, http.StatusOK, second.Code)

		var a, b playerDTO
		require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
		require.NoError(t, json.Unmarshal(second.Body.Bytes(), &b))
		assert.Equal(t, a.ID, b.ID)
	})

	t.Run("missing username", func(t *testing.T) {
		rec := api.do(t, http.MethodPost, "/api/dev/auth/login", "", nil)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
