package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	return newTestServiceTTL(t, time.Hour)
}

func newTestServiceTTL(t *testing.T, accessTTL time.Duration) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	svc, err := NewService(st, Config{
		Secret:          "test-signing-secret",
		AccessTokenTTL:  accessTTL,
		RefreshTokenTTL: 24 * time.Hour,
		InitialElo:      1200,
	}, nil)
	require.NoError(t, err)
	return svc, st
}

func TestNewServiceRequiresSecret(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	_, err = NewService(st, Config{
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: time.Hour,
		InitialElo:      1200,
	}, nil)
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantMsg  string
	}{
		{"blank username", "   ", "password123", "Username is required."},
		{"short password", "mang0", "12345", "Password must be at least 6 characters."},
		{"long username", "this_username_is_way_too_long", "password123", "Username must be 20 characters or fewer."},
		{"illegal characters", "mang0!", "password123", "Username can only contain letters, numbers, and underscores."},
		{"spaces inside", "man g0", "password123", "Username can only contain letters, numbers, and underscores."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.username, tt.password)
			require.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestRegisterCreatesAccountAndProfile(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, "mang0", "password123")
	require.NoError(t, err)
	assert.Equal(t, "mang0", result.Username)
	assert.NotEmpty(t, result.UserID)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)

	// The password is stored hashed, never verbatim.
	user, err := st.UserByUsername(ctx, "mang0")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", user.PasswordHash)

	// Registration also opens the ladder profile.
	player, err := st.PlayerByUsername(ctx, "mang0")
	require.NoError(t, err)
	assert.Equal(t, 1200, player.Elo)
	assert.Equal(t, 1200, player.PeakElo)
	require.NotNil(t, player.UserID)
	assert.Equal(t, result.UserID, *player.UserID)
}

func TestRegisterRejectsTakenUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "mang0", "password123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "mang0", "different456")
	require.ErrorIs(t, err, ErrUsernameTaken)
	assert.Equal(t, "Username is already taken.", err.Error())
}

func TestLogin(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "mang0", "password123")
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		result, err := svc.Login(ctx, "mang0", "password123")
		require.NoError(t, err)
		assert.Equal(t, registered.UserID, result.UserID)
		assert.NotEmpty(t, result.AccessToken)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "mang0", "wrong-password")
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, "Invalid username or password.", err.Error())
	})

	t.Run("unknown user reads the same", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody", "password123")
		require.ErrorIs(t, err, ErrUnauthorized)
		assert.Equal(t, "Invalid username or password.", err.Error())
	})
}

func TestRefreshRotatesTokens(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, "mang0", "password123")
	require.NoError(t, err)

	second, err := svc.Refresh(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, first.UserID, second.UserID)
	assert.NotEqual(t, first.RefreshToken, second.RefreshToken)

	// The spent token is revoked; replaying it fails.
	_, err = svc.Refresh(ctx, first.RefreshToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Refresh token is expired or revoked.", err.Error())

	// The rotated token still works.
	_, err = svc.Refresh(ctx, second.RefreshToken)
	require.NoError(t, err)
}

func TestRefreshRejectsUnknownToken(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Refresh(context.Background(), "never-issued")
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid refresh token.", err.Error())
}

func TestValidateToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, err := svc.Register(ctx, "mang0", "password123")
	require.NoError(t, err)

	claims, err := svc.ValidateToken(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.UserID, claims.Subject)
	assert.Equal(t, "mang0", claims.Username)

	_, err = svc.ValidateToken(result.AccessToken + "tampered")
	require.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.ValidateToken("not-even-a-jwt")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc, _ := newTestServiceTTL(t, time.Millisecond)
	ctx := context.Background()

	result, err := svc.Register(ctx, "mang0", "password123")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = svc.ValidateToken(result.AccessToken)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, "Invalid or expired token.", err.Error())
}

func TestValidateTokenRejectsUnsignedAlgorithm(t *testing.T) {
	svc, _ := newTestService(t)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Username:         "mang0",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "some-user"},
	})
	tokenString, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = svc.ValidateToken(tokenString)
	require.ErrorIs(t, err, ErrUnauthorized)
}
