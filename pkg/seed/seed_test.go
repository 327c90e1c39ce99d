package seed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

func TestRunSeedsEmptyDatabase(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	require.NoError(t, Run(ctx, st, nil))

	count, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	// Each seed user has a linked ladder profile at the scripted rating.
	for username, elo := range map[string]int{
		"mew2king": 2000,
		"mang0":    2100,
		"zain":     2200,
		"ibdw":     1200,
	} {
		player, err := st.PlayerByUsername(ctx, username)
		require.NoError(t, err, username)
		assert.Equal(t, elo, player.Elo, username)
		assert.Equal(t, elo, player.PeakElo, username)
		require.NotNil(t, player.UserID, username)
	}

	// The shared password is stored hashed and verifies.
	user, err := st.UserByUsername(ctx, "mang0")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("password123")))
}

func TestRunSkipsPopulatedDatabase(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	require.NoError(t, st.CreateUser(ctx, &store.User{
		ID: "existing-user", Username: "someone", PasswordHash: "irrelevant",
	}))

	require.NoError(t, Run(ctx, st, nil))

	count, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "a populated database must not be reseeded")
}

func TestRunIsIdempotent(t *testing.T) {
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	ctx := context.Background()

	require.NoError(t, Run(ctx, st, nil))
	require.NoError(t, Run(ctx, st, nil))

	count, err := st.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
