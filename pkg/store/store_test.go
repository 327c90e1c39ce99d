package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenAndPing(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestSchemaIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	// Re-applying the schema must not error or clobber data.
	player := &Player{Username: "mango", Elo: 1200, PeakElo: 1200}
	require.NoError(t, s.CreatePlayer(context.Background(), player))

	_, err := s.db.Exec(schemaSQL)
	require.NoError(t, err)

	got, err := s.PlayerByUsername(context.Background(), "mango")
	require.NoError(t, err)
	assert.Equal(t, player.ID, got.ID)
}

func TestTxRollback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	player := &Player{Username: "zain", Elo: 1200, PeakElo: 1200}
	require.NoError(t, s.CreatePlayer(ctx, player))
	stats, err := s.EnsureCharacterStats(ctx, player.ID, "Marth", 1200)
	require.NoError(t, err)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	stats.Elo = 1500
	stats.Wins = 3
	require.NoError(t, tx.UpdateCharacterStats(ctx, stats))
	require.NoError(t, tx.Rollback())

	reread, err := s.CharacterStats(ctx, player.ID, "Marth")
	require.NoError(t, err)
	assert.Equal(t, 1200, reread.Elo)
	assert.Equal(t, 0, reread.Wins)
}

func TestTxCommit(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	player := &Player{Username: "plup", Elo: 1200, PeakElo: 1200}
	require.NoError(t, s.CreatePlayer(ctx, player))
	stats, err := s.EnsureCharacterStats(ctx, player.ID, "Sheik", 1200)
	require.NoError(t, err)

	tx, err := s.BeginTx(ctx)
	require.NoError(t, err)

	stats.Elo = 1240
	stats.PeakElo = 1240
	stats.Wins = 1
	require.NoError(t, tx.UpdateCharacterStats(ctx, stats))

	aggregate, err := tx.PlayerByID(ctx, player.ID)
	require.NoError(t, err)
	maxElo, err := tx.MaxCharacterElo(ctx, player.ID)
	require.NoError(t, err)
	aggregate.Elo = maxElo
	aggregate.Wins++
	require.NoError(t, tx.UpdatePlayerAggregates(ctx, aggregate))
	require.NoError(t, tx.Commit())

	// Rollback after commit is a no-op.
	assert.NoError(t, tx.Rollback())

	reread, err := s.PlayerByUsername(ctx, "plup")
	require.NoError(t, err)
	assert.Equal(t, 1240, reread.Elo)
	assert.Equal(t, 1, reread.Wins)
}
