package ladder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MattMyers204453/smashrank-api/pkg/elo"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

func newTestEngine(t *testing.T) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	calc, err := elo.NewCalculator(elo.DefaultConfig())
	require.NoError(t, err)

	return NewEngine(st, calc, time.Second, nil), st
}

func createLadderPlayer(t *testing.T, st *store.Store, username string) *store.Player {
	t.Helper()
	p := &store.Player{Username: username, LastTag: username, Elo: 1200, PeakElo: 1200}
	require.NoError(t, st.CreatePlayer(context.Background(), p))
	return p
}

// seedCharacterRow forces a (player, character) row to a given state so K
// tiers and floors can be exercised.
func seedCharacterRow(t *testing.T, st *store.Store, playerID int64, character string, eloValue, wins, losses int) *store.CharacterStats {
	t.Helper()
	ctx := context.Background()
	row, err := st.EnsureCharacterStats(ctx, playerID, character, 1200)
	require.NoError(t, err)

	tx, err := st.BeginTx(ctx)
	require.NoError(t, err)
	row.Elo = eloValue
	if eloValue > row.PeakElo {
		row.PeakElo = eloValue
	}
	row.Wins = wins
	row.Losses = losses
	require.NoError(t, tx.UpdateCharacterStats(ctx, row))

	p, err := tx.PlayerByID(ctx, playerID)
	require.NoError(t, err)
	maxElo, err := tx.MaxCharacterElo(ctx, playerID)
	require.NoError(t, err)
	p.Elo = maxElo
	if maxElo > p.PeakElo {
		p.PeakElo = maxElo
	}
	p.Wins += wins
	p.Losses += losses
	require.NoError(t, tx.UpdatePlayerAggregates(ctx, p))
	require.NoError(t, tx.Commit())
	return row
}

func activeMatch(p1, p2, c1, c2 string) *store.Match {
	return &store.Match{
		ID:               uuid.NewString(),
		Player1Username:  p1,
		Player2Username:  p2,
		Player1Character: c1,
		Player2Character: c2,
		Status:           store.MatchActive,
	}
}

func completedBy(m *store.Match, winner string) *store.Match {
	m.Status = store.MatchCompleted
	m.WinnerUsername = &winner
	return m
}

func TestApplyFreshPlayers(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	a := createLadderPlayer(t, st, "a")
	b := createLadderPlayer(t, st, "b")

	m := completedBy(activeMatch("a", "b", "Fox", "Marth"), "a")
	result, err := engine.Apply(ctx, m)
	require.NoError(t, err)

	// Two fresh 1200 rows at K=40: winner +20, loser -20.
	assert.Equal(t, 1200, result.Player1EloBefore)
	assert.Equal(t, 1220, result.Player1EloAfter)
	assert.Equal(t, 20, result.Player1Delta)
	assert.Equal(t, 40, result.Player1KFactor)
	assert.Equal(t, 1200, result.Player2EloBefore)
	assert.Equal(t, 1180, result.Player2EloAfter)
	assert.Equal(t, -20, result.Player2Delta)
	assert.Equal(t, 40, result.Player2KFactor)

	t.Run("AuditOnMatch", func(t *testing.T) {
		require.NotNil(t, m.Player1EloBefore)
		assert.Equal(t, 1200, *m.Player1EloBefore)
		assert.Equal(t, 1220, *m.Player1EloAfter)
		assert.Equal(t, 40, *m.Player1KFactor)
		assert.Equal(t, 1180, *m.Player2EloAfter)
	})

	t.Run("WinnerRow", func(t *testing.T) {
		row, err := st.CharacterStats(ctx, a.ID, "Fox")
		require.NoError(t, err)
		assert.Equal(t, 1220, row.Elo)
		assert.Equal(t, 1220, row.PeakElo)
		assert.Equal(t, 1, row.Wins)
		assert.Zero(t, row.Losses)
	})

	t.Run("LoserRowKeepsInitialPeak", func(t *testing.T) {
		row, err := st.CharacterStats(ctx, b.ID, "Marth")
		require.NoError(t, err)
		assert.Equal(t, 1180, row.Elo)
		assert.Equal(t, 1200, row.PeakElo)
		assert.Zero(t, row.Wins)
		assert.Equal(t, 1, row.Losses)
	})

	t.Run("Aggregates", func(t *testing.T) {
		winner, err := st.PlayerByUsername(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, 1220, winner.Elo)
		assert.Equal(t, 1220, winner.PeakElo)
		assert.Equal(t, 1, winner.Wins)

		loser, err := st.PlayerByUsername(ctx, "b")
		require.NoError(t, err)
		assert.Equal(t, 1180, loser.Elo)
		assert.Equal(t, 1200, loser.PeakElo)
		assert.Equal(t, 1, loser.Losses)
	})

	t.Run("ResultHelpers", func(t *testing.T) {
		assert.Equal(t, 20, result.DeltaFor("A"))
		assert.Equal(t, -20, result.DeltaFor("b"))
		assert.Zero(t, result.DeltaFor("stranger"))
		assert.Equal(t, 1220, result.NewEloFor("a"))
		assert.Equal(t, 1180, result.NewEloFor("b"))
		assert.Equal(t, "Fox", result.CharacterFor("a"))
		assert.Equal(t, "Marth", result.CharacterFor("b"))
	})
}

func TestApplyKTiersPerSide(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	vet := createLadderPlayer(t, st, "vet")
	createLadderPlayer(t, st, "rookie")

	// 100 games puts the veteran's Fox at K=10; the rookie stays at K=40.
	seedCharacterRow(t, st, vet.ID, "Fox", 1200, 60, 40)

	m := completedBy(activeMatch("vet", "rookie", "Fox", "Marth"), "vet")
	result, err := engine.Apply(ctx, m)
	require.NoError(t, err)

	assert.Equal(t, 10, result.Player1KFactor)
	assert.Equal(t, 5, result.Player1Delta)
	assert.Equal(t, 1205, result.Player1EloAfter)
	assert.Equal(t, 40, result.Player2KFactor)
	assert.Equal(t, -20, result.Player2Delta)
	assert.Equal(t, 1180, result.Player2EloAfter)
}

func TestApplyRatingFloor(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	w := createLadderPlayer(t, st, "grinder")
	l := createLadderPlayer(t, st, "slumped")

	seedCharacterRow(t, st, w.ID, "Fox", 110, 1, 9)
	seedCharacterRow(t, st, l.ID, "Marth", 110, 1, 9)

	m := completedBy(activeMatch("grinder", "slumped", "Fox", "Marth"), "grinder")
	result, err := engine.Apply(ctx, m)
	require.NoError(t, err)

	assert.Equal(t, 130, result.Player1EloAfter)
	// 110 - 20 would be 90; the floor holds at 100.
	assert.Equal(t, 100, result.Player2EloAfter)

	row, err := st.CharacterStats(ctx, l.ID, "Marth")
	require.NoError(t, err)
	assert.Equal(t, 100, row.Elo)
}

func TestApplyAggregateIsMaxAcrossCharacters(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	multi := createLadderPlayer(t, st, "multi")
	createLadderPlayer(t, st, "opp")

	// The Fox row outranks anything the fresh Marth row can reach in one game.
	seedCharacterRow(t, st, multi.ID, "Fox", 1500, 20, 10)

	m := completedBy(activeMatch("multi", "opp", "Marth", "Fox"), "multi")
	result, err := engine.Apply(ctx, m)
	require.NoError(t, err)
	assert.Equal(t, 1220, result.Player1EloAfter)

	p, err := st.PlayerByUsername(ctx, "multi")
	require.NoError(t, err)
	assert.Equal(t, 1500, p.Elo)
	assert.Equal(t, 21, p.Wins)
}

func TestApplyPeakIsMonotonic(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	a := createLadderPlayer(t, st, "up")
	createLadderPlayer(t, st, "down")

	win := completedBy(activeMatch("up", "down", "Fox", "Marth"), "up")
	_, err := engine.Apply(ctx, win)
	require.NoError(t, err)

	lose := completedBy(activeMatch("up", "down", "Fox", "Marth"), "down")
	_, err = engine.Apply(ctx, lose)
	require.NoError(t, err)

	row, err := st.CharacterStats(ctx, a.ID, "Fox")
	require.NoError(t, err)
	assert.Less(t, row.Elo, row.PeakElo)
	assert.Equal(t, 1220, row.PeakElo)

	p, err := st.PlayerByUsername(ctx, "up")
	require.NoError(t, err)
	assert.Equal(t, 1220, p.PeakElo)
}

func TestApplyValidation(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	createLadderPlayer(t, st, "a")
	createLadderPlayer(t, st, "b")

	t.Run("NoWinner", func(t *testing.T) {
		m := activeMatch("a", "b", "Fox", "Marth")
		_, err := engine.Apply(ctx, m)
		assert.ErrorContains(t, err, "no winner")
	})

	t.Run("WinnerNotParticipant", func(t *testing.T) {
		m := completedBy(activeMatch("a", "b", "Fox", "Marth"), "c")
		_, err := engine.Apply(ctx, m)
		assert.ErrorContains(t, err, "not a participant")
	})

	t.Run("UnknownPlayer", func(t *testing.T) {
		m := completedBy(activeMatch("a", "ghost", "Fox", "Marth"), "a")
		_, err := engine.Apply(ctx, m)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestApplyLockTimeout(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	engine.lockTimeout = 50 * time.Millisecond

	a := createLadderPlayer(t, st, "a")
	createLadderPlayer(t, st, "b")

	// Hold one of the rows the engine will need.
	row, err := st.EnsureCharacterStats(ctx, a.ID, "Fox", 1200)
	require.NoError(t, err)
	release, err := engine.locks.LockPair(row.ID, row.ID, time.Second)
	require.NoError(t, err)
	defer release()

	m := completedBy(activeMatch("a", "b", "Fox", "Marth"), "a")
	_, err = engine.Apply(ctx, m)
	assert.ErrorIs(t, err, ErrLockTimeout)

	// Nothing moved and no audit was written.
	assert.Nil(t, m.Player1EloBefore)
	fresh, err := st.CharacterStats(ctx, a.ID, "Fox")
	require.NoError(t, err)
	assert.Equal(t, 1200, fresh.Elo)
	assert.Zero(t, fresh.TotalGames())
}

func TestApplySameKZeroSum(t *testing.T) {
	ctx := context.Background()
	engine, st := newTestEngine(t)
	a := createLadderPlayer(t, st, "a")
	b := createLadderPlayer(t, st, "b")

	seedCharacterRow(t, st, a.ID, "Fox", 1340, 20, 15)
	seedCharacterRow(t, st, b.ID, "Marth", 1295, 18, 12)

	m := completedBy(activeMatch("a", "b", "Fox", "Marth"), "b")
	result, err := engine.Apply(ctx, m)
	require.NoError(t, err)

	assert.Equal(t, result.Player1KFactor, result.Player2KFactor)
	sum := result.Player1Delta + result.Player2Delta
	assert.LessOrEqual(t, sum, 1)
	assert.GreaterOrEqual(t, sum, -1)
}
