// Package ladder applies finalized match results to the rating ladder. The
// Engine is the only code path that mutates rating rows: it locks both
// per-character rows in ascending id order, recomputes ratings from
// transactional pre-images, and syncs each player's denormalized aggregate
// in the same transaction.
package ladder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MattMyers204453/smashrank-api/pkg/elo"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

const defaultLockTimeout = 5 * time.Second

// Result reports the rating movement of one finalized match, keyed by the
// match's seat order.
type Result struct {
	Player1Username  string
	Player2Username  string
	Player1Character string
	Player2Character string
	Player1EloBefore int
	Player1EloAfter  int
	Player1Delta     int
	Player1KFactor   int
	Player2EloBefore int
	Player2EloAfter  int
	Player2Delta     int
	Player2KFactor   int
}

// DeltaFor returns the rating change for the named player, 0 for anyone else.
func (r *Result) DeltaFor(username string) int {
	switch {
	case strings.EqualFold(username, r.Player1Username):
		return r.Player1Delta
	case strings.EqualFold(username, r.Player2Username):
		return r.Player2Delta
	}
	return 0
}

// NewEloFor returns the post-match rating for the named player, 0 for anyone else.
func (r *Result) NewEloFor(username string) int {
	switch {
	case strings.EqualFold(username, r.Player1Username):
		return r.Player1EloAfter
	case strings.EqualFold(username, r.Player2Username):
		return r.Player2EloAfter
	}
	return 0
}

// CharacterFor returns the character the named player used, "" for anyone else.
func (r *Result) CharacterFor(username string) string {
	switch {
	case strings.EqualFold(username, r.Player1Username):
		return r.Player1Character
	case strings.EqualFold(username, r.Player2Username):
		return r.Player2Character
	}
	return ""
}

// Engine owns rating mutations.
type Engine struct {
	store       *store.Store
	calc        *elo.Calculator
	locks       *RowLocks
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewEngine builds a rating engine over the store. A non-positive lockTimeout
// falls back to 5 seconds.
func NewEngine(st *store.Store, calc *elo.Calculator, lockTimeout time.Duration, logger *slog.Logger) *Engine {
	if lockTimeout <= 0 {
		lockTimeout = defaultLockTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:       st,
		calc:        calc,
		locks:       NewRowLocks(),
		lockTimeout: lockTimeout,
		logger:      logger,
	}
}

// Apply finalizes the match's rating consequences. The match must already
// carry its winner; Apply populates the match's audit fields in memory and
// leaves persisting the match row to the caller.
//
// Both per-character rows are locked for the duration and re-read inside the
// transaction, so concurrent finalizations touching either row serialize.
// On ErrLockTimeout nothing was changed and the call may be retried.
func (e *Engine) Apply(ctx context.Context, m *store.Match) (*Result, error) {
	if m.WinnerUsername == nil {
		return nil, fmt.Errorf("match %s has no winner set", m.ID)
	}
	winner := *m.WinnerUsername

	p1Won := strings.EqualFold(winner, m.Player1Username)
	if !p1Won && !strings.EqualFold(winner, m.Player2Username) {
		return nil, fmt.Errorf("winner %q is not a participant of match %s", winner, m.ID)
	}

	p1, err := e.store.PlayerByUsername(ctx, m.Player1Username)
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", m.Player1Username, err)
	}
	p2, err := e.store.PlayerByUsername(ctx, m.Player2Username)
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", m.Player2Username, err)
	}

	initial := e.calc.InitialRating()
	p1Row, err := e.store.EnsureCharacterStats(ctx, p1.ID, m.Player1Character, initial)
	if err != nil {
		return nil, err
	}
	p2Row, err := e.store.EnsureCharacterStats(ctx, p2.ID, m.Player2Character, initial)
	if err != nil {
		return nil, err
	}

	release, err := e.locks.LockPair(p1Row.ID, p2Row.ID, e.lockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	tx, err := e.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Pre-images: re-read under the lock, inside the transaction.
	p1Stats, err := tx.CharacterStatsByID(ctx, p1Row.ID)
	if err != nil {
		return nil, err
	}
	p2Stats, err := tx.CharacterStatsByID(ctx, p2Row.ID)
	if err != nil {
		return nil, err
	}

	p1EloBefore, p2EloBefore := p1Stats.Elo, p2Stats.Elo
	p1Games, p2Games := p1Stats.TotalGames(), p2Stats.TotalGames()

	p1EloAfter := e.calc.NewRating(p1EloBefore, p1Games, p2EloBefore, p1Won)
	p2EloAfter := e.calc.NewRating(p2EloBefore, p2Games, p1EloBefore, !p1Won)
	p1K := e.calc.KFactor(p1Games)
	p2K := e.calc.KFactor(p2Games)

	applyToRow(p1Stats, p1EloAfter, p1Won)
	applyToRow(p2Stats, p2EloAfter, !p1Won)
	if err := tx.UpdateCharacterStats(ctx, p1Stats); err != nil {
		return nil, err
	}
	if err := tx.UpdateCharacterStats(ctx, p2Stats); err != nil {
		return nil, err
	}

	if err := e.syncAggregates(ctx, tx, p1.ID, p1Won); err != nil {
		return nil, err
	}
	if err := e.syncAggregates(ctx, tx, p2.ID, !p1Won); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit rating update: %w", err)
	}

	m.Player1EloBefore = &p1EloBefore
	m.Player1EloAfter = &p1EloAfter
	m.Player1KFactor = &p1K
	m.Player2EloBefore = &p2EloBefore
	m.Player2EloAfter = &p2EloAfter
	m.Player2KFactor = &p2K

	result := &Result{
		Player1Username:  m.Player1Username,
		Player2Username:  m.Player2Username,
		Player1Character: m.Player1Character,
		Player2Character: m.Player2Character,
		Player1EloBefore: p1EloBefore,
		Player1EloAfter:  p1EloAfter,
		Player1Delta:     p1EloAfter - p1EloBefore,
		Player1KFactor:   p1K,
		Player2EloBefore: p2EloBefore,
		Player2EloAfter:  p2EloAfter,
		Player2Delta:     p2EloAfter - p2EloBefore,
		Player2KFactor:   p2K,
	}

	e.logger.Debug("rating update applied",
		"match_id", m.ID,
		"winner", winner,
		"player1", m.Player1Username, "player1_delta", result.Player1Delta,
		"player2", m.Player2Username, "player2_delta", result.Player2Delta,
	)
	return result, nil
}

// applyToRow writes a finished game onto a rating row. Peak only moves up.
func applyToRow(cs *store.CharacterStats, newElo int, won bool) {
	cs.Elo = newElo
	if newElo > cs.PeakElo {
		cs.PeakElo = newElo
	}
	if won {
		cs.Wins++
	} else {
		cs.Losses++
	}
}

// syncAggregates recomputes the player's denormalized rating as the maximum
// over their character rows and bumps the aggregate win/loss counters.
func (e *Engine) syncAggregates(ctx context.Context, tx *store.Tx, playerID int64, won bool) error {
	p, err := tx.PlayerByID(ctx, playerID)
	if err != nil {
		return err
	}
	maxElo, err := tx.MaxCharacterElo(ctx, playerID)
	if err != nil {
		return err
	}
	p.Elo = maxElo
	if maxElo > p.PeakElo {
		p.PeakElo = maxElo
	}
	if won {
		p.Wins++
	} else {
		p.Losses++
	}
	return tx.UpdatePlayerAggregates(ctx, p)
}
