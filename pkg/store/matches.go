package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Match statuses. COMPLETED and DISPUTED are terminal.
const (
	MatchActive    = "ACTIVE"
	MatchCompleted = "COMPLETED"
	MatchDisputed  = "DISPUTED"
)

// Match is a persisted match row. Winner and rating audit fields stay nil
// unless the match completed with an agreed result.
type Match struct {
	ID               string
	Player1Username  string
	Player2Username  string
	WinnerUsername   *string
	Player1ID        *string
	Player2ID        *string
	WinnerID         *string
	Player1Character string
	Player2Character string
	Status           string
	PlayedAt         time.Time
	Player1EloBefore *int
	Player1EloAfter  *int
	Player1KFactor   *int
	Player2EloBefore *int
	Player2EloAfter  *int
	Player2KFactor   *int
}

// Player1EloDelta returns the rating change for player 1, or nil when the
// audit fields are unset.
func (m *Match) Player1EloDelta() *int {
	return eloDelta(m.Player1EloBefore, m.Player1EloAfter)
}

// Player2EloDelta returns the rating change for player 2, or nil when the
// audit fields are unset.
func (m *Match) Player2EloDelta() *int {
	return eloDelta(m.Player2EloBefore, m.Player2EloAfter)
}

func eloDelta(before, after *int) *int {
	if before == nil || after == nil {
		return nil
	}
	delta := *after - *before
	return &delta
}

const matchColumns = `id, player1_username, player2_username, winner_username,
	player1_id, player2_id, winner_id,
	COALESCE(player1_character, ''), COALESCE(player2_character, ''),
	status, played_at,
	player1_elo_before, player1_elo_after, player1_k_factor,
	player2_elo_before, player2_elo_after, player2_k_factor`

// InsertMatch persists a new match row. The caller supplies the id; PlayedAt
// is stamped here when unset.
func (s *Store) InsertMatch(ctx context.Context, m *Match) error {
	if m.PlayedAt.IsZero() {
		m.PlayedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO matches (id, player1_username, player2_username, winner_username,
			player1_id, player2_id, winner_id,
			player1_character, player2_character, status, played_at,
			player1_elo_before, player1_elo_after, player1_k_factor,
			player2_elo_before, player2_elo_after, player2_k_factor)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Player1Username, m.Player2Username, m.WinnerUsername,
		m.Player1ID, m.Player2ID, m.WinnerID,
		m.Player1Character, m.Player2Character, m.Status, m.PlayedAt,
		m.Player1EloBefore, m.Player1EloAfter, m.Player1KFactor,
		m.Player2EloBefore, m.Player2EloAfter, m.Player2KFactor,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: match %q", ErrDuplicate, m.ID)
		}
		return fmt.Errorf("insert match: %w", err)
	}
	return nil
}

// MatchByID looks up a match row.
func (s *Store) MatchByID(ctx context.Context, id string) (*Match, error) {
	return scanMatch(s.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM matches WHERE id = ?`, id))
}

// UpdateMatch writes a match's mutable fields: status, winner, and audit.
// Participants and characters are fixed at creation.
func (s *Store) UpdateMatch(ctx context.Context, m *Match) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET winner_username = ?, winner_id = ?, status = ?,
			player1_elo_before = ?, player1_elo_after = ?, player1_k_factor = ?,
			player2_elo_before = ?, player2_elo_after = ?, player2_k_factor = ?
		 WHERE id = ?`,
		m.WinnerUsername, m.WinnerID, m.Status,
		m.Player1EloBefore, m.Player1EloAfter, m.Player1KFactor,
		m.Player2EloBefore, m.Player2EloAfter, m.Player2KFactor,
		m.ID,
	)
	if err != nil {
		return fmt.Errorf("update match: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update match affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: match %q", ErrNotFound, m.ID)
	}
	return nil
}

// RecentCompletedMatches returns a player's most recent completed matches,
// newest first. Only completed matches carry rating audit data.
func (s *Store) RecentCompletedMatches(ctx context.Context, username string, limit int) ([]Match, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+matchColumns+` FROM matches
		 WHERE status = ? AND (player1_username = ? COLLATE NOCASE OR player2_username = ? COLLATE NOCASE)
		 ORDER BY played_at DESC LIMIT ?`,
		MatchCompleted, username, username, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent matches: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Player1Username, &m.Player2Username, &m.WinnerUsername,
			&m.Player1ID, &m.Player2ID, &m.WinnerID,
			&m.Player1Character, &m.Player2Character, &m.Status, &m.PlayedAt,
			&m.Player1EloBefore, &m.Player1EloAfter, &m.Player1KFactor,
			&m.Player2EloBefore, &m.Player2EloAfter, &m.Player2KFactor); err != nil {
			return nil, fmt.Errorf("scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// CountCompletedMatches counts a player's completed matches.
func (s *Store) CountCompletedMatches(ctx context.Context, username string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM matches
		 WHERE status = ? AND (player1_username = ? COLLATE NOCASE OR player2_username = ? COLLATE NOCASE)`,
		MatchCompleted, username, username).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count completed matches: %w", err)
	}
	return count, nil
}

func scanMatch(row *sql.Row) (*Match, error) {
	var m Match
	err := row.Scan(&m.ID, &m.Player1Username, &m.Player2Username, &m.WinnerUsername,
		&m.Player1ID, &m.Player2ID, &m.WinnerID,
		&m.Player1Character, &m.Player2Character, &m.Status, &m.PlayedAt,
		&m.Player1EloBefore, &m.Player1EloAfter, &m.Player1KFactor,
		&m.Player2EloBefore, &m.Player2EloAfter, &m.Player2KFactor)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: match", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan match: %w", err)
	}
	return &m, nil
}
