package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Player is the denormalized ladder aggregate for one account. Its elo is
// the maximum over the player's character rows; wins and losses are summed
// across characters.
type Player struct {
	ID        int64
	Username  string
	LastTag   string
	UserID    *string
	Elo       int
	PeakElo   int
	Wins      int
	Losses    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TotalGames returns wins plus losses.
func (p *Player) TotalGames() int {
	return p.Wins + p.Losses
}

// CharacterStats is a per-(player, character) rating row. These rows are
// the source of truth for ratings.
type CharacterStats struct {
	ID            int64
	PlayerID      int64
	CharacterName string
	Elo           int
	PeakElo       int
	Wins          int
	Losses        int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TotalGames returns wins plus losses.
func (cs *CharacterStats) TotalGames() int {
	return cs.Wins + cs.Losses
}

// CharacterRankingRow is one entry of a per-character leaderboard.
type CharacterRankingRow struct {
	Username string
	Elo      int
	PeakElo  int
	Wins     int
	Losses   int
}

const playerColumns = `id, username, COALESCE(last_tag, ''), user_id, elo, peak_elo, wins, losses, created_at, updated_at`

func scanPlayer(row *sql.Row) (*Player, error) {
	var p Player
	err := row.Scan(&p.ID, &p.Username, &p.LastTag, &p.UserID,
		&p.Elo, &p.PeakElo, &p.Wins, &p.Losses, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: player", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan player: %w", err)
	}
	return &p, nil
}

func playerByID(ctx context.Context, q dbtx, id int64) (*Player, error) {
	return scanPlayer(q.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
}

// CreatePlayer inserts a ladder row with the configured starting rating and
// sets p.ID. Returns ErrDuplicate when the username is taken.
func (s *Store) CreatePlayer(ctx context.Context, p *Player) error {
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO players (username, last_tag, user_id, elo, peak_elo, wins, losses, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Username, p.LastTag, p.UserID, p.Elo, p.PeakElo, p.Wins, p.Losses, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: player %q", ErrDuplicate, p.Username)
		}
		return fmt.Errorf("insert player: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert player id: %w", err)
	}
	p.ID = id
	return nil
}

// PlayerByUsername looks up a ladder row by handle, case-insensitively.
func (s *Store) PlayerByUsername(ctx context.Context, username string) (*Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE username = ?`, username))
}

// PlayerByID looks up a ladder row by id.
func (s *Store) PlayerByID(ctx context.Context, id int64) (*Player, error) {
	return playerByID(ctx, s.db, id)
}

// PlayerByUserID looks up the ladder row linked to an account UUID.
func (s *Store) PlayerByUserID(ctx context.Context, userID string) (*Player, error) {
	return scanPlayer(s.db.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE user_id = ?`, userID))
}

// TopPlayersByElo returns the global leaderboard, highest rating first.
// Players with zero games are excluded.
func (s *Store) TopPlayersByElo(ctx context.Context, limit int) ([]Player, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+playerColumns+` FROM players
		 WHERE (wins + losses) > 0 ORDER BY elo DESC, username ASC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.Username, &p.LastTag, &p.UserID,
			&p.Elo, &p.PeakElo, &p.Wins, &p.Losses, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

// CountActivePlayers counts players with at least one game.
func (s *Store) CountActivePlayers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM players WHERE (wins + losses) > 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active players: %w", err)
	}
	return count, nil
}

// PlayerRank returns the 1-indexed global rank for a rating: one more than
// the number of active players rated strictly higher.
func (s *Store) PlayerRank(ctx context.Context, elo int) (int, error) {
	var rank int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) + 1 FROM players WHERE elo > ? AND (wins + losses) > 0`, elo).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("player rank: %w", err)
	}
	return rank, nil
}

const characterStatsColumns = `id, player_id, character_name, elo, peak_elo, wins, losses, created_at, updated_at`

func scanCharacterStats(row *sql.Row) (*CharacterStats, error) {
	var cs CharacterStats
	err := row.Scan(&cs.ID, &cs.PlayerID, &cs.CharacterName,
		&cs.Elo, &cs.PeakElo, &cs.Wins, &cs.Losses, &cs.CreatedAt, &cs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: character stats", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan character stats: %w", err)
	}
	return &cs, nil
}

func characterStats(ctx context.Context, q dbtx, playerID int64, character string) (*CharacterStats, error) {
	return scanCharacterStats(q.QueryRowContext(ctx,
		`SELECT `+characterStatsColumns+` FROM player_character_stats
		 WHERE player_id = ? AND character_name = ?`, playerID, character))
}

// CharacterStats returns the rating row for one (player, character) pair.
func (s *Store) CharacterStats(ctx context.Context, playerID int64, character string) (*CharacterStats, error) {
	return characterStats(ctx, s.db, playerID, character)
}

// EnsureCharacterStats returns the (player, character) rating row, creating
// it at the initial rating when absent. A fresh row starts at the initial
// rating regardless of the player's global rating: each character is an
// independent skill pool.
func (s *Store) EnsureCharacterStats(ctx context.Context, playerID int64, character string, initialElo int) (*CharacterStats, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO player_character_stats
		 (player_id, character_name, elo, peak_elo, wins, losses, created_at, updated_at)
		 VALUES (?, ?, ?, ?, 0, 0, ?, ?)
		 ON CONFLICT (player_id, character_name) DO NOTHING`,
		playerID, character, initialElo, initialElo, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure character stats: %w", err)
	}
	return characterStats(ctx, s.db, playerID, character)
}

// CharacterStatsForPlayer returns all of a player's character rows, best
// rating first.
func (s *Store) CharacterStatsForPlayer(ctx context.Context, playerID int64) ([]CharacterStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+characterStatsColumns+` FROM player_character_stats
		 WHERE player_id = ? ORDER BY elo DESC`, playerID)
	if err != nil {
		return nil, fmt.Errorf("query character stats: %w", err)
	}
	defer rows.Close()
	return collectCharacterStats(rows)
}

// MostPlayedCharacter returns the player's main: the character row with the
// most games, rating breaking ties. Returns ErrNotFound when the player has
// no character rows.
func (s *Store) MostPlayedCharacter(ctx context.Context, playerID int64) (*CharacterStats, error) {
	return scanCharacterStats(s.db.QueryRowContext(ctx,
		`SELECT `+characterStatsColumns+` FROM player_character_stats
		 WHERE player_id = ? ORDER BY (wins + losses) DESC, elo DESC LIMIT 1`, playerID))
}

// TopByCharacter returns the leaderboard for one character, highest rating
// first. Rows with zero games are excluded.
func (s *Store) TopByCharacter(ctx context.Context, character string, limit int) ([]CharacterRankingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.username, pcs.elo, pcs.peak_elo, pcs.wins, pcs.losses
		 FROM player_character_stats pcs
		 JOIN players p ON p.id = pcs.player_id
		 WHERE pcs.character_name = ? AND (pcs.wins + pcs.losses) > 0
		 ORDER BY pcs.elo DESC, p.username ASC LIMIT ?`, character, limit)
	if err != nil {
		return nil, fmt.Errorf("query character leaderboard: %w", err)
	}
	defer rows.Close()

	var ranking []CharacterRankingRow
	for rows.Next() {
		var r CharacterRankingRow
		if err := rows.Scan(&r.Username, &r.Elo, &r.PeakElo, &r.Wins, &r.Losses); err != nil {
			return nil, fmt.Errorf("scan character leaderboard row: %w", err)
		}
		ranking = append(ranking, r)
	}
	return ranking, rows.Err()
}

// CountActiveByCharacter counts players with at least one game on a character.
func (s *Store) CountActiveByCharacter(ctx context.Context, character string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM player_character_stats
		 WHERE character_name = ? AND (wins + losses) > 0`, character).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count active by character: %w", err)
	}
	return count, nil
}

// CharacterRank returns the 1-indexed rank a rating would hold on one
// character's ladder.
func (s *Store) CharacterRank(ctx context.Context, character string, elo int) (int, error) {
	var rank int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) + 1 FROM player_character_stats
		 WHERE character_name = ? AND elo > ? AND (wins + losses) > 0`, character, elo).Scan(&rank)
	if err != nil {
		return 0, fmt.Errorf("character rank: %w", err)
	}
	return rank, nil
}

// AllPlayedCharacters returns the distinct character names on the ladder.
func (s *Store) AllPlayedCharacters(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT character_name FROM player_character_stats ORDER BY character_name`)
	if err != nil {
		return nil, fmt.Errorf("query played characters: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan character name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func collectCharacterStats(rows *sql.Rows) ([]CharacterStats, error) {
	var stats []CharacterStats
	for rows.Next() {
		var cs CharacterStats
		if err := rows.Scan(&cs.ID, &cs.PlayerID, &cs.CharacterName,
			&cs.Elo, &cs.PeakElo, &cs.Wins, &cs.Losses, &cs.CreatedAt, &cs.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan character stats row: %w", err)
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}

// CharacterStatsByID re-reads a rating row inside the transaction. The
// rating engine uses this read as the pre-image for its update.
func (t *Tx) CharacterStatsByID(ctx context.Context, id int64) (*CharacterStats, error) {
	return scanCharacterStats(t.tx.QueryRowContext(ctx,
		`SELECT `+characterStatsColumns+` FROM player_character_stats WHERE id = ?`, id))
}

// UpdateCharacterStats writes a rating row's mutable fields.
func (t *Tx) UpdateCharacterStats(ctx context.Context, cs *CharacterStats) error {
	cs.UpdatedAt = time.Now().UTC()
	_, err := t.tx.ExecContext(ctx,
		`UPDATE player_character_stats
		 SET elo = ?, peak_elo = ?, wins = ?, losses = ?, updated_at = ?
		 WHERE id = ?`,
		cs.Elo, cs.PeakElo, cs.Wins, cs.Losses, cs.UpdatedAt, cs.ID,
	)
	if err != nil {
		return fmt.Errorf("update character stats: %w", err)
	}
	return nil
}

// PlayerByID reads a ladder aggregate row inside the transaction.
func (t *Tx) PlayerByID(ctx context.Context, id int64) (*Player, error) {
	return playerByID(ctx, t.tx, id)
}

// MaxCharacterElo returns the highest character rating a player holds,
// read inside the transaction.
func (t *Tx) MaxCharacterElo(ctx context.Context, playerID int64) (int, error) {
	var maxElo sql.NullInt64
	err := t.tx.QueryRowContext(ctx,
		`SELECT MAX(elo) FROM player_character_stats WHERE player_id = ?`, playerID).Scan(&maxElo)
	if err != nil {
		return 0, fmt.Errorf("max character elo: %w", err)
	}
	if !maxElo.Valid {
		return 0, fmt.Errorf("%w: character stats for player %d", ErrNotFound, playerID)
	}
	return int(maxElo.Int64), nil
}

// UpdatePlayerAggregates writes a player's denormalized rating and totals.
func (t *Tx) UpdatePlayerAggregates(ctx context.Context, p *Player) error {
	p.UpdatedAt = time.Now().UTC()
	_, err := t.tx.ExecContext(ctx,
		`UPDATE players SET elo = ?, peak_elo = ?, wins = ?, losses = ?, updated_at = ? WHERE id = ?`,
		p.Elo, p.PeakElo, p.Wins, p.Losses, p.UpdatedAt, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update player aggregates: %w", err)
	}
	return nil
}
