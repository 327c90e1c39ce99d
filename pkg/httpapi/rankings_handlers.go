package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

const (
	defaultRankingsLimit = 50
	maxRankingsLimit     = 100
	defaultMatchLimit    = 20
	maxMatchLimit        = 50
)

type globalRankingsResponse struct {
	Players            []globalRankedPlayer `json:"players"`
	TotalActivePlayers int                  `json:"totalActivePlayers"`
}

type globalRankedPlayer struct {
	Rank          int     `json:"rank"`
	Username      string  `json:"username"`
	Elo           int     `json:"elo"`
	PeakElo       int     `json:"peakElo"`
	Wins          int     `json:"wins"`
	Losses        int     `json:"losses"`
	TotalGames    int     `json:"totalGames"`
	BestCharacter *string `json:"bestCharacter"`
}

type characterRankingsResponse struct {
	Character          string                  `json:"character"`
	Players            []characterRankedPlayer `json:"players"`
	TotalActivePlayers int                     `json:"totalActivePlayers"`
}

type characterRankedPlayer struct {
	Rank       int    `json:"rank"`
	Username   string `json:"username"`
	Elo        int    `json:"elo"`
	PeakElo    int    `json:"peakElo"`
	Wins       int    `json:"wins"`
	Losses     int    `json:"losses"`
	TotalGames int    `json:"totalGames"`
}

type profileResponse struct {
	Player        playerProfile   `json:"player"`
	Characters    []characterStat `json:"characters"`
	RecentMatches []matchHistory  `json:"recentMatches"`
}

type playerProfile struct {
	Username           string  `json:"username"`
	Elo                int     `json:"elo"`
	PeakElo            int     `json:"peakElo"`
	Wins               int     `json:"wins"`
	Losses             int     `json:"losses"`
	TotalGames         int     `json:"totalGames"`
	Rank               int     `json:"rank"`
	TotalActivePlayers int     `json:"totalActivePlayers"`
	MainCharacter      *string `json:"mainCharacter"`
	MemberSince        *string `json:"memberSince"`
}

type characterStat struct {
	Character     string `json:"character"`
	Elo           int    `json:"elo"`
	PeakElo       int    `json:"peakElo"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	TotalGames    int    `json:"totalGames"`
	CharacterRank int    `json:"characterRank"`
}

type matchHistory struct {
	MatchID           string  `json:"matchId"`
	Opponent          string  `json:"opponent"`
	Won               bool    `json:"won"`
	MyCharacter       string  `json:"myCharacter"`
	OpponentCharacter string  `json:"opponentCharacter"`
	EloBefore         *int    `json:"eloBefore"`
	EloAfter          *int    `json:"eloAfter"`
	EloDelta          *int    `json:"eloDelta"`
	PlayedAt          *string `json:"playedAt"`
}

// handleGlobalRankings serves the main leaderboard: players ordered by their
// best character rating, each annotated with that character.
func (s *Server) handleGlobalRankings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := queryLimit(r, "limit", defaultRankingsLimit, maxRankingsLimit)

	top, err := s.store.TopPlayersByElo(ctx, limit)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}
	totalActive, err := s.store.CountActivePlayers(ctx)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}

	ranked := make([]globalRankedPlayer, 0, len(top))
	for i, p := range top {
		entry := globalRankedPlayer{
			Rank:       i + 1,
			Username:   p.Username,
			Elo:        p.Elo,
			PeakElo:    p.PeakElo,
			Wins:       p.Wins,
			Losses:     p.Losses,
			TotalGames: p.TotalGames(),
		}
		stats, err := s.store.CharacterStatsForPlayer(ctx, p.ID)
		if err != nil {
			s.jsonError(w, r, err)
			return
		}
		if len(stats) > 0 {
			entry.BestCharacter = &stats[0].CharacterName
		}
		ranked = append(ranked, entry)
	}
	writeJSON(w, http.StatusOK, globalRankingsResponse{
		Players:            ranked,
		TotalActivePlayers: totalActive,
	})
}

// handleCharacterRankings serves one character's ladder.
func (s *Server) handleCharacterRankings(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	character := mux.Vars(r)["characterName"]
	limit := queryLimit(r, "limit", defaultRankingsLimit, maxRankingsLimit)

	top, err := s.store.TopByCharacter(ctx, character, limit)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}
	totalActive, err := s.store.CountActiveByCharacter(ctx, character)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}

	ranked := make([]characterRankedPlayer, 0, len(top))
	for i, row := range top {
		ranked = append(ranked, characterRankedPlayer{
			Rank:       i + 1,
			Username:   row.Username,
			Elo:        row.Elo,
			PeakElo:    row.PeakElo,
			Wins:       row.Wins,
			Losses:     row.Losses,
			TotalGames: row.Wins + row.Losses,
		})
	}
	writeJSON(w, http.StatusOK, characterRankingsResponse{
		Character:          character,
		Players:            ranked,
		TotalActivePlayers: totalActive,
	})
}

// handlePlayedCharacters lists every character with at least one rating row,
// for filter dropdowns.
func (s *Server) handlePlayedCharacters(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.AllPlayedCharacters(r.Context())
	if err != nil {
		s.jsonError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

// handleProfile assembles one player's page: aggregates with global rank, the
// per-character breakdown with per-ladder ranks, and recent completed matches
// seen from the player's side.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := mux.Vars(r)["username"]
	matchLimit := queryLimit(r, "matchLimit", defaultMatchLimit, maxMatchLimit)

	player, err := s.store.PlayerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		s.jsonError(w, r, err)
		return
	}

	rank, err := s.store.PlayerRank(ctx, player.Elo)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}
	totalActive, err := s.store.CountActivePlayers(ctx)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}

	stats, err := s.store.CharacterStatsForPlayer(ctx, player.ID)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}
	characters := make([]characterStat, 0, len(stats))
	for _, cs := range stats {
		charRank, err := s.store.CharacterRank(ctx, cs.CharacterName, cs.Elo)
		if err != nil {
			s.jsonError(w, r, err)
			return
		}
		characters = append(characters, characterStat{
			Character:     cs.CharacterName,
			Elo:           cs.Elo,
			PeakElo:       cs.PeakElo,
			Wins:          cs.Wins,
			Losses:        cs.Losses,
			TotalGames:    cs.TotalGames(),
			CharacterRank: charRank,
		})
	}

	profile := playerProfile{
		Username:           player.Username,
		Elo:                player.Elo,
		PeakElo:            player.PeakElo,
		Wins:               player.Wins,
		Losses:             player.Losses,
		TotalGames:         player.TotalGames(),
		Rank:               rank,
		TotalActivePlayers: totalActive,
		MemberSince:        formatTime(player.CreatedAt),
	}
	if len(stats) > 0 {
		main, err := s.store.MostPlayedCharacter(ctx, player.ID)
		if err != nil {
			s.jsonError(w, r, err)
			return
		}
		profile.MainCharacter = &main.CharacterName
	}

	recent, err := s.store.RecentCompletedMatches(ctx, player.Username, matchLimit)
	if err != nil {
		s.jsonError(w, r, err)
		return
	}
	history := make([]matchHistory, 0, len(recent))
	for _, m := range recent {
		history = append(history, matchHistoryFor(&m, player.Username))
	}

	writeJSON(w, http.StatusOK, profileResponse{
		Player:        profile,
		Characters:    characters,
		RecentMatches: history,
	})
}

// matchHistoryFor projects a match row onto one participant's point of view.
func matchHistoryFor(m *store.Match, username string) matchHistory {
	isPlayer1 := strings.EqualFold(m.Player1Username, username)

	h := matchHistory{
		MatchID:  m.ID,
		Opponent: m.Player2Username,
		PlayedAt: formatTime(m.PlayedAt),
	}
	if isPlayer1 {
		h.MyCharacter = m.Player1Character
		h.OpponentCharacter = m.Player2Character
		h.EloBefore = m.Player1EloBefore
		h.EloAfter = m.Player1EloAfter
	} else {
		h.Opponent = m.Player1Username
		h.MyCharacter = m.Player2Character
		h.OpponentCharacter = m.Player1Character
		h.EloBefore = m.Player2EloBefore
		h.EloAfter = m.Player2EloAfter
	}
	h.EloDelta = eloDelta(h.EloBefore, h.EloAfter)
	h.Won = m.WinnerUsername != nil && strings.EqualFold(*m.WinnerUsername, username)
	return h
}

func eloDelta(before, after *int) *int {
	if before == nil || after == nil {
		return nil
	}
	delta := *after - *before
	return &delta
}

func formatTime(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	formatted := t.UTC().Format(time.RFC3339)
	return &formatted
}

// queryLimit reads a positive integer query parameter, falling back to def
// and capping at max.
func queryLimit(r *http.Request, name string, def, max int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}
