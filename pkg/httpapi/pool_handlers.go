package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MattMyers204453/smashrank-api/pkg/pool"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// handlePoolCheckIn puts a player in the live pool under their rating for the
// chosen character. The rating always comes from the ladder, never from the
// client; first-time characters check in at the initial rating.
func (s *Server) handlePoolCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.URL.Query().Get("username")
	character := r.URL.Query().Get("character")
	if username == "" || character == "" {
		writeText(w, http.StatusBadRequest, "username and character query parameters are required.")
		return
	}

	player, err := s.store.PlayerByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeText(w, http.StatusNotFound, "Player not found.")
			return
		}
		s.textError(w, r, err)
		return
	}

	characterElo := s.cfg.InitialElo
	stats, err := s.store.CharacterStats(ctx, player.ID, character)
	switch {
	case err == nil:
		characterElo = stats.Elo
	case !errors.Is(err, store.ErrNotFound):
		s.textError(w, r, err)
		return
	}

	if err := s.pool.CheckIn(ctx, username, character, characterElo); err != nil {
		s.textError(w, r, err)
		return
	}
	writeText(w, http.StatusOK, fmt.Sprintf("Checked in as %s (%d Elo)", character, characterElo))
}

func (s *Server) handlePoolCheckOut(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	if username == "" {
		writeText(w, http.StatusBadRequest, "username query parameter is required.")
		return
	}
	if err := s.pool.CheckOut(r.Context(), username); err != nil {
		s.textError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePoolSearch(w http.ResponseWriter, r *http.Request) {
	entries, err := s.pool.Search(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		s.textError(w, r, err)
		return
	}
	if entries == nil {
		entries = []pool.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePoolAll(w http.ResponseWriter, r *http.Request) {
	entries, err := s.pool.All(r.Context())
	if err != nil {
		s.textError(w, r, err)
		return
	}
	if entries == nil {
		entries = []pool.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handlePoolFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Flush(r.Context()); err != nil {
		s.textError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePoolSeed(w http.ResponseWriter, r *http.Request) {
	var entries []pool.Entry
	if err := decodeBody(r, &entries); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := s.pool.BulkCheckIn(r.Context(), entries); err != nil {
		s.textError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}
