// Package httpapi exposes the ladder over REST. It owns routing, the bearer
// token middleware, request decoding, and the single mapping from domain
// error kinds to HTTP status codes. Handlers stay thin: decode, call the
// owning service, encode.
package httpapi

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MattMyers204453/smashrank-api/pkg/auth"
	"github.com/MattMyers204453/smashrank-api/pkg/match"
	"github.com/MattMyers204453/smashrank-api/pkg/pool"
	"github.com/MattMyers204453/smashrank-api/pkg/push"
	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// Config carries the handler-level settings.
type Config struct {
	// DevAuth mounts the credential-free /api/dev/auth/login endpoint.
	DevAuth bool

	// InitialElo is the rating reported for characters a player has never
	// ranked, e.g. at pool check-in.
	InitialElo int
}

// Server wires the REST surface over the domain services.
type Server struct {
	store  *store.Store
	auth   *auth.Service
	coord  *match.Coordinator
	pool   pool.Index
	hub    *push.Hub
	cfg    Config
	logger *slog.Logger
}

// NewServer builds the REST layer. All dependencies are required except the
// logger, which falls back to slog's default.
func NewServer(st *store.Store, authSvc *auth.Service, coord *match.Coordinator, poolIdx pool.Index, hub *push.Hub, cfg Config, logger *slog.Logger) *Server {
	if cfg.InitialElo <= 0 {
		cfg.InitialElo = 1200
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  st,
		auth:   authSvc,
		coord:  coord,
		pool:   poolIdx,
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
}

// Router mounts every route. The auth endpoints, the health check, and the
// websocket handshake stay outside the bearer middleware; the handshake
// validates its own token from the query string.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/sanity", s.handleSanity).Methods(http.MethodGet)
	r.HandleFunc("/ws-smashrank", s.hub.Handler(s.validatePushToken)).Methods(http.MethodGet)

	authRoutes := r.PathPrefix("/api/auth").Subrouter()
	authRoutes.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	authRoutes.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	authRoutes.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)

	if s.cfg.DevAuth {
		r.HandleFunc("/api/dev/auth/login", s.handleDevLogin).Methods(http.MethodPost)
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.requireBearer)

	matches := api.PathPrefix("/matches").Subrouter()
	matches.HandleFunc("/invite", s.handleInvite).Methods(http.MethodPost)
	matches.HandleFunc("/accept", s.handleAccept).Methods(http.MethodPost)
	matches.HandleFunc("/decline", s.handleDecline).Methods(http.MethodPost)
	matches.HandleFunc("/cancel", s.handleCancel).Methods(http.MethodPost)
	matches.HandleFunc("/report", s.handleReport).Methods(http.MethodPost)
	matches.HandleFunc("/confirm", s.handleConfirm).Methods(http.MethodPost)
	matches.HandleFunc("/rematch", s.handleRematch).Methods(http.MethodPost)

	api.HandleFunc("/rankings", s.handleGlobalRankings).Methods(http.MethodGet)
	api.HandleFunc("/rankings/characters", s.handlePlayedCharacters).Methods(http.MethodGet)
	api.HandleFunc("/rankings/character/{characterName}", s.handleCharacterRankings).Methods(http.MethodGet)
	api.HandleFunc("/profile/{username}", s.handleProfile).Methods(http.MethodGet)

	poolRoutes := api.PathPrefix("/pool").Subrouter()
	poolRoutes.HandleFunc("/check-in", s.handlePoolCheckIn).Methods(http.MethodPost)
	poolRoutes.HandleFunc("/check-out", s.handlePoolCheckOut).Methods(http.MethodPost)
	poolRoutes.HandleFunc("/search", s.handlePoolSearch).Methods(http.MethodGet)
	poolRoutes.HandleFunc("/all", s.handlePoolAll).Methods(http.MethodGet)
	poolRoutes.HandleFunc("/admin/flush", s.handlePoolFlush).Methods(http.MethodDelete)
	poolRoutes.HandleFunc("/admin/seed", s.handlePoolSeed).Methods(http.MethodPost)

	return r
}

// validatePushToken resolves a websocket handshake token to its username.
func (s *Server) validatePushToken(token string) (string, error) {
	claims, err := s.auth.ValidateToken(token)
	if err != nil {
		return "", err
	}
	return claims.Username, nil
}

// handleSanity verifies the store and the pool index end to end. Anything
// broken turns the whole check red.
func (s *Server) handleSanity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	storeStatus := "OK"
	if err := s.store.Ping(ctx); err != nil {
		storeStatus = err.Error()
	}
	poolStatus := "OK"
	if err := s.pool.Ping(ctx); err != nil {
		poolStatus = err.Error()
	}

	status := http.StatusOK
	if storeStatus != "OK" || poolStatus != "OK" {
		status = http.StatusInternalServerError
	}
	writeText(w, status, fmt.Sprintf("SmashRank API is UP. Store: %s. Pool: %s", storeStatus, poolStatus))
}
