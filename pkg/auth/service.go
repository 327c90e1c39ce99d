// Package auth issues and validates the ladder's credentials: bcrypt password
// hashes, short-lived HS256 access tokens, and rotating single-use refresh
// tokens. Registering also creates the player's ladder profile, so a fresh
// account can be challenged immediately.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// Error kinds for credential failures. Handlers map these to status codes;
// the message on the concrete error is the user-facing text.
var (
	ErrInvalidInput  = errors.New("invalid credentials input")
	ErrUsernameTaken = errors.New("username taken")
	ErrUnauthorized  = errors.New("unauthorized")
)

// rejection mirrors the lifecycle package's error shape: errors.Is selects
// the kind, Error() is the response body.
type rejection struct {
	kind error
	msg  string
}

func (r *rejection) Error() string { return r.msg }
func (r *rejection) Unwrap() error { return r.kind }

func reject(kind error, msg string) error {
	return &rejection{kind: kind, msg: msg}
}

const (
	maxUsernameLen = 20
	minPasswordLen = 6
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// Config carries the signing secret and token lifetimes.
type Config struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// InitialElo seeds the player profile created at registration.
	InitialElo int
}

// Service owns accounts, tokens, and the player profiles linked to them.
type Service struct {
	store      *store.Store
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	initialElo int
	logger     *slog.Logger
}

// NewService validates the config and builds the service.
func NewService(st *store.Store, cfg Config, logger *slog.Logger) (*Service, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		return nil, errors.New("auth: access token TTL must be positive")
	}
	if cfg.RefreshTokenTTL <= 0 {
		return nil, errors.New("auth: refresh token TTL must be positive")
	}
	if cfg.InitialElo <= 0 {
		return nil, errors.New("auth: initial elo must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      st,
		secret:     []byte(cfg.Secret),
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		initialElo: cfg.InitialElo,
		logger:     logger,
	}, nil
}

// Result is a full credential set: what register, login, and refresh return.
type Result struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
}

// Register creates an account plus its ladder profile and signs the user in.
func (s *Service) Register(ctx context.Context, username, password string) (*Result, error) {
	if err := validateRegistration(username, password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, reject(ErrUsernameTaken, "Username is already taken.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	player := &store.Player{
		Username: username,
		LastTag:  username,
		UserID:   &user.ID,
		Elo:      s.initialElo,
		PeakElo:  s.initialElo,
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("create player profile: %w", err)
	}
	s.logger.InfoContext(ctx, "user registered", "username", username, "user_id", user.ID)

	return s.issueTokens(ctx, user)
}

func validateRegistration(username, password string) error {
	if strings.TrimSpace(username) == "" {
		return reject(ErrInvalidInput, "Username is required.")
	}
	if len(password) < minPasswordLen {
		return reject(ErrInvalidInput, "Password must be at least 6 characters.")
	}
	if len(username) > maxUsernameLen {
		return reject(ErrInvalidInput, "Username must be 20 characters or fewer.")
	}
	if !usernamePattern.MatchString(username) {
		return reject(ErrInvalidInput, "Username can only contain letters, numbers, and underscores.")
	}
	return nil
}

// Login checks the password and issues a fresh credential set. Unknown users
// and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Result, error) {
	user, err := s.store.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(ErrUnauthorized, "Invalid username or password.")
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, reject(ErrUnauthorized, "Invalid username or password.")
	}
	s.logger.InfoContext(ctx, "user logged in", "username", user.Username)

	return s.issueTokens(ctx, user)
}

// Refresh rotates a refresh token: the presented token is revoked and a whole
// new credential set is issued. A replayed token therefore fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Result, error) {
	stored, err := s.store.RefreshTokenByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(ErrUnauthorized, "Invalid refresh token.")
		}
		return nil, fmt.Errorf("load refresh token: %w", err)
	}
	if !stored.IsValid() {
		return nil, reject(ErrUnauthorized, "Refresh token is expired or revoked.")
	}
	if err := s.store.RevokeRefreshToken(ctx, stored.ID); err != nil {
		return nil, fmt.Errorf("revoke refresh token: %w", err)
	}

	user, err := s.store.UserByID(ctx, stored.UserID)
	if err != nil {
		return nil, fmt.Errorf("load user for refresh: %w", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *Service) issueTokens(ctx context.Context, user *store.User) (*Result, error) {
	access, err := s.generateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh := &store.RefreshToken{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(s.refreshTTL),
	}
	if err := s.store.CreateRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &Result{
		AccessToken:  access,
		RefreshToken: refresh.Token,
		UserID:       user.ID,
		Username:     user.Username,
	}, nil
}
