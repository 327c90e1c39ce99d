package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// User is an account row. The UUID id is the stable identity that routes
// persistence; the username is the human handle.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// RefreshToken is a rotating refresh token row. A token is single-use: the
// refresh flow revokes it and issues a replacement.
type RefreshToken struct {
	ID        string
	Token     string
	UserID    string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// IsExpired reports whether the token's expiry has passed.
func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// IsValid reports whether the token is neither revoked nor expired.
func (rt *RefreshToken) IsValid() bool {
	return !rt.Revoked && !rt.IsExpired()
}

// CreateUser inserts a new account. Returns ErrDuplicate when the username
// is already taken (comparison is case-insensitive).
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	u.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q", ErrDuplicate, u.Username)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// CountUsers counts registered accounts.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return count, nil
}

// UserByUsername looks up an account by handle, case-insensitively.
func (s *Store) UserByUsername(ctx context.Context, username string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username))
}

// UserByID looks up an account by its UUID.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// UserIDByUsername resolves a handle to its stable UUID.
func (s *Store) UserIDByUsername(ctx context.Context, username string) (string, error) {
	u, err := s.UserByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// UsernameByUserID resolves a stable UUID back to its handle.
func (s *Store) UsernameByUserID(ctx context.Context, userID string) (string, error) {
	u, err := s.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Username, nil
}

// CreateRefreshToken inserts a refresh token row.
func (s *Store) CreateRefreshToken(ctx context.Context, rt *RefreshToken) error {
	rt.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO refresh_tokens (id, token, user_id, expires_at, revoked, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rt.ID, rt.Token, rt.UserID, rt.ExpiresAt, rt.Revoked, rt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}
	return nil
}

// RefreshTokenByToken looks up a refresh token row by its opaque value.
func (s *Store) RefreshTokenByToken(ctx context.Context, token string) (*RefreshToken, error) {
	var rt RefreshToken
	err := s.db.QueryRowContext(ctx,
		`SELECT id, token, user_id, expires_at, revoked, created_at
		 FROM refresh_tokens WHERE token = ?`, token,
	).Scan(&rt.ID, &rt.Token, &rt.UserID, &rt.ExpiresAt, &rt.Revoked, &rt.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: refresh token", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan refresh token: %w", err)
	}
	return &rt, nil
}

// RevokeRefreshToken marks a single token as revoked.
func (s *Store) RevokeRefreshToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllRefreshTokens revokes every active token for a user.
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE refresh_tokens SET revoked = 1 WHERE user_id = ? AND revoked = 0`, userID)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens for user: %w", err)
	}
	return nil
}
