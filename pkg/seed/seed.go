// Package seed bootstraps a fresh database with a development roster, so a
// new deployment has accounts to poke at immediately.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/MattMyers204453/smashrank-api/pkg/store"
)

// Every seed account shares this password.
const seedPassword = "password123"

type entry struct {
	username string
	elo      int
}

var roster = []entry{
	{"mew2king", 2000},
	{"mang0", 2100},
	{"zain", 2200},
	{"ibdw", 1200},
}

// Run seeds the roster when the users table is empty; on a populated database
// it does nothing, so restarts never duplicate accounts.
func Run(ctx context.Context, st *store.Store, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	count, err := st.CountUsers(ctx)
	if err != nil {
		return fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return nil
	}

	// bcrypt is the slow part; hash once and share it across the roster.
	hash, err := bcrypt.GenerateFromPassword([]byte(seedPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash seed password: %w", err)
	}

	for _, e := range roster {
		user := &store.User{
			ID:           uuid.NewString(),
			Username:     e.username,
			PasswordHash: string(hash),
		}
		if err := st.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("seed user %s: %w", e.username, err)
		}
		player := &store.Player{
			Username: e.username,
			LastTag:  e.username,
			UserID:   &user.ID,
			Elo:      e.elo,
			PeakElo:  e.elo,
		}
		if err := st.CreatePlayer(ctx, player); err != nil {
			return fmt.Errorf("seed player %s: %w", e.username, err)
		}
	}
	logger.InfoContext(ctx, "database seeded", "users", len(roster))
	return nil
}
