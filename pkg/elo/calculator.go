// Package elo provides the Elo rating calculations for the ladder.
// It implements the standard Chess Elo algorithm with integer ratings,
// experience-tiered K-factors, and a hard rating floor.
package elo

import (
	"errors"
	"math"
)

// Error types for configuration validation
var (
	ErrInvalidKFactor = errors.New("k-factor must be positive")
	ErrInvalidTiers   = errors.New("k-factor tier thresholds must be ascending")
	ErrInvalidFloor   = errors.New("floor rating must not exceed initial rating")
)

// Config holds configuration parameters for the rating calculator.
type Config struct {
	InitialRating     int `yaml:"initial_rating" json:"initial_rating"`         // Rating assigned to a fresh (player, character) row
	FloorRating       int `yaml:"floor_rating" json:"floor_rating"`             // Hard minimum a rating can fall to
	ProvisionalK      int `yaml:"provisional_k" json:"provisional_k"`           // K-factor below ProvisionalGames
	IntermediateK     int `yaml:"intermediate_k" json:"intermediate_k"`         // K-factor below IntermediateGames
	EstablishedK      int `yaml:"established_k" json:"established_k"`           // K-factor at or above IntermediateGames
	ProvisionalGames  int `yaml:"provisional_games" json:"provisional_games"`   // Games played before leaving the provisional tier
	IntermediateGames int `yaml:"intermediate_games" json:"intermediate_games"` // Games played before reaching the established tier
}

// DefaultConfig returns the standard ladder parameters.
func DefaultConfig() Config {
	return Config{
		InitialRating:     1200,
		FloorRating:       100,
		ProvisionalK:      40,
		IntermediateK:     20,
		EstablishedK:      10,
		ProvisionalGames:  30,
		IntermediateGames: 100,
	}
}

// Validate checks the configuration for internal consistency.
func (c Config) Validate() error {
	if c.ProvisionalK <= 0 || c.IntermediateK <= 0 || c.EstablishedK <= 0 {
		return ErrInvalidKFactor
	}
	if c.ProvisionalGames >= c.IntermediateGames {
		return ErrInvalidTiers
	}
	if c.FloorRating > c.InitialRating {
		return ErrInvalidFloor
	}
	return nil
}

// Calculator computes rating changes. It is stateless beyond its Config and
// safe for concurrent use.
type Calculator struct {
	config Config
}

// NewCalculator creates a rating calculator with the specified configuration.
func NewCalculator(config Config) (*Calculator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{config: config}, nil
}

// InitialRating returns the rating assigned to a fresh (player, character) row.
func (c *Calculator) InitialRating() int {
	return c.config.InitialRating
}

// KFactor returns the K-factor tier for a player with the given number of
// games on the character: provisional players move fast, veterans move slow.
func (c *Calculator) KFactor(totalGames int) int {
	switch {
	case totalGames < c.config.ProvisionalGames:
		return c.config.ProvisionalK
	case totalGames < c.config.IntermediateGames:
		return c.config.IntermediateK
	default:
		return c.config.EstablishedK
	}
}

// ExpectedScore computes the probability of the rating-a side winning
// against the rating-b side.
func (c *Calculator) ExpectedScore(rating, opponent int) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, float64(opponent-rating)/400.0))
}

// NewRating computes the post-match rating for one side.
// totalGames is the side's own game count on this character, so the K-factor
// is per-player, per-character. The result is rounded half away from zero
// and never falls below the configured floor.
func (c *Calculator) NewRating(rating, totalGames, opponent int, won bool) int {
	score := 0.0
	if won {
		score = 1.0
	}
	k := float64(c.KFactor(totalGames))
	expected := c.ExpectedScore(rating, opponent)

	updated := int(math.Round(float64(rating) + k*(score-expected)))
	if updated < c.config.FloorRating {
		return c.config.FloorRating
	}
	return updated
}

// Delta returns the rating change NewRating would apply.
func (c *Calculator) Delta(rating, totalGames, opponent int, won bool) int {
	return c.NewRating(rating, totalGames, opponent, won) - rating
}
