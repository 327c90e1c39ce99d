// Package pool maintains the live pool: who is up for a match right now, on
// which character, at what rating. Entries are tiny and disposable, so the
// pool lives outside the relational store — a Redis sorted-set index in
// production, an in-memory twin for development and tests. Both share one
// member format and identical semantics, making them interchangeable behind
// the Index interface.
package pool

import (
	"context"
	"strconv"
	"strings"
)

// Entry is one checked-in player.
type Entry struct {
	Username  string `json:"username"`
	Character string `json:"character"`
	Elo       int    `json:"elo"`
}

const (
	searchLimit = 20
	listLimit   = 100
)

// Index is the live-pool surface. A player appears at most once; checking in
// again replaces the previous entry.
type Index interface {
	// CheckIn adds or replaces the player's pool entry.
	CheckIn(ctx context.Context, username, character string, elo int) error

	// CheckOut removes the player's entry, if any.
	CheckOut(ctx context.Context, username string) error

	// Search returns up to 20 entries whose handle starts with the query,
	// case-insensitively, in lexicographic order. A blank query matches
	// nothing.
	Search(ctx context.Context, query string) ([]Entry, error)

	// All returns up to 100 entries in lexicographic order.
	All(ctx context.Context) ([]Entry, error)

	// CheckedIn returns the player's current entry, or nil when absent.
	CheckedIn(ctx context.Context, username string) (*Entry, error)

	// CheckedInCharacter returns the character the player is checked in
	// with, or empty when absent.
	CheckedInCharacter(ctx context.Context, username string) (string, error)

	// BulkCheckIn loads many entries at once, for seeding.
	BulkCheckIn(ctx context.Context, entries []Entry) error

	// Flush empties the pool.
	Flush(ctx context.Context) error

	// Ping verifies the backing index is reachable.
	Ping(ctx context.Context) error
}

// formatMember renders the index member: a lowercased handle prefix gives
// lexicographic ordering and prefix search, while the original casing rides
// along for display.
func formatMember(username, character string, elo int) string {
	return strings.ToLower(username) + ":" + username + ":" + character + ":" + strconv.Itoa(elo)
}

// parseMember reads a member back. Malformed members degrade to a placeholder
// entry rather than failing the whole query.
func parseMember(member string) Entry {
	parts := strings.SplitN(member, ":", 4)
	if len(parts) < 4 {
		return Entry{Username: "Unknown", Character: "Unknown", Elo: 1000}
	}
	elo, err := strconv.Atoi(parts[3])
	if err != nil {
		return Entry{Username: "Unknown", Character: "Unknown", Elo: 1000}
	}
	return Entry{Username: parts[1], Character: parts[2], Elo: elo}
}

// memberPrefix is the range prefix selecting a single player's member: every
// member between "user:" (inclusive) and "user;" (exclusive) belongs to that
// handle, ';' being the successor of ':'.
func memberPrefix(username string) string {
	return strings.ToLower(username) + ":"
}
