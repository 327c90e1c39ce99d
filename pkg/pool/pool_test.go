package pool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemberFormatRoundTrip(t *testing.T) {
	member := formatMember("Mew2King", "Fox", 2000)
	assert.Equal(t, "mew2king:Mew2King:Fox:2000", member)

	entry := parseMember(member)
	assert.Equal(t, Entry{Username: "Mew2King", Character: "Fox", Elo: 2000}, entry)
}

func TestParseMemberDegradesGracefully(t *testing.T) {
	tests := []struct {
		name   string
		member string
	}{
		{"too few parts", "mang0:Mang0:Falco"},
		{"empty", ""},
		{"non-numeric elo", "mang0:Mang0:Falco:lots"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := parseMember(tt.member)
			assert.Equal(t, Entry{Username: "Unknown", Character: "Unknown", Elo: 1000}, entry)
		})
	}
}

func seedPool(t *testing.T, idx Index) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, idx.CheckIn(ctx, "Mew2King", "Fox", 2000))
	require.NoError(t, idx.CheckIn(ctx, "mang0", "Falco", 2100))
	require.NoError(t, idx.CheckIn(ctx, "Zain", "Marth", 2200))
	require.NoError(t, idx.CheckIn(ctx, "ibdw", "Fox", 1200))
}

func TestMemorySearchByPrefix(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	seedPool(t, idx)

	entries, err := idx.Search(ctx, "m")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "mang0", entries[0].Username)
	assert.Equal(t, "Mew2King", entries[1].Username)

	// Case-insensitive on both sides of the comparison.
	entries, err = idx.Search(ctx, "MEW")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Username: "Mew2King", Character: "Fox", Elo: 2000}, entries[0])

	entries, err = idx.Search(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = idx.Search(ctx, "   ")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMemoryCheckInReplaces(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	require.NoError(t, idx.CheckIn(ctx, "mang0", "Falco", 2100))
	require.NoError(t, idx.CheckIn(ctx, "mang0", "Fox", 2050))

	all, err := idx.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, Entry{Username: "mang0", Character: "Fox", Elo: 2050}, all[0])
}

func TestMemoryCheckedIn(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	seedPool(t, idx)

	entry, err := idx.CheckedIn(ctx, "MANG0")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Falco", entry.Character)

	character, err := idx.CheckedInCharacter(ctx, "zain")
	require.NoError(t, err)
	assert.Equal(t, "Marth", character)

	entry, err = idx.CheckedIn(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, entry)

	character, err = idx.CheckedInCharacter(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, character)
}

func TestMemoryCheckOut(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	seedPool(t, idx)

	require.NoError(t, idx.CheckOut(ctx, "MEW2KING"))
	entry, err := idx.CheckedIn(ctx, "mew2king")
	require.NoError(t, err)
	assert.Nil(t, entry)

	// Checking out an absent player is a no-op.
	require.NoError(t, idx.CheckOut(ctx, "nobody"))

	all, err := idx.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryAllSortedAndCapped(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()
	seedPool(t, idx)

	all, err := idx.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, []string{"ibdw", "mang0", "Mew2King", "Zain"}, usernames(all))
}

func usernames(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Username)
	}
	return names
}

func TestMemoryBulkCheckInAndFlush(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	err := idx.BulkCheckIn(ctx, []Entry{
		{Username: "Mew2King", Character: "Fox", Elo: 2000},
		{Username: "mang0", Character: "Falco", Elo: 2100},
	})
	require.NoError(t, err)

	all, err := idx.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, idx.Flush(ctx))
	all, err = idx.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	assert.NoError(t, idx.Ping(ctx))
}
