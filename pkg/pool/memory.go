package pool

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryIndex is the in-process pool used when no Redis address is
// configured. It keeps the Redis index's member format and ordering so the
// two backends behave identically.
type MemoryIndex struct {
	mu      sync.Mutex
	members map[string]string // lowercased username -> member
}

var _ Index = (*MemoryIndex)(nil)

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{members: make(map[string]string)}
}

func (m *MemoryIndex) CheckIn(_ context.Context, username, character string, elo int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members[strings.ToLower(username)] = formatMember(username, character, elo)
	return nil
}

func (m *MemoryIndex) CheckOut(_ context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.members, strings.ToLower(username))
	return nil
}

func (m *MemoryIndex) Search(_ context.Context, query string) ([]Entry, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return []Entry{}, nil
	}
	return m.collect(func(member string) bool {
		return strings.HasPrefix(member, lower)
	}, searchLimit), nil
}

func (m *MemoryIndex) All(_ context.Context) ([]Entry, error) {
	return m.collect(func(string) bool { return true }, listLimit), nil
}

func (m *MemoryIndex) CheckedIn(_ context.Context, username string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	member, ok := m.members[strings.ToLower(username)]
	if !ok {
		return nil, nil
	}
	entry := parseMember(member)
	return &entry, nil
}

func (m *MemoryIndex) CheckedInCharacter(ctx context.Context, username string) (string, error) {
	entry, err := m.CheckedIn(ctx, username)
	if err != nil || entry == nil {
		return "", err
	}
	return entry.Character, nil
}

func (m *MemoryIndex) BulkCheckIn(ctx context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.members[strings.ToLower(e.Username)] = formatMember(e.Username, e.Character, e.Elo)
	}
	return nil
}

func (m *MemoryIndex) Flush(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = make(map[string]string)
	return nil
}

func (m *MemoryIndex) Ping(_ context.Context) error { return nil }

// collect returns parsed entries for members passing the filter, in member
// order, capped at limit.
func (m *MemoryIndex) collect(keep func(member string) bool, limit int) []Entry {
	m.mu.Lock()
	members := make([]string, 0, len(m.members))
	for _, member := range m.members {
		if keep(member) {
			members = append(members, member)
		}
	}
	m.mu.Unlock()

	sort.Strings(members)
	if len(members) > limit {
		members = members[:limit]
	}
	return parseMembers(members)
}
