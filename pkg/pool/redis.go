package pool

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis keys. The search set holds every member at score 0 so ZRANGEBYLEX
// ordering is purely lexicographic; the expiry set holds the same members
// scored by check-in time for later sweeping.
const (
	keySearch = "smashrank:pool:search"
	keyExpiry = "smashrank:pool:expiry"
)

// RedisIndex is the production pool, backed by two sorted sets.
type RedisIndex struct {
	client *redis.Client
}

var _ Index = (*RedisIndex)(nil)

func NewRedisIndex(client *redis.Client) *RedisIndex {
	return &RedisIndex{client: client}
}

func (r *RedisIndex) CheckIn(ctx context.Context, username, character string, elo int) error {
	// Drop any previous entry so the player appears at most once.
	if err := r.CheckOut(ctx, username); err != nil {
		return err
	}
	member := formatMember(username, character, elo)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, keySearch, redis.Z{Score: 0, Member: member})
	pipe.ZAdd(ctx, keyExpiry, redis.Z{Score: float64(time.Now().UnixMilli()), Member: member})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pool check-in: %w", err)
	}
	return nil
}

func (r *RedisIndex) CheckOut(ctx context.Context, username string) error {
	member, err := r.memberFor(ctx, username)
	if err != nil || member == "" {
		return err
	}
	pipe := r.client.TxPipeline()
	pipe.ZRem(ctx, keySearch, member)
	pipe.ZRem(ctx, keyExpiry, member)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pool check-out: %w", err)
	}
	return nil
}

func (r *RedisIndex) Search(ctx context.Context, query string) ([]Entry, error) {
	lower := strings.ToLower(strings.TrimSpace(query))
	if lower == "" {
		return []Entry{}, nil
	}
	members, err := r.client.ZRangeByLex(ctx, keySearch, &redis.ZRangeBy{
		Min:   "[" + lower,
		Max:   "(" + lower + "{",
		Count: searchLimit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("pool search: %w", err)
	}
	return parseMembers(members), nil
}

func (r *RedisIndex) All(ctx context.Context) ([]Entry, error) {
	members, err := r.client.ZRangeByLex(ctx, keySearch, &redis.ZRangeBy{
		Min:   "-",
		Max:   "+",
		Count: listLimit,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("pool list: %w", err)
	}
	return parseMembers(members), nil
}

func (r *RedisIndex) CheckedIn(ctx context.Context, username string) (*Entry, error) {
	member, err := r.memberFor(ctx, username)
	if err != nil || member == "" {
		return nil, err
	}
	entry := parseMember(member)
	return &entry, nil
}

func (r *RedisIndex) CheckedInCharacter(ctx context.Context, username string) (string, error) {
	entry, err := r.CheckedIn(ctx, username)
	if err != nil || entry == nil {
		return "", err
	}
	return entry.Character, nil
}

func (r *RedisIndex) BulkCheckIn(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	now := float64(time.Now().UnixMilli())
	pipe := r.client.Pipeline()
	for _, e := range entries {
		member := formatMember(e.Username, e.Character, e.Elo)
		pipe.ZAdd(ctx, keySearch, redis.Z{Score: 0, Member: member})
		pipe.ZAdd(ctx, keyExpiry, redis.Z{Score: now, Member: member})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("pool bulk check-in: %w", err)
	}
	return nil
}

func (r *RedisIndex) Flush(ctx context.Context) error {
	if err := r.client.Del(ctx, keySearch, keyExpiry).Err(); err != nil {
		return fmt.Errorf("pool flush: %w", err)
	}
	return nil
}

func (r *RedisIndex) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pool ping: %w", err)
	}
	return nil
}

// memberFor finds the player's raw member via a single-element prefix range.
func (r *RedisIndex) memberFor(ctx context.Context, username string) (string, error) {
	prefix := memberPrefix(username)
	members, err := r.client.ZRangeByLex(ctx, keySearch, &redis.ZRangeBy{
		Min:   "[" + prefix,
		Max:   "(" + prefixSuccessor(prefix),
		Count: 1,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("pool member lookup: %w", err)
	}
	if len(members) == 0 {
		return "", nil
	}
	return members[0], nil
}

// prefixSuccessor swaps the trailing ':' for ';', the next byte up, bounding
// the half-open range that covers exactly one handle.
func prefixSuccessor(prefix string) string {
	return prefix[:len(prefix)-1] + ";"
}

func parseMembers(members []string) []Entry {
	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		entries = append(entries, parseMember(m))
	}
	return entries
}
