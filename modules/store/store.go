// Package store adapts Redis into the narrow set of atomic primitives the
// relay core is allowed to touch: bounded list push/trim/read, set
// add/remove/members/cardinality, and publish/subscribe. All shared mutable
// state (membership, history, rate buckets) lives behind these primitives;
// the core never performs a read-modify-write of its own.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// pushAndTrimScript prepends an entry and trims the log in one atomic step,
// so concurrent readers never observe the log above its cap. An optional TTL
// (milliseconds) is refreshed on every write.
var pushAndTrimScript = redis.NewScript(`
	local key = KEYS[1]
	local entry = ARGV[1]
	local cap = tonumber(ARGV[2])
	local ttl_ms = tonumber(ARGV[3])

	redis.call('LPUSH', key, entry)
	redis.call('LTRIM', key, 0, cap - 1)
	if ttl_ms > 0 then
		redis.call('PEXPIRE', key, ttl_ms)
	end
	return redis.call('LLEN', key)
`)

// Store exposes the backing-store primitives over a shared Redis client.
type Store struct {
	client *redis.Client
}

// New creates a store over an existing Redis client. The client's lifecycle
// is managed by the owning module.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

// PushAndTrim prepends entry to the bounded log at logKey and trims it to cap
// entries atomically. A ttl > 0 refreshes the log's expiry.
func (s *Store) PushAndTrim(ctx context.Context, logKey, entry string, cap int, ttl time.Duration) error {
	if cap <= 0 {
		return fmt.Errorf("push and trim: cap must be positive, got %d", cap)
	}
	err := pushAndTrimScript.Run(ctx, s.client, []string{logKey}, entry, cap, ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("push and trim %s: %w", logKey, err)
	}
	return nil
}

// ReadRange returns up to limit entries from the log, newest first.
func (s *Store) ReadRange(ctx context.Context, logKey string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	entries, err := s.client.LRange(ctx, logKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("read range %s: %w", logKey, err)
	}
	return entries, nil
}

// SetAdd adds member to the set at setKey.
func (s *Store) SetAdd(ctx context.Context, setKey, member string) error {
	if err := s.client.SAdd(ctx, setKey, member).Err(); err != nil {
		return fmt.Errorf("set add %s: %w", setKey, err)
	}
	return nil
}

// SetRemove removes member from the set at setKey. Removing an absent member
// is not an error.
func (s *Store) SetRemove(ctx context.Context, setKey, member string) error {
	if err := s.client.SRem(ctx, setKey, member).Err(); err != nil {
		return fmt.Errorf("set remove %s: %w", setKey, err)
	}
	return nil
}

// SetMembers returns all members of the set at setKey.
func (s *Store) SetMembers(ctx context.Context, setKey string) ([]string, error) {
	members, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("set members %s: %w", setKey, err)
	}
	return members, nil
}

// SetCard returns the cardinality of the set at setKey.
func (s *Store) SetCard(ctx context.Context, setKey string) (int64, error) {
	n, err := s.client.SCard(ctx, setKey).Result()
	if err != nil {
		return 0, fmt.Errorf("set card %s: %w", setKey, err)
	}
	return n, nil
}

// Delete removes a key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Publish sends payload to every subscriber of channel.
func (s *Store) Publish(ctx context.Context, channel, payload string) error {
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe opens a subscription to the given channels. The returned handle
// supports Subscribe/Unsubscribe for channel switches and must be closed by
// the caller; closing it terminates the handle's delivery channel.
func (s *Store) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return s.client.Subscribe(ctx, channels...)
}

// Ping verifies the connection to Redis.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Client returns the underlying Redis client for collaborators that run
// their own atomic scripts against the same backing store.
func (s *Store) Client() *redis.Client {
	return s.client
}
