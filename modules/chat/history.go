package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/modules/store"
)

// DefaultHistoryLimit is the bounded retention cap per room.
const DefaultHistoryLimit = 50

// History is the bounded, newest-first persistent log per room. The cap is
// enforced by trimming inside the same atomic step as every push, never by
// periodic sweep.
type History struct {
	store *store.Store
	cap   int
	ttl   time.Duration
}

// NewHistory creates a history log with the given cap and optional TTL.
// A ttl of 0 disables expiry.
func NewHistory(s *store.Store, cap int, ttl time.Duration) *History {
	if cap <= 0 {
		cap = DefaultHistoryLimit
	}
	return &History{
		store: s,
		cap:   cap,
		ttl:   ttl,
	}
}

// Cap returns the configured retention cap.
func (h *History) Cap() int {
	return h.cap
}

// Append persists a message-kind payload to the room's log. System and
// rate-limit notices are never persisted.
func (h *History) Append(ctx context.Context, msg domain.Message) error {
	if msg.Type != domain.KindMessage {
		return fmt.Errorf("append: refusing to persist %q payload", msg.Type)
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("append: %w", err)
	}
	return h.AppendRaw(ctx, msg.Room, string(payload))
}

// AppendRaw persists an already-serialized message payload, trimming the log
// to the cap and refreshing its TTL in the same atomic step.
func (h *History) AppendRaw(ctx context.Context, room, payload string) error {
	return h.store.PushAndTrim(ctx, store.HistoryKey(room), payload, h.cap, h.ttl)
}

// RecentRaw returns up to n serialized entries, newest first.
func (h *History) RecentRaw(ctx context.Context, room string, n int) ([]string, error) {
	if n > h.cap {
		n = h.cap
	}
	return h.store.ReadRange(ctx, store.HistoryKey(room), n)
}

// Recent returns up to n decoded entries, newest first. Callers wanting
// display order reverse to oldest-first. Entries that fail to decode are
// skipped rather than failing the whole read.
func (h *History) Recent(ctx context.Context, room string, n int) ([]domain.Message, error) {
	raw, err := h.RecentRaw(ctx, room, n)
	if err != nil {
		return nil, err
	}
	messages := make([]domain.Message, 0, len(raw))
	for _, entry := range raw {
		var msg domain.Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
