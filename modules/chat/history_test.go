package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	domain "github.com/example/redis-chat-relay/domain/chat"
)

func TestHistory_AppendAndRecent(t *testing.T) {
	s, room, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	history := NewHistory(s, 50, time.Hour)

	for i := 0; i < 3; i++ {
		msg := domain.NewUserMessage(room, "alice", fmt.Sprintf("message %d", i))
		if err := history.Append(ctx, msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	messages, err := history.Recent(ctx, room, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("Recent() = %d messages, want 3", len(messages))
	}

	// Newest first.
	if messages[0].Text != "message 2" {
		t.Errorf("messages[0].Text = %q, want %q", messages[0].Text, "message 2")
	}
	if messages[2].Text != "message 0" {
		t.Errorf("messages[2].Text = %q, want %q", messages[2].Text, "message 0")
	}
}

func TestHistory_CapEnforced(t *testing.T) {
	s, room, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	history := NewHistory(s, 5, 0)

	for i := 0; i < 12; i++ {
		msg := domain.NewUserMessage(room, "alice", fmt.Sprintf("message %d", i))
		if err := history.Append(ctx, msg); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	messages, err := history.Recent(ctx, room, 100)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 5 {
		t.Fatalf("Recent() = %d messages, want cap 5", len(messages))
	}
	if messages[0].Text != "message 11" {
		t.Errorf("messages[0].Text = %q, want %q", messages[0].Text, "message 11")
	}
	if messages[4].Text != "message 7" {
		t.Errorf("messages[4].Text = %q, want %q", messages[4].Text, "message 7")
	}
}

func TestHistory_RefusesNotices(t *testing.T) {
	s, room, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	history := NewHistory(s, 50, 0)

	if err := history.Append(ctx, domain.NewSystemNotice(room, "alice", domain.EventJoin)); err == nil {
		t.Error("Append() persisted a system notice")
	}
	if err := history.Append(ctx, domain.NewRateLimitNotice(room, "alice", "slow down")); err == nil {
		t.Error("Append() persisted a rate limit notice")
	}

	messages, err := history.Recent(ctx, room, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("Recent() = %d messages after refused appends, want 0", len(messages))
	}
}

func TestHistory_RecentSkipsCorruptEntries(t *testing.T) {
	s, room, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	history := NewHistory(s, 50, 0)

	if err := history.Append(ctx, domain.NewUserMessage(room, "alice", "good")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := history.AppendRaw(ctx, room, "{not json"); err != nil {
		t.Fatalf("AppendRaw() error = %v", err)
	}

	messages, err := history.Recent(ctx, room, 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("Recent() = %d messages, want 1", len(messages))
	}
	if messages[0].Text != "good" {
		t.Errorf("messages[0].Text = %q, want %q", messages[0].Text, "good")
	}
}

func TestNewHistory_DefaultsCap(t *testing.T) {
	history := NewHistory(nil, 0, 0)
	if history.Cap() != DefaultHistoryLimit {
		t.Errorf("Cap() = %d, want %d", history.Cap(), DefaultHistoryLimit)
	}
}
