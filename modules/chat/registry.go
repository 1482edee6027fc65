// Package chat keeps room membership and bounded message history in the
// shared backing store, so every server process behind the same Redis sees
// one consistent view of who is where and what was said.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	domain "github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/modules/store"
)

// Registry tracks active rooms and per-room membership sets. Rooms exist
// implicitly: the first join materializes a room, the last leave deletes it.
type Registry struct {
	store *store.Store
}

// NewRegistry creates a registry over the shared store.
func NewRegistry(s *store.Store) *Registry {
	return &Registry{store: s}
}

// Join adds username to room's membership and publishes a join notice.
// Membership is made durable before the notice is published, so other
// members never see a join notice for a member absent from presence.
func (r *Registry) Join(ctx context.Context, room, username string) error {
	if err := r.store.SetAdd(ctx, store.MembersKey(room), username); err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}
	if err := r.store.SetAdd(ctx, store.RoomsSetKey, room); err != nil {
		return fmt.Errorf("join %s: %w", room, err)
	}
	return r.publishNotice(ctx, domain.NewSystemNotice(room, username, domain.EventJoin))
}

// Leave removes username from room's membership, garbage-collects the room
// when it empties, then publishes a leave notice. Removing an already-absent
// member is harmless, so Leave is safe to call after a partially failed Join
// and safe to call twice.
func (r *Registry) Leave(ctx context.Context, room, username string) error {
	if err := r.store.SetRemove(ctx, store.MembersKey(room), username); err != nil {
		return fmt.Errorf("leave %s: %w", room, err)
	}
	n, err := r.store.SetCard(ctx, store.MembersKey(room))
	if err != nil {
		return fmt.Errorf("leave %s: %w", room, err)
	}
	if n == 0 {
		if err := r.store.SetRemove(ctx, store.RoomsSetKey, room); err != nil {
			return fmt.Errorf("leave %s: %w", room, err)
		}
		if err := r.store.Delete(ctx, store.MembersKey(room)); err != nil {
			return fmt.Errorf("leave %s: %w", room, err)
		}
	}
	return r.publishNotice(ctx, domain.NewSystemNotice(room, username, domain.EventLeave))
}

// Switch moves username from one room to another. The two rooms' membership
// sets are independent keys, so the move is not atomic: a brief window
// exists where the identity is a member of neither room.
func (r *Registry) Switch(ctx context.Context, username, fromRoom, toRoom string) error {
	if err := r.Leave(ctx, fromRoom, username); err != nil {
		return err
	}
	return r.Join(ctx, toRoom, username)
}

// ActiveRooms returns the names of rooms with at least one member, sorted.
func (r *Registry) ActiveRooms(ctx context.Context) ([]string, error) {
	rooms, err := r.store.SetMembers(ctx, store.RoomsSetKey)
	if err != nil {
		return nil, err
	}
	sort.Strings(rooms)
	return rooms, nil
}

// Members returns the identities present in room, sorted.
func (r *Registry) Members(ctx context.Context, room string) ([]string, error) {
	members, err := r.store.SetMembers(ctx, store.MembersKey(room))
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// MemberCount returns the number of identities present in room.
func (r *Registry) MemberCount(ctx context.Context, room string) (int64, error) {
	return r.store.SetCard(ctx, store.MembersKey(room))
}

// publishNotice broadcasts a system notice on the room's channel. Notices
// are ephemeral: broadcast only, never persisted.
func (r *Registry) publishNotice(ctx context.Context, notice domain.Message) error {
	payload, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("marshal %s notice: %w", notice.Event, err)
	}
	return r.store.Publish(ctx, store.RoomChannel(notice.Room), string(payload))
}
