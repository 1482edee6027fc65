// Package relay bridges one client connection to the shared room channels:
// a receive loop consuming client frames and a reader forwarding broadcast
// traffic, coordinated by cancellation and a single serialized send path.
package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/prometheus/client_golang/prometheus"

	domain "github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/metrics"
	"github.com/example/redis-chat-relay/modules/chat"
	"github.com/example/redis-chat-relay/modules/ratelimit"
	"github.com/example/redis-chat-relay/modules/store"
	"github.com/redis/go-redis/v9"
)

// primeLimit caps the backlog sent to a session entering a room.
const primeLimit = 20

// teardownTimeout bounds the best-effort cleanup on disconnect.
const teardownTimeout = 5 * time.Second

// Transport is the bidirectional client connection a session drives.
// *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Session owns one client connection's lifecycle: join on entry, a reader
// forwarding subscription payloads verbatim, a receive loop admitting and
// publishing client messages, room switches, and idempotent teardown.
type Session struct {
	transport Transport
	username  string

	// room is the session's current room. Only the receive loop stores it;
	// the reader loads it to drop payloads from a room the session has
	// already left.
	room atomic.Value

	store    *store.Store
	registry *chat.Registry
	history  *chat.History
	limiter  *ratelimit.Limiter
	logger   *slog.Logger

	// writeMu serializes all sends: the reader and the receive loop share
	// the outbound transport and must not interleave writes. The backlog
	// prime holds it for the whole batch so broadcast traffic cannot split
	// the backlog.
	writeMu    sync.Mutex
	sub        *redis.PubSub
	readerDone chan struct{}
}

// NewSession creates a session for an authenticated identity entering room.
func NewSession(transport Transport, room, username string, s *store.Store, registry *chat.Registry, history *chat.History, limiter *ratelimit.Limiter, logger *slog.Logger) *Session {
	session := &Session{
		transport:  transport,
		username:   username,
		store:      s,
		registry:   registry,
		history:    history,
		limiter:    limiter,
		logger:     logger.With("username", username),
		readerDone: make(chan struct{}),
	}
	session.room.Store(room)
	return session
}

// currentRoom returns the room the session is in right now.
func (s *Session) currentRoom() string {
	return s.room.Load().(string)
}

// Run drives the session from ACTIVE to CLOSED. It returns when the client
// disconnects, an unrecoverable error occurs, or ctx is canceled; teardown
// has completed by the time it returns.
func (s *Session) Run(ctx context.Context) {
	room := s.currentRoom()
	if err := s.registry.Join(ctx, room, s.username); err != nil {
		s.logger.Error("join failed", "room", room, "error", err)
		// Leave is idempotent and safe after a partial join.
		if err := s.registry.Leave(ctx, room, s.username); err != nil {
			s.logger.Warn("cleanup after failed join", "room", room, "error", err)
		}
		close(s.readerDone)
		return
	}

	s.sub = s.store.Subscribe(ctx, store.RoomChannel(room))
	defer s.teardown()

	// Wait for the subscription confirmation so the backlog and live traffic
	// cannot race past an unestablished subscription.
	if _, err := s.sub.Receive(ctx); err != nil {
		s.logger.Error("subscribe failed", "room", room, "error", err)
		close(s.readerDone)
		return
	}
	go s.reader()

	s.logger.Info("session active", "room", room)

	if err := s.prime(ctx, room); err != nil {
		s.logger.Error("backlog send failed", "room", room, "error", err)
		return
	}

	s.receiveLoop(ctx)
}

// reader forwards subscription payloads to the client. Payloads addressed
// to a room the session has left are dropped, so stale traffic buffered
// across a switch never reaches the client. The reader stops when the
// subscription is closed or the transport rejects a write.
func (s *Session) reader() {
	defer close(s.readerDone)
	for msg := range s.sub.Channel() {
		if !s.forCurrentRoom(msg.Payload) {
			continue
		}
		if err := s.send([]byte(msg.Payload)); err != nil {
			s.logger.Debug("reader stopped", "error", err)
			return
		}
	}
}

// forCurrentRoom reports whether a broadcast payload belongs to the
// session's current room. Payloads that do not carry a room are dropped.
func (s *Session) forCurrentRoom(payload string) bool {
	var envelope struct {
		Room string `json:"room"`
	}
	if err := json.Unmarshal([]byte(payload), &envelope); err != nil {
		return false
	}
	return envelope.Room == s.currentRoom()
}

// receiveLoop consumes client frames one at a time until disconnect or a
// fatal store error.
func (s *Session) receiveLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		_, raw, err := s.transport.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error("read error", "error", err)
			}
			return
		}

		f := decodeFrame(raw)
		switch f.kind {
		case frameMessage:
			if f.text == "" || len(f.text) > domain.MaxMessageLength {
				continue
			}
			if err := s.handleMessage(ctx, f.text); err != nil {
				s.logger.Error("message handling failed", "room", s.currentRoom(), "error", err)
				return
			}
		case frameSwitch:
			if err := s.handleSwitch(ctx, f.room); err != nil {
				s.logger.Error("room switch failed", "target", f.room, "error", err)
				return
			}
		case frameUnknown:
			// Dropped without error.
		}
	}
}

// handleMessage gates one client message through admission control, then
// publishes and persists it with server-assigned room, identity and
// timestamp. Store failures are fatal to this session only.
func (s *Session) handleMessage(ctx context.Context, text string) error {
	room := s.currentRoom()
	res, err := s.limiter.Allow(ctx, room, s.username)
	if err != nil {
		return err
	}
	if !res.Allowed {
		metrics.RateLimitBlocks.Inc()
		return s.sendMessage(domain.NewRateLimitNotice(room, s.username, "rate limit exceeded, slow down"))
	}

	payload, err := json.Marshal(domain.NewUserMessage(room, s.username, text))
	if err != nil {
		return err
	}

	timer := prometheus.NewTimer(metrics.PublishLatency)
	defer timer.ObserveDuration()

	if err := s.store.Publish(ctx, store.RoomChannel(room), string(payload)); err != nil {
		return err
	}
	if err := s.history.AppendRaw(ctx, room, string(payload)); err != nil {
		return err
	}
	metrics.MessagesPublished.Inc()
	return nil
}

// handleSwitch moves the session to target: leave old membership, join new,
// move the subscription, re-prime with the new room's backlog. The session
// adopts the target room the moment the membership move lands, so a failure
// mid-switch still tears down against the room that actually holds the
// membership. Malformed and no-op switches are silently ignored; store
// failures propagate.
func (s *Session) handleSwitch(ctx context.Context, target string) error {
	from := s.currentRoom()
	if target == "" || target == from || domain.ValidateRoomName(target) != nil {
		return nil
	}

	if err := s.registry.Switch(ctx, s.username, from, target); err != nil {
		return err
	}
	s.room.Store(target)

	if err := s.sub.Unsubscribe(ctx, store.RoomChannel(from)); err != nil {
		return err
	}
	if err := s.sub.Subscribe(ctx, store.RoomChannel(target)); err != nil {
		return err
	}

	s.logger.Info("switched room", "from", from, "to", target)
	return s.prime(ctx, target)
}

// prime sends the room's recent backlog, oldest first, ahead of live
// traffic. The write lock is held across the whole batch so the backlog
// reaches the client contiguously.
func (s *Session) prime(ctx context.Context, room string) error {
	n := primeLimit
	if c := s.history.Cap(); c < n {
		n = c
	}
	backlog, err := s.history.RecentRaw(ctx, room, n)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for i := len(backlog) - 1; i >= 0; i-- {
		if err := s.write([]byte(backlog[i])); err != nil {
			return err
		}
	}
	return nil
}

// teardown releases everything the session holds. Every step is attempted
// even if earlier ones fail; failures are logged, never propagated, so one
// failing step cannot skip the others. The transport is closed before the
// reader is awaited, so a reader stalled on a dead client cannot wedge the
// teardown.
func (s *Session) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	room := s.currentRoom()
	if err := s.registry.Leave(ctx, room, s.username); err != nil {
		s.logger.Warn("teardown: leave failed", "room", room, "error", err)
	}
	if err := s.sub.Unsubscribe(ctx, store.RoomChannel(room)); err != nil {
		s.logger.Warn("teardown: unsubscribe failed", "error", err)
	}
	if err := s.sub.Close(); err != nil {
		s.logger.Warn("teardown: subscription close failed", "error", err)
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("teardown: transport close", "error", err)
	}
	<-s.readerDone
	s.logger.Info("session closed", "room", room)
}

// sendMessage marshals and sends a payload to this client only.
func (s *Session) sendMessage(msg domain.Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.send(payload)
}

// send writes one frame to the client under the shared write lock.
func (s *Session) send(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.write(payload)
}

// write writes one frame. Callers must hold writeMu.
func (s *Session) write(payload []byte) error {
	return s.transport.WriteMessage(websocket.TextMessage, payload)
}
