package relay

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-monolith/mono"

	"github.com/example/redis-chat-relay/metrics"
	"github.com/example/redis-chat-relay/modules/chat"
	"github.com/example/redis-chat-relay/modules/ratelimit"
	"github.com/example/redis-chat-relay/modules/store"
)

// Module is the relay coordinator: it wires new connections into sessions
// and guarantees each one is torn down before the connection is released.
type Module struct {
	storeModule *store.Module
	chatModule  *chat.Module
	rlModule    *ratelimit.Module

	logger   *slog.Logger
	active   atomic.Int64
	sessions sync.WaitGroup

	// transportsMu guards transports, the live connections closed on Stop
	// so idle clients cannot hold shutdown to the timeout.
	transportsMu sync.Mutex
	transports   map[Transport]struct{}

	cancel context.CancelFunc
	ctx    context.Context
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the relay module. Store, chat and rate-limiter modules
// must be registered before this one.
func NewModule(storeModule *store.Module, chatModule *chat.Module, rlModule *ratelimit.Module) *Module {
	return &Module{
		storeModule: storeModule,
		chatModule:  chatModule,
		rlModule:    rlModule,
		logger:      slog.Default(),
		transports:  make(map[Transport]struct{}),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Init verifies the modules this one composes are ready.
func (m *Module) Init(_ mono.ServiceContainer) error {
	if m.storeModule.GetStore() == nil {
		return fmt.Errorf("store module not initialized")
	}
	if m.chatModule.GetRegistry() == nil || m.chatModule.GetHistory() == nil {
		return fmt.Errorf("chat module not initialized")
	}
	if m.rlModule.GetLimiter() == nil {
		return fmt.Errorf("rate-limiter module not initialized")
	}
	return nil
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.ctx, m.cancel = context.WithCancel(context.Background())
	log.Println("[relay] Module started")
	return nil
}

// Stop cancels all sessions, closes their transports so receive loops
// blocked on idle clients unblock immediately, and waits for teardown to
// finish.
func (m *Module) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	m.transportsMu.Lock()
	for transport := range m.transports {
		transport.Close()
	}
	m.transportsMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.sessions.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		log.Printf("[relay] Shutdown timed out with %d sessions active", m.active.Load())
		return ctx.Err()
	}
	log.Println("[relay] Module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"active_sessions": m.active.Load(),
		},
	}
}

// Serve runs one connection as a session until it closes. The transport is
// assumed to carry an already-authenticated identity; Serve blocks and all
// cleanup has completed when it returns.
func (m *Module) Serve(transport Transport, room, username string) {
	session := NewSession(
		transport,
		room,
		username,
		m.storeModule.GetStore(),
		m.chatModule.GetRegistry(),
		m.chatModule.GetHistory(),
		m.rlModule.GetLimiter(),
		m.logger,
	)

	m.sessions.Add(1)
	m.active.Add(1)
	metrics.WSConnections.Inc()
	m.transportsMu.Lock()
	m.transports[transport] = struct{}{}
	m.transportsMu.Unlock()
	defer func() {
		m.transportsMu.Lock()
		delete(m.transports, transport)
		m.transportsMu.Unlock()
		metrics.WSConnections.Dec()
		m.active.Add(-1)
		m.sessions.Done()
	}()

	session.Run(m.ctx)
}

// ActiveSessions returns the number of sessions currently running.
func (m *Module) ActiveSessions() int64 {
	return m.active.Load()
}
