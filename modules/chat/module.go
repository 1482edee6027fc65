package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/example/redis-chat-relay/modules/store"
	"github.com/go-monolith/mono"
)

// Module wires the room registry and history log over the shared store.
type Module struct {
	storeModule *store.Module
	registry    *Registry
	history     *History
	historyCap  int
	historyTTL  time.Duration
}

// Compile-time interface check.
var _ mono.Module = (*Module)(nil)

// NewModule creates a new chat module. The store module must be registered
// before this one so its client exists by the time Init runs.
func NewModule(storeModule *store.Module, historyCap int, historyTTL time.Duration) *Module {
	return &Module{
		storeModule: storeModule,
		historyCap:  historyCap,
		historyTTL:  historyTTL,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Init builds the registry and history over the store.
func (m *Module) Init(_ mono.ServiceContainer) error {
	s := m.storeModule.GetStore()
	if s == nil {
		return fmt.Errorf("store module not initialized")
	}
	m.registry = NewRegistry(s)
	m.history = NewHistory(s, m.historyCap, m.historyTTL)
	log.Printf("[chat] History cap: %d, TTL: %s", m.history.Cap(), m.historyTTL)
	return nil
}

// Start starts the module (no-op for this module).
func (m *Module) Start(_ context.Context) error {
	log.Println("[chat] Module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	log.Println("[chat] Module stopped")
	return nil
}

// GetRegistry returns the room registry.
func (m *Module) GetRegistry() *Registry {
	return m.registry
}

// GetHistory returns the history log.
func (m *Module) GetHistory() *History {
	return m.history
}
