// Package api exposes the service over HTTP: the websocket relay endpoint,
// the read-through endpoints for history, presence and rooms, and the auth
// endpoints issuing tokens.
package api

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/redis-chat-relay/modules/auth"
	"github.com/example/redis-chat-relay/modules/chat"
	"github.com/example/redis-chat-relay/modules/relay"
	"github.com/example/redis-chat-relay/modules/store"
)

// Module is the HTTP API module with WebSocket support.
type Module struct {
	app  *fiber.App
	port int

	storeModule *store.Module
	authModule  *auth.Module
	chatModule  *chat.Module
	relayModule *relay.Module

	authService *auth.Service
	registry    *chat.Registry
	history     *chat.History
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates a new API module. Store, auth, chat and relay modules
// must be registered before this one.
func NewModule(port int, storeModule *store.Module, authModule *auth.Module, chatModule *chat.Module, relayModule *relay.Module) *Module {
	return &Module{
		port:        port,
		storeModule: storeModule,
		authModule:  authModule,
		chatModule:  chatModule,
		relayModule: relayModule,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Init resolves the services this module fronts.
func (m *Module) Init(_ mono.ServiceContainer) error {
	m.authService = m.authModule.GetService()
	m.registry = m.chatModule.GetRegistry()
	m.history = m.chatModule.GetHistory()
	if m.authService == nil || m.registry == nil || m.history == nil {
		return fmt.Errorf("api dependencies not initialized")
	}
	return nil
}

// Start initializes and runs the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	m.app = fiber.New(fiber.Config{
		AppName:               "redis-chat-relay",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	m.app.Use(recover.New())
	m.app.Use(cors.New())
	m.app.Use(loggerMiddleware())

	m.setupRoutes()

	go func() {
		if err := m.app.Listen(fmt.Sprintf(":%d", m.port)); err != nil {
			log.Printf("[api] HTTP server error: %v", err)
		}
	}()

	log.Printf("[api] HTTP server started on :%d", m.port)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{
			"port":            m.port,
			"active_sessions": m.relayModule.ActiveSessions(),
		},
	}
}

// metricsHandler serves the prometheus registry at GET /metrics.
func (m *Module) metricsHandler(c *fiber.Ctx) error {
	return adaptor.HTTPHandler(promhttp.Handler())(c)
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		err := c.Next()
		log.Printf("[api] %s %s %d", c.Method(), c.Path(), c.Response().StatusCode())
		return err
	}
}
