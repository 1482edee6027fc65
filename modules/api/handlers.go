package api

import (
	"errors"
	"log"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	domain "github.com/example/redis-chat-relay/domain/chat"
	"github.com/example/redis-chat-relay/modules/auth"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes() {
	m.app.Get("/health", m.healthHandler)
	m.app.Get("/metrics", m.metricsHandler)

	m.app.Post("/auth/register", m.register)
	m.app.Post("/auth/login", m.login)

	// Read-throughs to the store, out of relay scope.
	m.app.Get("/rooms", m.listRooms)
	m.app.Get("/history/:room", m.getHistory)
	m.app.Get("/presence/:room", m.getPresence)

	// WebSocket endpoint
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	m.app.Get("/ws/:room", websocket.New(m.handleWebSocket))
}

// healthHandler handles GET /health. The backing store is probed so a dead
// Redis surfaces here rather than on the first relay operation.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	if err := m.storeModule.HealthCheck(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(HealthResponse{
			Status: "unhealthy",
			Details: map[string]any{
				"store": err.Error(),
			},
		})
	}
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"active_sessions": m.relayModule.ActiveSessions(),
		},
	})
}

// register handles POST /auth/register.
func (m *Module) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	user, err := m.authService.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		status := fiber.StatusBadRequest
		if errors.Is(err, auth.ErrUserExists) {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(ErrorResponse{
			Error:   "registration_failed",
			Message: err.Error(),
		})
	}

	return c.Status(fiber.StatusCreated).JSON(UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		CreatedAt: user.CreatedAt,
	})
}

// login handles POST /auth/login.
func (m *Module) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request body",
		})
	}

	token, err := m.authService.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
				Error:   "invalid_credentials",
				Message: "Invalid username or password",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "login_failed",
			Message: "Failed to log in",
		})
	}

	return c.JSON(TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   m.authService.TokenDuration(),
	})
}

// listRooms handles GET /rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	rooms, err := m.registry.ActiveRooms(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "list_failed",
			Message: "Failed to list rooms",
		})
	}
	return c.JSON(RoomListResponse{Rooms: rooms})
}

// getHistory handles GET /history/:room. Entries are returned oldest first
// for display, newest entries winning when the room holds more than limit.
func (m *Module) getHistory(c *fiber.Ctx) error {
	room := c.Params("room")
	limit := clampLimit(c.QueryInt("limit", defaultHistoryLimit))

	messages, err := m.history.Recent(c.UserContext(), room, limit)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "history_failed",
			Message: "Failed to read history",
		})
	}

	// Stored newest first; reverse for display.
	items := make([]domain.HistoryItem, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		items = append(items, domain.HistoryItem{
			Username: messages[i].Username,
			Text:     messages[i].Text,
			TS:       messages[i].TS,
		})
	}
	return c.JSON(items)
}

// getPresence handles GET /presence/:room.
func (m *Module) getPresence(c *fiber.Ctx) error {
	room := c.Params("room")

	members, err := m.registry.Members(c.UserContext(), room)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "presence_failed",
			Message: "Failed to read presence",
		})
	}
	return c.JSON(PresenceResponse{
		Room:    room,
		Count:   int64(len(members)),
		Members: members,
	})
}

// handleWebSocket runs the relay for one connection at /ws/:room.
// Identity must resolve before the session starts; rejected connections are
// closed with a policy violation and mutate no state.
func (m *Module) handleWebSocket(c *websocket.Conn) {
	defer c.Close()

	room := c.Params("room")
	if err := domain.ValidateRoomName(room); err != nil {
		closePolicyViolation(c, "invalid room name")
		return
	}

	username, err := m.authService.ResolveIdentity(c.Query("username"), c.Query("token"))
	if err != nil {
		closePolicyViolation(c, "authentication required")
		return
	}

	log.Printf("[api] WebSocket client connected: %s (room %s)", username, room)
	m.relayModule.Serve(c, room, username)
	log.Printf("[api] WebSocket client disconnected: %s", username)
}

// closePolicyViolation sends a 1008 close frame before dropping the client.
func closePolicyViolation(c *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	if err := c.WriteMessage(websocket.CloseMessage, msg); err != nil {
		log.Printf("[api] Failed to send close frame: %v", err)
	}
}

// clampLimit bounds a client-supplied history limit to [1, maxHistoryLimit].
func clampLimit(limit int) int {
	if limit < 1 {
		return 1
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
