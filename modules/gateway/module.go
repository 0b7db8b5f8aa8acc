package gateway

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/hodanmillion/TapIn2025-sub000/modules/auth"
	"github.com/hodanmillion/TapIn2025-sub000/modules/bus"
	"github.com/hodanmillion/TapIn2025-sub000/modules/directory"
	"github.com/hodanmillion/TapIn2025-sub000/modules/history"
)

// Module serves the WebSocket endpoint and the REST API using Fiber.
type Module struct {
	app      *fiber.App
	gateway  *Gateway
	handlers *Handlers
	addr     string

	directoryModule *directory.Module
	historyModule   *history.Module
	busModule       *bus.Module
	tokens          *auth.JWTManager
	logger          types.Logger
}

// NewModule creates a new gateway module.
func NewModule(addr string, dir *directory.Module, hist *history.Module, busModule *bus.Module, tokens *auth.JWTManager, moduleLogger types.Logger) *Module {
	return &Module{
		addr:            addr,
		directoryModule: dir,
		historyModule:   hist,
		busModule:       busModule,
		tokens:          tokens,
		logger:          moduleLogger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "gateway"
}

// Start initializes and starts the HTTP server.
func (m *Module) Start(ctx context.Context) error {
	m.gateway = New(
		m.directoryModule.Directory(),
		m.historyModule.Repository(),
		m.busModule.Bus(),
		m.tokens,
		m.logger,
	)
	m.handlers = NewHandlers(m.gateway)

	m.app = fiber.New(fiber.Config{
		AppName:               "TapIn Gateway",
		DisableStartupMessage: true,
		ErrorHandler:          m.errorHandler,
	})

	m.app.Use(recover.New())
	m.app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} ${method} ${path} ${latency}\n",
	}))

	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:8080"
	}
	m.app.Use(cors.New(cors.Config{
		AllowOrigins: allowedOrigins,
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))

	m.registerRoutes()

	// Start server in goroutine with startup error detection
	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("gateway failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
		// Server started successfully
	}

	m.logger.Info("Gateway started", "addr", m.addr)
	return nil
}

// Stop closes live sessions and shuts down the HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.gateway != nil {
		m.gateway.CloseAll()
	}
	if m.app != nil {
		if err := m.app.ShutdownWithContext(ctx); err != nil {
			return fmt.Errorf("failed to shutdown server: %w", err)
		}
	}
	m.logger.Info("Gateway stopped")
	return nil
}

// Health reports the gateway's health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	sessions := 0
	if m.gateway != nil {
		sessions = m.gateway.SessionCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "gateway serving",
		Details: map[string]any{
			"addr":     m.addr,
			"sessions": sessions,
		},
	}
}

// registerRoutes sets up all HTTP and WebSocket routes.
func (m *Module) registerRoutes() {
	m.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "tapin-gateway",
		})
	})

	// WebSocket upgrade middleware
	m.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	m.app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		m.gateway.HandleConnection(context.Background(), c)
	}))

	api := m.app.Group("/api/v1")
	api.Post("/auth/token", m.handlers.IssueToken)
	api.Get("/rooms/:id", m.handlers.GetRoom)
	api.Get("/rooms/:id/history", m.handlers.GetRoomHistory)
	api.Get("/cells/:id/neighbors", m.handlers.GetCellNeighbors)
	api.Patch("/messages/:id", m.handlers.EditMessage)
	api.Delete("/messages/:id", m.handlers.DeleteMessage)
	api.Post("/messages/:id/reactions", m.handlers.AddReaction)
	api.Delete("/messages/:id/reactions/:emoji", m.handlers.RemoveReaction)
}

// errorHandler handles errors globally.
func (m *Module) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	m.logger.Error("HTTP error", "code", code, "message", message, "error", err)

	return c.Status(code).JSON(fiber.Map{
		"error": message,
	})
}
