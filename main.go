package main

import (
	"context"
	"log"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	"github.com/hodanmillion/TapIn2025-sub000/modules/auth"
	"github.com/hodanmillion/TapIn2025-sub000/modules/bus"
	"github.com/hodanmillion/TapIn2025-sub000/modules/directory"
	"github.com/hodanmillion/TapIn2025-sub000/modules/gateway"
	"github.com/hodanmillion/TapIn2025-sub000/modules/history"
)

const shutdownTimeout = 30 * time.Second

func main() {
	log.Println("=== TapIn - Location-Scoped Chat Engine ===")

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
		mono.WithLogFormat(mono.LogFormatText),
	)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}
	logger := app.Logger()

	addr := ":" + port()

	// Create modules
	directoryModule := directory.NewModule(logger)
	historyModule, err := history.NewModule(logger)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	busModule := bus.NewModule(logger)
	tokens := auth.NewJWTManager(auth.DefaultJWTConfig())
	gatewayModule := gateway.NewModule(addr, directoryModule, historyModule, busModule, tokens, logger)

	// Register modules with the framework.
	// Order: backing stores first, then the bus, then the serving edge.
	app.Register(directoryModule) // Redis room directory
	app.Register(historyModule)   // SQLite message store
	app.Register(busModule)       // NATS broadcast bus
	app.Register(gatewayModule)   // HTTP/WebSocket edge

	// Start application
	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	printStartupInfo()

	// Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"mono-app": func(ctx context.Context) error {
				log.Println("Graceful shutdown initiated...")
				return app.Stop(ctx)
			},
		},
	)

	exitCode := <-wait
	log.Printf("Application exited with code: %d", exitCode)
	os.Exit(exitCode)
}

func port() string {
	if p := os.Getenv("PORT"); p != "" {
		return p
	}
	return "3000"
}

func printStartupInfo() {
	p := port()

	log.Println("")
	log.Println("Application started successfully!")
	log.Println("")
	log.Println("Architecture:")
	log.Println("  - HTTP Framework: Fiber with WebSocket support")
	log.Println("  - Broadcast Bus: NATS core pubsub (one topic per room)")
	log.Println("  - Room Directory: Redis (atomic find-or-create + member counters)")
	log.Println("  - Message Store: SQLite via GORM")
	log.Println("")
	log.Printf("REST API Endpoints (http://localhost:%s):", p)
	log.Println("  GET    /health                              - Health check")
	log.Println("  POST   /api/v1/auth/token                   - Issue a dev token")
	log.Println("  GET    /api/v1/rooms/:id                    - Room status")
	log.Println("  GET    /api/v1/rooms/:id/history            - Message history")
	log.Println("  GET    /api/v1/cells/:id/neighbors          - Hex cell neighborhood")
	log.Println("  PATCH  /api/v1/messages/:id                 - Edit own message")
	log.Println("  DELETE /api/v1/messages/:id                 - Delete own message")
	log.Println("  POST   /api/v1/messages/:id/reactions       - Add a reaction")
	log.Println("  DELETE /api/v1/messages/:id/reactions/:emoji - Remove a reaction")
	log.Println("")
	log.Printf("WebSocket Endpoint (ws://localhost:%s/ws):", p)
	log.Println("  First frame must be a join (token + room_id or lat/lon[+resolution])")
	log.Println("  Frame types: join, message, location, typing")
	log.Println("")
	log.Println("Press Ctrl+C to shutdown gracefully")
}
