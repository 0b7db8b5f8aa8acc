package directory

import (
	"context"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"
)

// Module owns the Redis connection backing the room directory.
type Module struct {
	client    *redis.Client
	directory *Directory
	addr      string
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the directory module. REDIS_ADDR overrides the default
// address.
func NewModule(logger types.Logger) *Module {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &Module{
		client:    client,
		directory: New(NewRedisStore(client)),
		addr:      addr,
		logger:    logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "directory"
}

// Start verifies the Redis connection.
func (m *Module) Start(ctx context.Context) error {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	m.logger.Info("Directory module started", "redis", m.addr)
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if err := m.client.Close(); err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}
	m.logger.Info("Directory module stopped")
	return nil
}

// Health reports Redis reachability.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if err := m.client.Ping(ctx).Err(); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("redis ping failed: %v", err),
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"redis": m.addr},
	}
}

// Directory returns the room directory service.
func (m *Module) Directory() *Directory {
	return m.directory
}
