package bus

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/nats-io/nats.go"
)

// Module owns the NATS connection behind the broadcast bus.
type Module struct {
	bus     *NATSBus
	nc      *nats.Conn
	natsURL string
	logger  types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule creates the bus module. NATS_URL overrides the default server.
func NewModule(logger types.Logger) *Module {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}
	return &Module{
		bus:     NewNATSBus(),
		natsURL: natsURL,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "bus"
}

// Start connects to NATS.
func (m *Module) Start(_ context.Context) error {
	nc, err := nats.Connect(m.natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	m.nc = nc
	m.bus.Connect(nc)
	m.logger.Info("Bus module started", "nats", m.natsURL)
	return nil
}

// Stop drains and closes the NATS connection.
func (m *Module) Stop(_ context.Context) error {
	if m.nc != nil {
		if err := m.nc.Drain(); err != nil {
			m.nc.Close()
			return fmt.Errorf("failed to drain NATS connection: %w", err)
		}
	}
	m.logger.Info("Bus module stopped")
	return nil
}

// Health reports NATS connectivity.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.nc == nil || !m.nc.IsConnected() {
		return mono.HealthStatus{Healthy: false, Message: "not connected to NATS"}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"nats": m.natsURL},
	}
}

// Bus returns the broadcast bus.
func (m *Module) Bus() Bus {
	return m.bus
}
