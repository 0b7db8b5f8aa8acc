package history

import (
	"context"
	"fmt"
	"os"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module owns the message store database.
type Module struct {
	db     *gorm.DB
	repo   *Repository
	dbPath string
	logger types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*Module)(nil)
var _ mono.HealthCheckableModule = (*Module)(nil)

// NewModule opens the message database and runs migrations. DB_PATH
// overrides the default file location.
func NewModule(moduleLogger types.Logger) (*Module, error) {
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "messages.db"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open message database: %w", err)
	}
	if err := db.AutoMigrate(&StoredMessage{}, &StoredReaction{}); err != nil {
		return nil, fmt.Errorf("failed to migrate message database: %w", err)
	}

	return &Module{
		db:     db,
		repo:   NewRepository(db),
		dbPath: dbPath,
		logger: moduleLogger,
	}, nil
}

// Name returns the module name.
func (m *Module) Name() string {
	return "history"
}

// Start logs readiness; the database is opened at construction so dependent
// modules can be wired before the application starts.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("History module started", "db", m.dbPath)
	return nil
}

// Stop closes the database.
func (m *Module) Stop(_ context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close message database: %w", err)
	}
	m.logger.Info("History module stopped")
	return nil
}

// Health pings the database.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("failed to get sql.DB: %v", err)}
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{Healthy: false, Message: fmt.Sprintf("database ping failed: %v", err)}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"driver": "sqlite", "path": m.dbPath},
	}
}

// Repository returns the message repository.
func (m *Module) Repository() *Repository {
	return m.repo
}
