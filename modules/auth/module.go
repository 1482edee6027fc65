package auth

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/redis-chat-relay/domain/user"
)

// Module provides authentication as a mono module.
type Module struct {
	db        *gorm.DB
	service   *Service
	dbPath    string
	jwtConfig JWTConfig
}

// Compile-time interface check.
var _ mono.Module = (*Module)(nil)

// NewModule creates a new auth module backed by a sqlite user database.
func NewModule(dbPath string, jwtConfig JWTConfig) *Module {
	return &Module{
		dbPath:    dbPath,
		jwtConfig: jwtConfig,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Init opens the user database and builds the service.
func (m *Module) Init(_ mono.ServiceContainer) error {
	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open user database: %w", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		return fmt.Errorf("failed to migrate user database: %w", err)
	}

	m.db = db
	m.service = NewService(
		NewUserRepository(db),
		NewPasswordHasher(DefaultBcryptCost),
		NewJWTManager(m.jwtConfig),
	)
	log.Printf("[auth] User database ready at %s", m.dbPath)
	return nil
}

// Start starts the module (no-op for this module).
func (m *Module) Start(_ context.Context) error {
	log.Println("[auth] Module started")
	return nil
}

// Stop closes the user database.
func (m *Module) Stop(_ context.Context) error {
	if m.db != nil {
		if sqlDB, err := m.db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Printf("[auth] Error closing user database: %v", err)
			}
		}
	}
	log.Println("[auth] Module stopped")
	return nil
}

// GetService returns the auth service.
func (m *Module) GetService() *Service {
	return m.service
}
