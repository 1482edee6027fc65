package ratelimit

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
	"github.com/redis/go-redis/v9"
)

// Module provides the distributed rate limiter as a mono module.
type Module struct {
	client    *redis.Client
	limiter   *Limiter
	config    Config
	redisAddr string
}

// Compile-time interface check.
var _ mono.Module = (*Module)(nil)

// NewModule creates a new rate limiting module. Non-positive bucket
// parameters fall back to the defaults: a zero refill rate would divide by
// zero inside the bucket script and fail every admission decision.
func NewModule(redisAddr string, config Config) *Module {
	def := DefaultConfig()
	if config.Burst <= 0 {
		log.Printf("[rate-limiter] Warning: invalid burst %d, using default: %d", config.Burst, def.Burst)
		config.Burst = def.Burst
	}
	if config.RefillPerSec <= 0 {
		log.Printf("[rate-limiter] Warning: invalid refill rate %g, using default: %g", config.RefillPerSec, def.RefillPerSec)
		config.RefillPerSec = def.RefillPerSec
	}
	return &Module{
		redisAddr: redisAddr,
		config:    config,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "rate-limiter"
}

// Init initializes the Redis client and creates the limiter.
func (m *Module) Init(_ mono.ServiceContainer) error {
	m.client = redis.NewClient(&redis.Options{
		Addr: m.redisAddr,
	})

	ctx := context.Background()
	if err := m.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	m.limiter = NewLimiter(m.client, m.config, "rl:")
	log.Printf("[rate-limiter] Connected to Redis at %s (burst: %d, refill: %g/s)",
		m.redisAddr, m.config.Burst, m.config.RefillPerSec)
	return nil
}

// Start starts the module (no-op for this module).
func (m *Module) Start(_ context.Context) error {
	log.Println("[rate-limiter] Module started")
	return nil
}

// Stop closes the Redis connection.
func (m *Module) Stop(_ context.Context) error {
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Printf("[rate-limiter] Error closing Redis connection: %v", err)
		}
	}
	log.Println("[rate-limiter] Module stopped")
	return nil
}

// GetLimiter returns the limiter instance.
func (m *Module) GetLimiter() *Limiter {
	return m.limiter
}

// HealthCheck verifies the Redis connection is healthy.
func (m *Module) HealthCheck(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("Redis client not initialized")
	}
	return m.client.Ping(ctx).Err()
}
