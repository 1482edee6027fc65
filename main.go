package main

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-monolith/mono"

	apimod "github.com/example/redis-chat-relay/modules/api"
	authmod "github.com/example/redis-chat-relay/modules/auth"
	chatmod "github.com/example/redis-chat-relay/modules/chat"
	ratelimitmod "github.com/example/redis-chat-relay/modules/ratelimit"
	relaymod "github.com/example/redis-chat-relay/modules/relay"
	storemod "github.com/example/redis-chat-relay/modules/store"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration from environment
	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	httpPort := getEnvInt("HTTP_PORT", 8000)
	dbPath := getEnv("DB_PATH", "./users.db")
	historyCap := getEnvInt("CHAT_HISTORY_LIMIT", 50)
	historyTTL := getEnvDuration("HISTORY_TTL", 168*time.Hour)
	rateBurst := getEnvInt("RATE_LIMIT_BURST", 20)
	ratePerSec := getEnvFloat("RATE_LIMIT_PER_SEC", 10)
	jwtSecret := getEnv("JWT_SECRET", "")
	jwtExpires := getEnvDuration("JWT_EXPIRES", 15*time.Minute)

	log.Println("=== Redis Chat Relay ===")
	log.Printf("Redis: %s", redisAddr)
	log.Printf("HTTP Port: %d", httpPort)
	log.Printf("History cap: %d, TTL: %s", historyCap, historyTTL)
	log.Printf("Rate limit: burst %d, refill %g/s", rateBurst, ratePerSec)

	jwtConfig := authmod.DefaultJWTConfig()
	if jwtSecret != "" {
		jwtConfig.SecretKey = jwtSecret
	}
	jwtConfig.AccessTokenDuration = jwtExpires

	// Create modules
	storeModule := storemod.NewModule(redisAddr)
	rateLimitModule := ratelimitmod.NewModule(redisAddr, ratelimitmod.Config{
		Burst:        rateBurst,
		RefillPerSec: ratePerSec,
	})
	chatModule := chatmod.NewModule(storeModule, historyCap, historyTTL)
	relayModule := relaymod.NewModule(storeModule, chatModule, rateLimitModule)
	authModule := authmod.NewModule(dbPath, jwtConfig)
	apiModule := apimod.NewModule(httpPort, storeModule, authModule, chatModule, relayModule)

	// Create mono application
	app, err := mono.NewMonoApplication(
		mono.WithShutdownTimeout(shutdownTimeout),
		mono.WithLogLevel(mono.LogLevelInfo),
	)
	if err != nil {
		log.Fatalf("Failed to create mono application: %v", err)
	}

	// Register modules: independent modules first, then dependents.
	app.Register(storeModule)
	app.Register(rateLimitModule)
	app.Register(chatModule)
	app.Register(relayModule)
	app.Register(authModule)
	app.Register(apiModule)

	// Start modules (this handles Init and Start)
	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start app: %v", err)
	}

	log.Println("=== Application Started ===")
	log.Printf("API available at http://localhost:%d", httpPort)
	log.Println("Endpoints:")
	log.Println("  GET    /health              - Health check")
	log.Println("  GET    /metrics             - Prometheus metrics")
	log.Println("  POST   /auth/register       - Create account")
	log.Println("  POST   /auth/login          - Issue access token")
	log.Println("  GET    /rooms               - List active rooms")
	log.Println("  GET    /history/:room       - Recent history (oldest first)")
	log.Println("  GET    /presence/:room      - Room members")
	log.Printf("  WS     /ws/:room            - ws://localhost:%d/ws/lobby?username=alice", httpPort)
	log.Println("")
	log.Println("Press Ctrl+C to shutdown")

	// Setup graceful shutdown using gelmium/graceful-shutdown
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

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvFloat returns environment variable as float64 or default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
		log.Printf("Warning: invalid float value for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

// getEnvDuration returns environment variable as duration or default.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		log.Printf("Warning: invalid duration value for %s: %s, using default: %s", key, value, defaultValue)
	}
	return defaultValue
}
