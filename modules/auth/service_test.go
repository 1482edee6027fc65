package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	domain "github.com/example/redis-chat-relay/domain/user"
)

// setupTestService builds a service over an in-memory database.
func setupTestService(t *testing.T) *Service {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	return NewService(NewUserRepository(db), NewPasswordHasher(bcrypt.MinCost), NewJWTManager(testJWTConfig()))
}

func TestService_Register(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	user, err := service.Register(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if user.ID == "" {
		t.Error("Register() returned user without ID")
	}
	if user.Username != "alice" {
		t.Errorf("Username = %q, want %q", user.Username, "alice")
	}
	if user.PasswordHash == "password123" {
		t.Error("Register() stored the plaintext password")
	}
}

func TestService_Register_Validation(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{"empty username", "", "password123", nil},
		{"username too long", strings.Repeat("a", 33), "password123", nil},
		{"short password", "bob", "short", ErrWeakPassword},
		{"password too long", "bob", strings.Repeat("p", 73), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Register(ctx, tt.username, tt.password)
			if err == nil {
				t.Fatal("Register() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestService_Register_Duplicate(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := service.Register(ctx, "alice", "otherpassword")
	if !errors.Is(err, ErrUserExists) {
		t.Errorf("Register() error = %v, want %v", err, ErrUserExists)
	}
}

func TestService_Login(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	token, err := service.Login(ctx, "alice", "password123")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if token == "" {
		t.Error("Login() returned empty token")
	}

	// Issued tokens resolve back to the account's identity.
	identity, err := service.ResolveIdentity("", token)
	if err != nil {
		t.Fatalf("ResolveIdentity() error = %v", err)
	}
	if identity != "alice" {
		t.Errorf("ResolveIdentity() = %q, want %q", identity, "alice")
	}
}

func TestService_Login_InvalidCredentials(t *testing.T) {
	service := setupTestService(t)
	ctx := context.Background()

	if _, err := service.Register(ctx, "alice", "password123"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if _, err := service.Login(ctx, "alice", "wrongpassword"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want %v", err, ErrInvalidCredentials)
	}
	if _, err := service.Login(ctx, "nosuchuser", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Login() error = %v, want %v", err, ErrInvalidCredentials)
	}
}

func TestService_ResolveIdentity(t *testing.T) {
	service := setupTestService(t)

	// Plain username path.
	identity, err := service.ResolveIdentity("bob", "")
	if err != nil {
		t.Fatalf("ResolveIdentity() error = %v", err)
	}
	if identity != "bob" {
		t.Errorf("ResolveIdentity() = %q, want %q", identity, "bob")
	}

	// Token path takes precedence over a conflicting username parameter.
	token, err := NewJWTManager(testJWTConfig()).GenerateAccessToken("alice")
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	identity, err = service.ResolveIdentity("bob", token)
	if err != nil {
		t.Fatalf("ResolveIdentity() error = %v", err)
	}
	if identity != "alice" {
		t.Errorf("ResolveIdentity() = %q, want %q", identity, "alice")
	}

	// Rejections.
	if _, err := service.ResolveIdentity("", ""); err == nil {
		t.Error("ResolveIdentity() accepted empty identity")
	}
	if _, err := service.ResolveIdentity(strings.Repeat("a", 33), ""); err == nil {
		t.Error("ResolveIdentity() accepted over-long username")
	}
	if _, err := service.ResolveIdentity("", "garbage-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("ResolveIdentity() error = %v, want %v", err, ErrInvalidToken)
	}
}
