package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	chat "github.com/example/redis-chat-relay/domain/chat"
	domain "github.com/example/redis-chat-relay/domain/user"
)

var (
	// ErrInvalidCredentials is returned when login credentials are invalid.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrWeakPassword is returned when password is too weak.
	ErrWeakPassword = errors.New("password must be at least 8 characters")
	// ErrPasswordTooLong is returned when password exceeds bcrypt's 72-byte limit.
	ErrPasswordTooLong = errors.New("password must be at most 72 characters")
)

// Service handles account registration, login and identity resolution for
// incoming connections.
type Service struct {
	repo   *UserRepository
	hasher *PasswordHasher
	jwt    *JWTManager
}

// NewService creates a new auth service.
func NewService(repo *UserRepository, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		jwt:    jwt,
	}
}

// Register creates a new user account.
func (s *Service) Register(_ context.Context, username, password string) (*domain.User, error) {
	if err := chat.ValidateUsername(username); err != nil {
		return nil, err
	}
	// bcrypt has a 72-byte input limit.
	if len(password) < 8 {
		return nil, ErrWeakPassword
	}
	if len(password) > 72 {
		return nil, ErrPasswordTooLong
	}

	exists, err := s.repo.UsernameExists(username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username existence: %w", err)
	}
	if exists {
		return nil, ErrUserExists
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now(),
	}
	if err := s.repo.Create(user); err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *Service) Login(_ context.Context, username, password string) (string, error) {
	user, err := s.repo.FindByUsername(username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}
	return s.jwt.GenerateAccessToken(user.Username)
}

// ResolveIdentity turns connection parameters into an authenticated identity
// string for the relay, or an error when the connection must be rejected.
// A bearer token takes precedence; otherwise a plain username parameter is
// accepted when it validates.
func (s *Service) ResolveIdentity(username, token string) (string, error) {
	if token != "" {
		claims, err := s.jwt.ValidateToken(token)
		if err != nil {
			return "", err
		}
		return claims.Username, nil
	}
	if err := chat.ValidateUsername(username); err != nil {
		return "", err
	}
	return username, nil
}

// TokenDuration returns the issued tokens' lifetime in seconds.
func (s *Service) TokenDuration() int64 {
	return s.jwt.AccessTokenDuration()
}
