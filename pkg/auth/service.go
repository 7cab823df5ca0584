// Package auth provides password hashing, access token signing, and the user
// authentication service.
package auth

import (
	"context"
	"strconv"

	"github.com/webcli/webcli/pkg/models"
	"github.com/webcli/webcli/pkg/store"
)

// Service authenticates users against the store.
type Service struct {
	store  *store.Store
	tokens *TokenService
}

// NewService creates an authentication service.
func NewService(st *store.Store, tokens *TokenService) *Service {
	return &Service{store: st, tokens: tokens}
}

// CreateUser registers a user with a bcrypt-hashed password.
func (s *Service) CreateUser(ctx context.Context, email, password string) (*models.User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	return s.store.CreateUser(ctx, email, hash)
}

// Login verifies credentials and returns a signed access token. A missing
// user and a wrong password produce the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return "", ErrWrongPassword
	}
	if !user.IsActive {
		return "", ErrInactiveUser
	}
	if err := VerifyPassword(password, user.PasswordHash); err != nil {
		return "", err
	}
	return s.tokens.GenerateToken(user)
}

// UserFromToken resolves a token back to its user. The token is rejected when
// the user is gone, inactive, or has rotated their password since issuance.
func (s *Service) UserFromToken(ctx context.Context, tokenString string) (*models.User, error) {
	claims, err := s.tokens.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	// A vanished user propagates as not-found; only token faults map to
	// ErrInvalidToken.
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}
	if user.PasswordVersion != claims.PasswordVersion {
		return nil, ErrInvalidToken
	}
	return user, nil
}
