// Package authpw provides email/password account authentication.
package authpw

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"demonboard/api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// Service provides email/password authentication
type Service struct {
	store UserStore
}

// UserStore defines the storage interface for auth
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (store.User, error)
	GetUserByName(ctx context.Context, name string) (store.User, error)
	CreateUser(ctx context.Context, user store.User) error
}

// NewService creates a new auth service
func NewService(store UserStore) *Service {
	return &Service{store: store}
}

// SignUpRequest contains sign-up parameters
type SignUpRequest struct {
	Email    string
	Password string
	Name     string
}

// SignUp creates a new player account with the default member role.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (store.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if req.Email == "" || req.Password == "" || req.Name == "" {
		return store.User{}, errors.New("email, password, and name are required")
	}
	if len(req.Password) < 8 {
		return store.User{}, errors.New("password must be at least 8 characters")
	}

	if _, err := s.store.GetUserByEmail(ctx, req.Email); err == nil {
		return store.User{}, errors.New("email already registered")
	}
	if _, err := s.store.GetUserByName(ctx, req.Name); err == nil {
		return store.User{}, errors.New("name already taken")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return store.User{}, fmt.Errorf("hash password: %w", err)
	}

	user := store.User{
		ID:           generateID(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: string(hash),
		Role:         "member",
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return store.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

// SignInRequest contains sign-in parameters
type SignInRequest struct {
	Email    string
	Password string
}

// SignIn authenticates a user
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (store.User, error) {
	if req.Email == "" || req.Password == "" {
		return store.User{}, errors.New("email and password are required")
	}

	user, err := s.store.GetUserByEmail(ctx, req.Email)
	if err != nil {
		return store.User{}, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return store.User{}, errors.New("invalid email or password")
	}

	return user, nil
}

func generateID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return "usr_" + hex.EncodeToString(bytes)
}
