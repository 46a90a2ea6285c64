package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"donation-rewards-api/internal/auth"
	"donation-rewards-api/internal/database"
	"donation-rewards-api/internal/models"
	"donation-rewards-api/internal/validation"
)

// Register creates a donor account and returns a token for it.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	req.Email = strings.ToLower(validation.SanitizeString(req.Email))
	req.Name = validation.SanitizeString(req.Name)
	req.Phone = validation.SanitizeString(req.Phone)

	if err := validation.ValidateRegister(req); err != nil {
		return nil, err
	}
	if s.tokens == nil {
		return nil, ErrForbidden
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.withTimeout(ctx, "register")
	defer cancel()

	u := models.User{
		ID:           uuid.New().String(),
		Email:        req.Email,
		Name:         req.Name,
		Phone:        req.Phone,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	err = s.db.Queries().CreateUser(ctx, u)
	if errors.Is(err, database.ErrDuplicate) {
		return nil, &ConflictError{Reason: "email already registered"}
	}
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}

	s.log.Info("user registered", zap.String("user_id", u.ID))
	return &models.AuthResponse{User: u, Token: token}, nil
}

// Login checks credentials and issues a token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	email := strings.ToLower(validation.SanitizeString(req.Email))
	if email == "" || req.Password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.tokens == nil {
		return nil, ErrForbidden
	}

	ctx, cancel := s.withTimeout(ctx, "login")
	defer cancel()

	u, err := s.db.Queries().GetUserByEmail(ctx, email)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := auth.CheckPassword(u.PasswordHash, req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(*u)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{User: *u, Token: token}, nil
}

// Profile returns the user with their donation counter.
func (s *Service) Profile(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := s.withTimeout(ctx, "profile")
	defer cancel()

	u, err := s.db.Queries().GetUserByID(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, notFound("user")
	}
	return u, err
}
