package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/vivekcuts/vivekcuts-backend/internal/models"
	"github.com/vivekcuts/vivekcuts-backend/internal/repositories"
	"github.com/vivekcuts/vivekcuts-backend/pkg/utils"
	"go.uber.org/zap"
)

type AuthService struct {
	admins    AdminStore
	jwtSecret string
	log       *zap.Logger
	now       Clock
}

func NewAuthService(admins AdminStore, jwtSecret string, log *zap.Logger) *AuthService {
	return &AuthService{admins: admins, jwtSecret: jwtSecret, log: log.Named("auth"), now: systemClock}
}

// Login returns a signed admin token for valid credentials.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", ErrMissingFields
	}

	admin, err := s.admins.FindByEmail(ctx, email)
	if errors.Is(err, repositories.ErrNotFound) {
		return "", ErrInvalidCredentials
	}
	if err != nil {
		return "", fmt.Errorf("find admin: %w", err)
	}
	if err := admin.CheckPassword(password); err != nil {
		s.log.Warn("admin login rejected", zap.String("email", email))
		return "", ErrInvalidCredentials
	}

	return utils.GenerateAdminToken(s.jwtSecret, admin.ID.String(), admin.Email, s.now())
}

// CreateAdmin registers a dashboard account.
func (s *AuthService) CreateAdmin(ctx context.Context, email, password string) (*models.Admin, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !utils.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}

	admin := &models.Admin{Email: email, Password: password}
	if err := admin.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	if err := s.admins.Create(ctx, admin); err != nil {
		return nil, fmt.Errorf("create admin: %w", err)
	}
	return admin, nil
}
