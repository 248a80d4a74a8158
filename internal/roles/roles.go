package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/helpers"
	"github.com/cyphera/cyphera-notify/internal/logger"
	"go.uber.org/zap"
)

var (
	// ErrRoleNotFound is returned when no role is recorded for an email
	ErrRoleNotFound = errors.New("role not found")
	// ErrInvalidRole is returned when assigning a role outside the known set
	ErrInvalidRole = errors.New("invalid role")
	// ErrInvalidEmail is returned when the email is blank
	ErrInvalidEmail = errors.New("email is required")
)

// Store persists the role assigned to each email. Emails are passed
// normalized (lowercase, trimmed).
type Store interface {
	GetRole(ctx context.Context, email string) (string, error)
	AssignRole(ctx context.Context, email, role string) error
}

// Service is the role lookup used for authorization.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates a role Service over store.
func NewService(store Store, log *zap.Logger) *Service {
	return &Service{store: store, logger: logger.OrNop(log)}
}

// IsAdmin reports whether identity holds the admin role. An identity without
// a role is not an admin.
func (s *Service) IsAdmin(ctx context.Context, identity string) (bool, error) {
	role, err := s.RoleOf(ctx, identity)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return false, nil
		}
		return false, err
	}
	return role == constants.RoleAdmin, nil
}

// RoleOf returns the role recorded for email.
func (s *Service) RoleOf(ctx context.Context, email string) (string, error) {
	email = helpers.NormalizeEmail(email)
	if email == "" {
		return "", ErrRoleNotFound
	}

	role, err := s.store.GetRole(ctx, email)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return "", ErrRoleNotFound
		}
		return "", fmt.Errorf("failed to get role: %w", err)
	}
	return role, nil
}

// Assign records role for email, replacing any previous role.
func (s *Service) Assign(ctx context.Context, email, role string) error {
	email = helpers.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	if !constants.IsValidRole(role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}

	if err := s.store.AssignRole(ctx, email, role); err != nil {
		return fmt.Errorf("failed to assign role: %w", err)
	}

	s.logger.Info("Role assigned", zap.String("email", email), zap.String("role", role))
	return nil
}
