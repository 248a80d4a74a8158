package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyphera/cyphera-notify/internal/logger"
	"go.uber.org/zap"
)

// Caller is the authenticated principal of one request.
type Caller struct {
	Identity string
	IsAdmin  bool
}

// RoleChecker answers whether an identity holds the admin role.
type RoleChecker interface {
	IsAdmin(ctx context.Context, identity string) (bool, error)
}

// Authenticator turns a bearer token into a Caller.
type Authenticator struct {
	verifier Verifier
	roles    RoleChecker
	logger   *zap.Logger
}

// NewAuthenticator creates an Authenticator.
func NewAuthenticator(verifier Verifier, roles RoleChecker, log *zap.Logger) *Authenticator {
	return &Authenticator{
		verifier: verifier,
		roles:    roles,
		logger:   logger.OrNop(log),
	}
}

// Authenticate verifies the token and resolves the caller's admin flag.
// Credential failures return ErrInvalidToken. Role store failures are returned
// wrapped and must be treated as internal errors.
func (a *Authenticator) Authenticate(ctx context.Context, token string) (Caller, error) {
	identity, err := a.verifier.Verify(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrInvalidToken) {
			a.logger.Debug("Credential verification failed", zap.Error(err))
		}
		return Caller{}, ErrInvalidToken
	}

	principal := identity.Principal()
	isAdmin, err := a.roles.IsAdmin(ctx, principal)
	if err != nil {
		return Caller{}, fmt.Errorf("failed to resolve role for %s: %w", principal, err)
	}

	return Caller{Identity: principal, IsAdmin: isAdmin}, nil
}

// RequireAdmin returns ErrForbidden unless the caller is an admin.
func RequireAdmin(caller Caller) error {
	if !caller.IsAdmin {
		return ErrForbidden
	}
	return nil
}
