package roles

import (
	"context"
	"sync"

	"github.com/cyphera/cyphera-notify/internal/constants"
	"github.com/cyphera/cyphera-notify/internal/helpers"
)

// MemoryStore is an in-process Store, seeded from configuration.
type MemoryStore struct {
	mu    sync.RWMutex
	roles map[string]string
}

// NewMemoryStore creates a MemoryStore granting the admin role to admins.
func NewMemoryStore(admins ...string) *MemoryStore {
	s := &MemoryStore{roles: make(map[string]string, len(admins))}
	for _, email := range admins {
		if email = helpers.NormalizeEmail(email); email != "" {
			s.roles[email] = constants.RoleAdmin
		}
	}
	return s
}

func (s *MemoryStore) GetRole(_ context.Context, email string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	role, ok := s.roles[email]
	if !ok {
		return "", ErrRoleNotFound
	}
	return role, nil
}

func (s *MemoryStore) AssignRole(_ context.Context, email, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roles[email] = role
	return nil
}
