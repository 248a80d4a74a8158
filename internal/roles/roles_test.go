package roles

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingStore struct{ err error }

func (s failingStore) GetRole(context.Context, string) (string, error) { return "", s.err }
func (s failingStore) AssignRole(context.Context, string, string) error { return s.err }

func TestServiceIsAdmin(t *testing.T) {
	store := NewMemoryStore("Admin@Example.com")
	require.NoError(t, store.AssignRole(context.Background(), "support@example.com", "support"))
	require.NoError(t, store.AssignRole(context.Background(), "sneaky-admin@example.com", "user"))
	svc := NewService(store, zap.NewNop())

	tests := []struct {
		name     string
		identity string
		want     bool
	}{
		{name: "admin role", identity: "admin@example.com", want: true},
		{name: "case and whitespace insensitive", identity: "  ADMIN@example.COM ", want: true},
		{name: "support role is not admin", identity: "support@example.com", want: false},
		{name: "no substring matching on identity", identity: "sneaky-admin@example.com", want: false},
		{name: "unknown identity", identity: "stranger@example.com", want: false},
		{name: "empty identity", identity: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsAdmin(context.Background(), tt.identity)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceStoreFailure(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := NewService(failingStore{err: storeErr}, zap.NewNop())

	_, err := svc.IsAdmin(context.Background(), "admin@example.com")
	assert.ErrorIs(t, err, storeErr)

	err = svc.Assign(context.Background(), "a@example.com", "user")
	assert.ErrorIs(t, err, storeErr)
}

func TestServiceAssign(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		email   string
		role    string
		wantErr error
	}{
		{name: "valid role", email: "User@Example.com", role: "support"},
		{name: "invalid role", email: "user@example.com", role: "root", wantErr: ErrInvalidRole},
		{name: "blank email", email: "  ", role: "user", wantErr: ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Assign(ctx, tt.email, tt.role)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	role, err := svc.RoleOf(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, "support", role)

	_, err = svc.RoleOf(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrRoleNotFound)
}
