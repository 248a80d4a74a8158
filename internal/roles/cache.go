package roles

import (
	"context"
	"errors"
	"time"

	"github.com/cyphera/cyphera-notify/internal/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix = "roles:"
	// noRoleMarker caches a negative lookup. It is not a valid role.
	noRoleMarker = "-"
)

// Cache is the subset of the redis client used by CachedStore.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CachedStore is a read-through redis cache in front of another Store.
// Cache errors are logged and fall through to the underlying store.
type CachedStore struct {
	next   Store
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedStore wraps next with a redis cache entry per email kept for ttl.
func NewCachedStore(next Store, cache Cache, ttl time.Duration, log *zap.Logger) *CachedStore {
	return &CachedStore{next: next, cache: cache, ttl: ttl, logger: logger.OrNop(log)}
}

func (s *CachedStore) GetRole(ctx context.Context, email string) (string, error) {
	key := cacheKeyPrefix + email

	cached, err := s.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		if cached == noRoleMarker {
			return "", ErrRoleNotFound
		}
		return cached, nil
	case errors.Is(err, redis.Nil):
	default:
		s.logger.Warn("Role cache read failed, falling back to store", zap.String("key", key), zap.Error(err))
	}

	role, err := s.next.GetRole(ctx, email)
	switch {
	case err == nil:
		s.put(ctx, key, role)
	case errors.Is(err, ErrRoleNotFound):
		s.put(ctx, key, noRoleMarker)
	}
	return role, err
}

func (s *CachedStore) AssignRole(ctx context.Context, email, role string) error {
	if err := s.next.AssignRole(ctx, email, role); err != nil {
		return err
	}

	key := cacheKeyPrefix + email
	if err := s.cache.Del(ctx, key).Err(); err != nil {
		s.logger.Warn("Failed to invalidate role cache", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (s *CachedStore) put(ctx context.Context, key, value string) {
	if err := s.cache.Set(ctx, key, value, s.ttl).Err(); err != nil {
		s.logger.Warn("Failed to write role cache", zap.String("key", key), zap.Error(err))
	}
}
