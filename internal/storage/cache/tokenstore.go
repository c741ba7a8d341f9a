// Package cache provides a read-aside caching decorator for any DeviceRegistry.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get decodes the value into dest, or returns an error if not found.
	Get(ctx context.Context, key string, dest any) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

// CachedRegistry is a Decorator that adds Read-Aside caching to a DeviceRegistry.
// The cache is an optimisation only: read failures fall through to the
// real registry and write paths invalidate after the source of truth succeeds.
type CachedRegistry struct {
	real   dispatch.DeviceRegistry
	cache  CacheClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRegistry creates the decorator.
func NewCachedRegistry(real dispatch.DeviceRegistry, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedRegistry {
	return &CachedRegistry{
		real:   real,
		cache:  cache,
		ttl:    ttl,
		logger: logger.With("component", "CachedRegistry"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedRegistry) ListTokens(ctx context.Context, userID string) ([]string, error) {
	key := cacheKey(userID)

	var cached []string
	if err := s.cache.Get(ctx, key, &cached); err == nil {
		return cached, nil
	}

	fresh, err := s.real.ListTokens(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, fresh, s.ttl); err != nil {
		s.logger.Warn("Failed to populate token cache", "user_id", userID, "err", err)
	}
	return fresh, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedRegistry) RegisterToken(ctx context.Context, userID, token string) error {
	if err := s.real.RegisterToken(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// DeleteToken clears the cache after the delete so a pruned token stops being
// dispatched to. Once the registry delete succeeds the token is gone; a failed
// invalidation only leaves it cached until the TTL expires, so it is logged.
func (s *CachedRegistry) DeleteToken(ctx context.Context, userID, token string) error {
	if err := s.real.DeleteToken(ctx, userID, token); err != nil {
		return err
	}
	if err := s.invalidate(ctx, userID); err != nil {
		s.logger.Warn("Token deleted but cache invalidation failed", "user_id", userID, "err", err)
	}
	return nil
}

func (s *CachedRegistry) invalidate(ctx context.Context, userID string) error {
	if err := s.cache.Del(ctx, cacheKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate token cache for user %s: %w", userID, err)
	}
	return nil
}

func cacheKey(userID string) string {
	return fmt.Sprintf("push:tokens:%s", userID)
}
