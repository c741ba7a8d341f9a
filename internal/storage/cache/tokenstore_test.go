package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-push-dispatch/internal/storage/cache"
)

// --- Mocks ---
type MockCache struct {
	mock.Mock
}

func (m *MockCache) Get(ctx context.Context, key string, dest any) error {
	args := m.Called(ctx, key, dest)
	if fill, ok := args.Get(1).([]string); ok {
		*(dest.(*[]string)) = fill
	}
	return args.Error(0)
}
func (m *MockCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return m.Called(ctx, key, value, ttl).Error(0)
}
func (m *MockCache) Del(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) RegisterToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}
func (m *MockRegistry) ListTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	tokens, _ := args.Get(0).([]string)
	return tokens, args.Error(1)
}
func (m *MockRegistry) DeleteToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const (
	userID   = "annoyed-user"
	cacheKey = "push:tokens:annoyed-user"
)

func TestCachedRegistry_ImmediateInvalidation(t *testing.T) {
	ctx := context.Background()
	mockCache := new(MockCache)
	mockDB := new(MockRegistry)

	registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

	t.Run("Delete invalidates cache immediately", func(t *testing.T) {
		mockDB.On("DeleteToken", ctx, userID, "old-token").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		err := registry.DeleteToken(ctx, userID, "old-token")

		require.NoError(t, err)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Subsequent List hits DB (Cache Miss)", func(t *testing.T) {
		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss, nil).Once()
		mockDB.On("ListTokens", ctx, userID).Return([]string{}, nil).Once()
		mockCache.On("Set", ctx, cacheKey, []string{}, time.Hour).Return(nil).Once()

		tokens, err := registry.ListTokens(ctx, userID)

		require.NoError(t, err)
		assert.Empty(t, tokens)
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})
}

func TestCachedRegistry_ReadAside(t *testing.T) {
	ctx := context.Background()

	t.Run("Cache hit skips the DB", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(nil, []string{"tok-a", "tok-b"})

		tokens, err := registry.ListTokens(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, []string{"tok-a", "tok-b"}, tokens)
		mockDB.AssertNotCalled(t, "ListTokens", mock.Anything, mock.Anything)
	})

	t.Run("Cache write failure still returns DB result", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(assert.AnError, nil)
		mockDB.On("ListTokens", ctx, userID).Return([]string{"tok-a"}, nil)
		mockCache.On("Set", ctx, cacheKey, []string{"tok-a"}, time.Hour).Return(assert.AnError)

		tokens, err := registry.ListTokens(ctx, userID)

		require.NoError(t, err)
		assert.Equal(t, []string{"tok-a"}, tokens)
	})

	t.Run("DB failure is surfaced and nothing is cached", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockCache.On("Get", ctx, cacheKey, mock.Anything).Return(cache.ErrMiss, nil)
		mockDB.On("ListTokens", ctx, userID).Return(nil, assert.AnError)

		_, err := registry.ListTokens(ctx, userID)

		require.ErrorIs(t, err, assert.AnError)
		mockCache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Register invalidates after the DB write", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("RegisterToken", ctx, userID, "new-token").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(nil)

		require.NoError(t, registry.RegisterToken(ctx, userID, "new-token"))
		mockCache.AssertExpectations(t)
	})

	t.Run("Register surfaces a failed invalidation", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("RegisterToken", ctx, userID, "new-token").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(assert.AnError)

		require.ErrorIs(t, registry.RegisterToken(ctx, userID, "new-token"), assert.AnError)
	})

	t.Run("Delete succeeds when invalidation fails", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("DeleteToken", ctx, userID, "dead-token").Return(nil)
		mockCache.On("Del", ctx, cacheKey).Return(assert.AnError)

		require.NoError(t, registry.DeleteToken(ctx, userID, "dead-token"))
		mockDB.AssertExpectations(t)
		mockCache.AssertExpectations(t)
	})

	t.Run("Failed DB write leaves the cache alone", func(t *testing.T) {
		mockCache := new(MockCache)
		mockDB := new(MockRegistry)
		registry := cache.NewCachedRegistry(mockDB, mockCache, time.Hour, newTestLogger())

		mockDB.On("RegisterToken", ctx, userID, "new-token").Return(assert.AnError)

		require.Error(t, registry.RegisterToken(ctx, userID, "new-token"))
		mockCache.AssertNotCalled(t, "Del", mock.Anything, mock.Anything)
	})
}
