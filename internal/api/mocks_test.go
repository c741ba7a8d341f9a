package api_test

import (
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Ready(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockProvider) Send(ctx context.Context, msg *dispatch.PushMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) RegisterToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func (m *mockRegistry) ListTokens(ctx context.Context, userID string) ([]string, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRegistry) DeleteToken(ctx context.Context, userID, token string) error {
	return m.Called(ctx, userID, token).Error(0)
}

func forToken(token string) any {
	return mock.MatchedBy(func(msg *dispatch.PushMessage) bool {
		return msg.Token == token
	})
}
