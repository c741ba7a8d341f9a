// Package memory provides an in-process DeviceRegistry for local runs and tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// Registry keeps registrations per user in insertion order.
type Registry struct {
	mu    sync.RWMutex
	users map[string][]dispatch.DeviceRegistration
	now   func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		users: make(map[string][]dispatch.DeviceRegistration),
		now:   time.Now,
	}
}

// RegisterToken is idempotent; re-registering keeps the original
// registration time, so list order is stable.
func (r *Registry) RegisterToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := r.users[userID]
	for _, reg := range regs {
		if reg.Token == token {
			return nil
		}
	}
	r.users[userID] = append(regs, dispatch.DeviceRegistration{
		UserID:       userID,
		Token:        token,
		RegisteredAt: r.now(),
	})
	return nil
}

func (r *Registry) ListTokens(_ context.Context, userID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := r.users[userID]
	tokens := make([]string, 0, len(regs))
	for _, reg := range regs {
		tokens = append(tokens, reg.Token)
	}
	return tokens, nil
}

// DeleteToken is idempotent.
func (r *Registry) DeleteToken(_ context.Context, userID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	regs := slices.DeleteFunc(r.users[userID], func(reg dispatch.DeviceRegistration) bool {
		return reg.Token == token
	})
	if len(regs) == 0 {
		delete(r.users, userID)
		return nil
	}
	r.users[userID] = regs
	return nil
}
