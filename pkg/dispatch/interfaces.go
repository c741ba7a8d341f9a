// Package dispatch contains the public contracts and domain types of the push
// dispatch service.
package dispatch

import (
	"context"
)

// PushProvider defines the contract for the single external service that
// delivers a message to a device given its registration token.
type PushProvider interface {
	// Ready initializes the underlying client if it has not been initialized
	// yet. Missing credentials are reported as a *ConfigError.
	Ready(ctx context.Context) error

	// Send delivers one message and returns the provider's message ID.
	// Failures should be returned as *ProviderError so they can be classified.
	Send(ctx context.Context, msg *PushMessage) (string, error)
}

// DeviceRegistry defines the contract for the store mapping a user identity to
// the device tokens currently believed reachable for that user.
type DeviceRegistry interface {
	// RegisterToken adds or refreshes a token for a user (upsert).
	RegisterToken(ctx context.Context, userID, token string) error

	// ListTokens returns the user's tokens in registry iteration order.
	ListTokens(ctx context.Context, userID string) ([]string, error)

	// DeleteToken removes a registration. Deleting an absent registration
	// is not an error.
	DeleteToken(ctx context.Context, userID, token string) error
}
