package pipeline

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// Resolution is the destination set for one request.
type Resolution struct {
	Tokens []string
	// UserID is set only when the tokens came from a registry fan-out; it is
	// the reconciliation context for dead-token pruning.
	UserID string
}

// NoDestinations reports the distinguished "nothing to send to" outcome. It is
// not an error.
func (r Resolution) NoDestinations() bool {
	return len(r.Tokens) == 0
}

// Resolve turns a validated request into an ordered token sequence. A direct
// device token always wins and skips the registry entirely.
func Resolve(ctx context.Context, registry dispatch.DeviceRegistry, req dispatch.NotificationRequest) (Resolution, error) {
	if req.DeviceToken != "" {
		return Resolution{Tokens: []string{req.DeviceToken}}, nil
	}

	tokens, err := registry.ListTokens(ctx, req.TargetUserID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to list tokens for user %s: %w", req.TargetUserID, err)
	}

	// Collapse duplicates so one device never gets the same push twice.
	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		unique = append(unique, t)
	}

	return Resolution{Tokens: unique, UserID: req.TargetUserID}, nil
}
