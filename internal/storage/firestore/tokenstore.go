// Package firestore provides the Firestore-backed DeviceRegistry.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TokenRegistry implements dispatch.DeviceRegistry using Google Cloud Firestore.
type TokenRegistry struct {
	client *firestore.Client
	now    func() time.Time
}

func NewTokenRegistry(client *firestore.Client) *TokenRegistry {
	return &TokenRegistry{client: client, now: time.Now}
}

// deviceRecord is the internal DB representation.
type deviceRecord struct {
	Token        string    `firestore:"token"`
	RegisteredAt time.Time `firestore:"registered_at"`
	UpdatedAt    time.Time `firestore:"updated_at"`
}

// RegisterToken creates the device document, or refreshes updated_at if the
// token is already registered. registered_at is never rewritten so the
// user's fanout order stays stable.
func (s *TokenRegistry) RegisterToken(ctx context.Context, userID, token string) error {
	now := s.now()
	ref := s.deviceRef(userID, token)

	_, err := ref.Create(ctx, deviceRecord{
		Token:        token,
		RegisteredAt: now,
		UpdatedAt:    now,
	})
	if status.Code(err) == codes.AlreadyExists {
		_, err = ref.Update(ctx, []firestore.Update{{Path: "updated_at", Value: now}})
	}
	if err != nil {
		return fmt.Errorf("failed to register device for user %s: %w", userID, err)
	}
	return nil
}

// ListTokens returns the user's tokens, oldest registration first.
func (s *TokenRegistry) ListTokens(ctx context.Context, userID string) ([]string, error) {
	iter := s.devicesCollection(userID).OrderBy("registered_at", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	tokens := make([]string, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record deviceRecord
		if err := doc.DataTo(&record); err != nil || record.Token == "" {
			// Corrupt rows are skipped rather than failing the whole fanout.
			continue
		}
		tokens = append(tokens, record.Token)
	}
	return tokens, nil
}

// DeleteToken is idempotent.
func (s *TokenRegistry) DeleteToken(ctx context.Context, userID, token string) error {
	_, err := s.deviceRef(userID, token).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("failed to delete device for user %s: %w", userID, err)
	}
	return nil
}

// deviceRef: users/{userID}/devices/{tokenHash}
// Hashing the token as the doc ID dedupes registrations and keeps IDs a
// fixed, path-safe length.
func (s *TokenRegistry) deviceRef(userID, token string) *firestore.DocumentRef {
	return s.devicesCollection(userID).Doc(hashToken(token))
}

func (s *TokenRegistry) devicesCollection(userID string) *firestore.CollectionRef {
	return s.client.Collection("users").Doc(userID).Collection("devices")
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
