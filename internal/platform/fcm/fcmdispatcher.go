// Package fcm provides the Firebase Cloud Messaging push provider.
package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/errorutils"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// MessagingClient defines the subset of the Firebase Messaging API we use.
// *messaging.Client satisfies it; tests substitute a mock.
type MessagingClient interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

// Credentials identify the Firebase service account.
type Credentials struct {
	ProjectID   string
	ClientEmail string
	// PrivateKey may carry literal "\n" escapes, as it usually does when it
	// comes from an environment variable.
	PrivateKey string
}

// Validate names the first missing credential.
func (c Credentials) Validate() error {
	switch {
	case c.ProjectID == "":
		return &dispatch.ConfigError{Key: "FIREBASE_PROJECT_ID"}
	case c.ClientEmail == "":
		return &dispatch.ConfigError{Key: "FIREBASE_CLIENT_EMAIL"}
	case c.PrivateKey == "":
		return &dispatch.ConfigError{Key: "FIREBASE_PRIVATE_KEY"}
	}
	return nil
}

// ClientFactory builds a MessagingClient from credentials.
type ClientFactory func(ctx context.Context, creds Credentials) (MessagingClient, error)

// Provider is the process-wide FCM provider. The underlying client is created
// on first use and then reused for the lifetime of the process; a failed
// initialization is retried on the next call.
type Provider struct {
	creds   Credentials
	factory ClientFactory

	mu     sync.Mutex
	client MessagingClient

	logger *slog.Logger
}

func NewProvider(creds Credentials, factory ClientFactory, logger *slog.Logger) *Provider {
	return &Provider{
		creds:   creds,
		factory: factory,
		logger:  logger.With("component", "FCMProvider"),
	}
}

// Ready initializes the client if it is not already initialized.
func (p *Provider) Ready(ctx context.Context) error {
	_, err := p.ensureClient(ctx)
	return err
}

func (p *Provider) ensureClient(ctx context.Context) (MessagingClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if err := p.creds.Validate(); err != nil {
		return nil, err
	}

	// The client outlives the request that happens to create it.
	client, err := p.factory(context.WithoutCancel(ctx), p.creds)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase messaging: %w", err)
	}
	p.client = client
	p.logger.Info("Firebase messaging client initialized", "project_id", p.creds.ProjectID)
	return client, nil
}

// Send delivers one message. Failures come back as *dispatch.ProviderError.
func (p *Provider) Send(ctx context.Context, msg *dispatch.PushMessage) (string, error) {
	client, err := p.ensureClient(ctx)
	if err != nil {
		return "", err
	}

	id, err := client.Send(ctx, ToMessage(msg))
	if err != nil {
		return "", &dispatch.ProviderError{Code: errorCode(err), Err: err}
	}
	return id, nil
}

// ToMessage converts a PushMessage into the FCM wire shape.
func ToMessage(msg *dispatch.PushMessage) *messaging.Message {
	m := &messaging.Message{
		Token: msg.Token,
		Data:  msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: msg.Hints.AndroidPriority,
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": msg.Hints.APNSPriority},
		},
	}
	if msg.Notification != nil {
		m.Notification = &messaging.Notification{
			Title: msg.Notification.Title,
			Body:  msg.Notification.Body,
		}
	}
	return m
}

// errorCode translates Firebase SDK errors into provider codes.
// INVALID_ARGUMENT only means a dead token when FCM blames the token; the same
// status also covers payload faults, and those must not prune registrations.
func errorCode(err error) string {
	switch {
	case messaging.IsRegistrationTokenNotRegistered(err):
		return dispatch.CodeTokenNotRegistered
	case messaging.IsInvalidArgument(err):
		if blamesToken(err) {
			return dispatch.CodeInvalidToken
		}
		return dispatch.CodeInvalidArgument
	case errorutils.IsUnavailable(err):
		return dispatch.CodeServerUnavailable
	case errorutils.IsInternal(err):
		return dispatch.CodeInternalError
	case errorutils.IsResourceExhausted(err):
		return dispatch.CodeMessageRateExceeded
	case errors.Is(err, context.DeadlineExceeded), errorutils.IsDeadlineExceeded(err):
		return dispatch.CodeTimeout
	default:
		return dispatch.CodeUnknown
	}
}

// blamesToken matches FCM's "The registration token is not a valid FCM
// registration token" rejection.
func blamesToken(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "registration token")
}

// NewFirebaseClient is the production ClientFactory.
func NewFirebaseClient(ctx context.Context, creds Credentials) (MessagingClient, error) {
	serviceAccount, err := json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   creds.ProjectID,
		"client_email": creds.ClientEmail,
		"private_key":  NormalizePrivateKey(creds.PrivateKey),
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode service account: %w", err)
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: creds.ProjectID}, option.WithCredentialsJSON(serviceAccount))
	if err != nil {
		return nil, fmt.Errorf("failed to create firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	return client, nil
}

// NormalizePrivateKey turns escaped newlines into real ones.
func NormalizePrivateKey(pk string) string {
	return strings.ReplaceAll(pk, `\n`, "\n")
}
