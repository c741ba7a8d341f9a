// Package apns provides the Apple Push Notification service push provider.
package apns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/sideshow/apns2"
	"github.com/sideshow/apns2/payload"
	"github.com/sideshow/apns2/token"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// APNSClient defines the subset of the apns2.Client methods we use.
// This allows mocking for unit tests.
type APNSClient interface {
	PushWithContext(ctx apns2.Context, n *apns2.Notification) (*apns2.Response, error)
}

// Config holds the credentials required to sign APNs tokens.
type Config struct {
	KeyID    string
	TeamID   string
	BundleID string
	// P8KeyContent is the raw string content of the .p8 file
	P8KeyContent string
	// Development routes pushes to the sandbox gateway.
	Development bool
}

// Validate names the first missing credential.
func (c Config) Validate() error {
	switch {
	case c.KeyID == "":
		return &dispatch.ConfigError{Key: "APNS_KEY_ID"}
	case c.TeamID == "":
		return &dispatch.ConfigError{Key: "APNS_TEAM_ID"}
	case c.BundleID == "":
		return &dispatch.ConfigError{Key: "APNS_BUNDLE_ID"}
	case c.P8KeyContent == "":
		return &dispatch.ConfigError{Key: "APNS_P8_KEY"}
	}
	return nil
}

// Provider sends one notification per call over the APNs HTTP/2 API.
// The token client is built on first use and reused afterwards.
type Provider struct {
	cfg    Config
	newFn  func(Config) (APNSClient, error)
	mu     sync.Mutex
	client APNSClient
	logger *slog.Logger
}

// NewProvider creates a lazily initialized APNs provider.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	return &Provider{
		cfg:    cfg,
		newFn:  newTokenClient,
		logger: logger.With("component", "APNSProvider"),
	}
}

// newTokenClient parses the P8 key and builds a token-auth client.
func newTokenClient(cfg Config) (APNSClient, error) {
	// keys pasted into env vars usually carry literal \n sequences
	pem := strings.ReplaceAll(cfg.P8KeyContent, `\n`, "\n")
	authKey, err := token.AuthKeyFromBytes([]byte(pem))
	if err != nil {
		return nil, fmt.Errorf("failed to parse APNs P8 key: %w", err)
	}

	tokenSource := &token.Token{
		AuthKey: authKey,
		KeyID:   cfg.KeyID,
		TeamID:  cfg.TeamID,
	}

	client := apns2.NewTokenClient(tokenSource)
	if cfg.Development {
		client = client.Development()
	}
	return client, nil
}

func (p *Provider) Ready(_ context.Context) error {
	_, err := p.ensureClient()
	return err
}

func (p *Provider) ensureClient() (APNSClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := p.newFn(p.cfg)
	if err != nil {
		return nil, err
	}
	p.client = client
	p.logger.Info("APNs client initialized", "bundle_id", p.cfg.BundleID, "development", p.cfg.Development)
	return client, nil
}

// Send pushes one message and returns the apns-id.
func (p *Provider) Send(ctx context.Context, msg *dispatch.PushMessage) (string, error) {
	client, err := p.ensureClient()
	if err != nil {
		return "", err
	}

	res, err := client.PushWithContext(ctx, p.toNotification(msg))
	if err != nil {
		// Transport failure: the token may well be fine.
		code := dispatch.CodeServerUnavailable
		if errors.Is(err, context.DeadlineExceeded) {
			code = dispatch.CodeTimeout
		}
		return "", &dispatch.ProviderError{Code: code, Err: err}
	}
	if res.Sent() {
		return res.ApnsID, nil
	}

	return "", &dispatch.ProviderError{
		Code: reasonCode(res),
		Err:  fmt.Errorf("apns rejected notification: status=%d reason=%s", res.StatusCode, res.Reason),
	}
}

func (p *Provider) toNotification(msg *dispatch.PushMessage) *apns2.Notification {
	builder := payload.NewPayload()
	pushType := apns2.PushTypeAlert
	if msg.Notification != nil {
		builder.AlertTitle(msg.Notification.Title).AlertBody(msg.Notification.Body)
	} else {
		// Data-only: wake the app and let it render its own UI.
		builder.ContentAvailable()
		pushType = apns2.PushTypeBackground
	}
	for k, v := range msg.Data {
		builder.Custom(k, v)
	}

	priority := apns2.PriorityHigh
	if v, err := strconv.Atoi(msg.Hints.APNSPriority); err == nil {
		priority = v
	}
	// APNs rejects background pushes sent at priority 10.
	if pushType == apns2.PushTypeBackground {
		priority = apns2.PriorityLow
	}

	return &apns2.Notification{
		DeviceToken: msg.Token,
		Topic:       p.cfg.BundleID,
		Payload:     builder,
		Priority:    priority,
		PushType:    pushType,
	}
}

// reasonCode maps APNs rejections to provider codes.
// See: https://developer.apple.com/documentation/usernotifications/handling-notification-responses-from-apns
func reasonCode(res *apns2.Response) string {
	switch res.Reason {
	case apns2.ReasonUnregistered:
		return dispatch.CodeTokenNotRegistered
	case apns2.ReasonBadDeviceToken, apns2.ReasonDeviceTokenNotForTopic:
		return dispatch.CodeInvalidToken
	}
	switch {
	case res.StatusCode == http.StatusTooManyRequests:
		return dispatch.CodeTooManyRequests
	case res.StatusCode >= http.StatusInternalServerError:
		return dispatch.CodeServerUnavailable
	default:
		return dispatch.CodeUnknown
	}
}
